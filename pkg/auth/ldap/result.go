package ldap

import (
	"errors"
	"fmt"
)

// ErrTimeout is wrapped by the error of every timed-out resolution.
var ErrTimeout = errors.New("ldap: group search timed out")

// ResultKind distinguishes the three resolution outcomes.
type ResultKind int

const (
	// ResultOK means the search completed; Groups may legitimately be empty.
	ResultOK ResultKind = iota
	// ResultTimeout means the client or server deadline was hit.
	ResultTimeout
	// ResultFailed means the search failed for any other reason.
	ResultFailed
)

func (k ResultKind) String() string {
	switch k {
	case ResultOK:
		return "ok"
	case ResultTimeout:
		return "timeout"
	case ResultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of a group resolution. A timeout is never reported
// as an OK result with no groups.
type Result struct {
	Kind   ResultKind
	Groups []string
	Err    error
}

// OK returns a successful result.
func OK(groups []string) Result {
	if groups == nil {
		groups = []string{}
	}
	return Result{Kind: ResultOK, Groups: groups}
}

// Timeout returns a timed-out result. cause may be nil.
func Timeout(cause error) Result {
	return Result{Kind: ResultTimeout, Err: cause}
}

// Failed returns a failed result.
func Failed(err error) Result {
	return Result{Kind: ResultFailed, Err: err}
}

// Error returns nil for OK results. Timeout errors wrap ErrTimeout.
func (r Result) Error() error {
	switch r.Kind {
	case ResultOK:
		return nil
	case ResultTimeout:
		if r.Err == nil {
			return ErrTimeout
		}
		return fmt.Errorf("%w: %w", ErrTimeout, r.Err)
	default:
		if r.Err == nil {
			return errors.New("ldap: group search failed")
		}
		return fmt.Errorf("ldap: group search failed: %w", r.Err)
	}
}
