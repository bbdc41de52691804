package auth

import (
	"context"
	"errors"
)

// Status is the outcome of an authentication attempt.
type Status int

const (
	// StatusFailure means the credentials were not accepted.
	StatusFailure Status = iota
	// StatusSuccess means the credentials were accepted.
	StatusSuccess
)

func (s Status) String() string {
	if s == StatusSuccess {
		return "success"
	}
	return "failure"
}

// Result is the outcome of an authentication attempt. A successful result
// always carries a User; a failed one never does.
type Result struct {
	Status Status
	User   *User

	// Message explains a failure for logs. It is never shown to clients.
	Message string
}

// Success returns a successful result for user.
func Success(user *User) Result {
	return Result{Status: StatusSuccess, User: user}
}

// Failure returns a failed result with an optional diagnostic message.
func Failure(message string) Result {
	return Result{Status: StatusFailure, Message: message}
}

// IsSuccess reports whether the attempt succeeded.
func (r Result) IsSuccess() bool {
	return r.Status == StatusSuccess && r.User != nil
}

// Provider defines a pluggable username/password realm.
//
// Thread safety: implementations must be safe for concurrent use.
type Provider interface {
	// Name returns the realm name for logs and diagnostics.
	Name() string

	// Supports reports whether the realm should be consulted for username.
	// Realms that only know a fixed set of users may decline early.
	Supports(username string) bool

	// Authenticate verifies the credentials. A non-nil error means the realm
	// could not reach a decision (I/O, timeout), which is distinct from a
	// Failure result.
	Authenticate(ctx context.Context, creds Credentials) (Result, error)
}

// Authenticator chains providers and tries each in order.
//
// The first provider returning a successful Result wins. Failures move on
// to the next provider. An error from a provider stops the chain, since an
// undecided realm must not be skipped silently.
type Authenticator struct {
	providers []Provider
}

// NewAuthenticator creates an Authenticator over providers, tried in order.
func NewAuthenticator(providers ...Provider) *Authenticator {
	return &Authenticator{providers: providers}
}

// Authenticate runs creds through the provider chain.
//
// Returns ErrUnsupportedMechanism when no provider supports the username and
// ErrAuthFailed when every supporting provider rejected the credentials.
func (a *Authenticator) Authenticate(ctx context.Context, creds Credentials) (Result, error) {
	if creds.Username == "" {
		return Failure("empty username"), ErrInvalidCredentials
	}

	tried := 0
	for _, p := range a.providers {
		if !p.Supports(creds.Username) {
			continue
		}
		tried++
		res, err := p.Authenticate(ctx, creds)
		if err != nil {
			return Failure(err.Error()), err
		}
		if res.IsSuccess() {
			return res, nil
		}
	}
	if tried == 0 {
		return Failure("no realm supports user"), ErrUnsupportedMechanism
	}
	return Failure("rejected by all realms"), ErrAuthFailed
}

// Providers returns the registered providers.
func (a *Authenticator) Providers() []Provider {
	return a.providers
}

// Standard authentication errors.
var (
	// ErrAuthFailed indicates that the credentials were checked and rejected.
	ErrAuthFailed = errors.New("auth: authentication failed")

	// ErrUnsupportedMechanism indicates that no provider handles the user.
	ErrUnsupportedMechanism = errors.New("auth: no realm supports the user")

	// ErrInvalidCredentials indicates malformed credentials (e.g. empty username).
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)
