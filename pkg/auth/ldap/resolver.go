// Package ldap resolves a user's groups with a directory search.
//
// The resolver reports three distinct outcomes (OK, Timeout, Failed) so that
// a slow directory can never be mistaken for a user without groups.
package ldap

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/internal/telemetry"
	"github.com/marmos91/filerealm/pkg/metrics"
)

// DefaultFilter matches groups listing the user DN as a member.
const DefaultFilter = "(member={0})"

// Searcher runs one directory search. *ldap.Conn satisfies it.
type Searcher interface {
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
}

// Scope names accepted in configuration.
const (
	ScopeBase     = "base"
	ScopeOneLevel = "one_level"
	ScopeSubTree  = "sub_tree"
)

// ParseScope converts a configured scope name to a go-ldap scope.
func ParseScope(s string) (int, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", ScopeSubTree, "subtree", "sub":
		return ldap.ScopeWholeSubtree, nil
	case ScopeOneLevel, "onelevel", "one":
		return ldap.ScopeSingleLevel, nil
	case ScopeBase, "base_object":
		return ldap.ScopeBaseObject, nil
	default:
		return 0, fmt.Errorf("ldap: unknown search scope %q", s)
	}
}

// SearchGroupsResolver finds groups with a search below BaseDN.
type SearchGroupsResolver struct {
	// BaseDN is where group entries live.
	BaseDN string

	// Scope is a go-ldap scope (ldap.ScopeWholeSubtree etc.).
	Scope int

	// Filter with "{0}" standing for the escaped user value.
	// Empty means DefaultFilter.
	Filter string

	// Attribute names the group attribute to return. Empty or "dn" returns
	// the group entry DN.
	Attribute string

	// UserAttribute, when set to anything but "dn", is read from the user
	// entry and substituted into the filter instead of the user DN. A user
	// without the attribute belongs to no groups.
	UserAttribute string

	// Metrics is optional.
	Metrics metrics.GroupMetrics
}

// Resolve runs the search asynchronously. The channel receives exactly one
// Result and is then closed.
func (r *SearchGroupsResolver) Resolve(ctx context.Context, conn Searcher, userDN string, timeout time.Duration) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		out <- r.ResolveSync(ctx, conn, userDN, timeout)
	}()
	return out
}

// ResolveSync runs the search and waits for its Result.
func (r *SearchGroupsResolver) ResolveSync(ctx context.Context, conn Searcher, userDN string, timeout time.Duration) Result {
	ctx, span := telemetry.StartLDAPSpan(ctx, "resolve_groups", r.BaseDN, userDN)
	defer span.End()

	start := time.Now()
	res := r.resolve(ctx, conn, userDN, timeout)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeSuccess
	switch res.Kind {
	case ResultTimeout:
		outcome = metrics.OutcomeTimeout
		telemetry.RecordError(ctx, res.Error())
		logger.WarnCtx(ctx, "group search timed out",
			logger.KeyUserDN, userDN,
			logger.KeyBaseDN, r.BaseDN,
			logger.KeyTimeout, timeout.String(),
		)
	case ResultFailed:
		outcome = metrics.OutcomeError
		telemetry.RecordError(ctx, res.Error())
		logger.WarnCtx(ctx, "group search failed",
			logger.KeyUserDN, userDN,
			logger.KeyBaseDN, r.BaseDN,
			logger.KeyError, res.Err,
		)
	default:
		logger.DebugCtx(ctx, "resolved groups",
			logger.KeyUserDN, userDN,
			logger.KeyGroups, res.Groups,
			logger.KeyDurationMs, float64(elapsed.Microseconds())/1000,
		)
	}
	if r.Metrics != nil {
		r.Metrics.ObserveGroupResolution(outcome, elapsed)
	}
	return res
}

func (r *SearchGroupsResolver) resolve(ctx context.Context, conn Searcher, userDN string, timeout time.Duration) Result {
	if conn == nil {
		return Failed(errors.New("nil connection"))
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value := userDN
	if attr := r.UserAttribute; attr != "" && !strings.EqualFold(attr, "dn") {
		req := ldap.NewSearchRequest(userDN, ldap.ScopeBaseObject, ldap.NeverDerefAliases,
			1, timeLimitSeconds(timeout), false, "(objectClass=*)", []string{attr}, nil)
		sr, res := search(ctx, conn, req)
		if sr == nil {
			return res
		}
		if len(sr.Entries) == 0 {
			return OK(nil)
		}
		value = sr.Entries[0].GetAttributeValue(attr)
		if value == "" {
			return OK(nil)
		}
	}

	attrs := []string{"1.1"} // no attributes, DN only
	if !r.returnsDN() {
		attrs = []string{r.Attribute}
	}
	req := ldap.NewSearchRequest(r.BaseDN, r.Scope, ldap.NeverDerefAliases,
		0, timeLimitSeconds(timeout), false, r.filter(value), attrs, nil)

	sr, res := search(ctx, conn, req)
	if sr == nil {
		return res
	}

	groups := make([]string, 0, len(sr.Entries))
	for _, e := range sr.Entries {
		if r.returnsDN() {
			groups = append(groups, e.DN)
			continue
		}
		groups = append(groups, e.GetAttributeValues(r.Attribute)...)
	}
	return OK(groups)
}

func (r *SearchGroupsResolver) returnsDN() bool {
	return r.Attribute == "" || strings.EqualFold(r.Attribute, "dn")
}

func (r *SearchGroupsResolver) filter(value string) string {
	f := r.Filter
	if f == "" {
		f = DefaultFilter
	}
	return strings.ReplaceAll(f, "{0}", ldap.EscapeFilter(value))
}

type searchOutcome struct {
	sr  *ldap.SearchResult
	err error
}

// search runs req on a separate goroutine so the context deadline is
// enforced even when the connection never answers. A nil SearchResult comes
// with a Timeout or Failed Result.
func search(ctx context.Context, conn Searcher, req *ldap.SearchRequest) (*ldap.SearchResult, Result) {
	done := make(chan searchOutcome, 1)
	go func() {
		sr, err := conn.Search(req)
		done <- searchOutcome{sr: sr, err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, Timeout(ctx.Err())
		}
		return nil, Failed(ctx.Err())
	case o := <-done:
		if o.err != nil {
			if isTimeout(o.err) {
				return nil, Timeout(o.err)
			}
			return nil, Failed(o.err)
		}
		if o.sr == nil {
			return nil, Failed(errors.New("empty search response"))
		}
		return o.sr, Result{}
	}
}

// isTimeout classifies go-ldap errors. The client-side response timeout is
// reported as a network error with a fixed message.
func isTimeout(err error) bool {
	if ldap.IsErrorWithCode(err, ldap.LDAPResultTimeLimitExceeded) ||
		ldap.IsErrorWithCode(err, ldap.LDAPResultTimeout) {
		return true
	}
	var le *ldap.Error
	if errors.As(err, &le) && le.ResultCode == ldap.ErrorNetwork && le.Err != nil {
		return strings.Contains(le.Err.Error(), "timed out")
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// timeLimitSeconds converts the client timeout to the server-side time
// limit, rounding up. Zero means no limit.
func timeLimitSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
