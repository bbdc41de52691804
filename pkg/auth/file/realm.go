package file

import (
	"context"
	"time"

	"github.com/marmos91/filerealm/internal/logger"
	"github.com/marmos91/filerealm/internal/telemetry"
	"github.com/marmos91/filerealm/pkg/auth"
	"github.com/marmos91/filerealm/pkg/metrics"
)

// Realm is an auth.Provider backed by a users file and an optional
// users_roles file.
type Realm struct {
	name    string
	users   *Store
	roles   *RolesStore
	metrics metrics.RealmMetrics
}

var _ auth.Provider = (*Realm)(nil)

// NewRealm creates a realm. roles and m may be nil.
func NewRealm(name string, users *Store, roles *RolesStore, m metrics.RealmMetrics) *Realm {
	return &Realm{name: name, users: users, roles: roles, metrics: m}
}

// Name returns the realm name.
func (r *Realm) Name() string {
	return r.name
}

// Supports reports whether the users file currently defines username.
func (r *Realm) Supports(username string) bool {
	return r.users.UserExists(username)
}

// Users returns the underlying credential store.
func (r *Realm) Users() *Store {
	return r.users
}

// Authenticate verifies creds against the users file. File realms always
// reach a decision, so the error is always nil.
func (r *Realm) Authenticate(ctx context.Context, creds auth.Credentials) (auth.Result, error) {
	ctx, span := telemetry.StartRealmSpan(ctx, r.name, "authenticate", telemetry.Username(creds.Username))
	defer span.End()

	// One snapshot decides both the result and its classification.
	snap := r.users.Snapshot()
	start := time.Now()
	res := r.users.verifyIn(snap, creds.Username, creds.Password)
	elapsed := time.Since(start)

	outcome := metrics.OutcomeFailure
	switch {
	case res.IsSuccess():
		outcome = metrics.OutcomeSuccess
		res.User.Realm = r.name
		if r.roles != nil {
			res.User.Roles = r.roles.Roles(creds.Username)
		}
	case !snap.Has(creds.Username):
		outcome = metrics.OutcomeUnknown
	}

	telemetry.SetAttributes(ctx, telemetry.Outcome(outcome))
	if r.metrics != nil {
		r.metrics.ObserveAuthentication(r.name, outcome, elapsed)
	}

	logger.DebugCtx(ctx, "authentication attempt",
		logger.KeyRealm, r.name,
		logger.KeyUsername, creds.Username,
		logger.KeyOutcome, outcome,
		logger.KeyDurationMs, float64(elapsed.Microseconds())/1000,
	)
	return res, nil
}
