package metrics

import "time"

// Outcome labels shared by the collectors.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
	OutcomeUnknown = "unknown_user"
)

// RealmMetrics records credential store and realm activity.
//
// Implementations must be safe for concurrent use. A nil RealmMetrics is
// valid at every call site and disables recording.
type RealmMetrics interface {
	// ObserveReload records a users-file reload. err is the swallowed parse
	// failure, if any; users is the published count.
	ObserveReload(realm string, users int, err error)

	// ObserveAuthentication records one authentication attempt.
	ObserveAuthentication(realm, outcome string, duration time.Duration)
}

// GroupMetrics records directory group resolutions.
type GroupMetrics interface {
	ObserveGroupResolution(outcome string, duration time.Duration)
}

// TrustMetrics records certificate trust restriction decisions.
type TrustMetrics interface {
	ObserveTrustDecision(outcome string)
	SetTrustedNames(n int)
}
