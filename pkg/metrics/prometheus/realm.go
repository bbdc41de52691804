// Package prometheus provides Prometheus-backed implementations of the
// interfaces in pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/filerealm/pkg/metrics"
)

// realmMetrics is the Prometheus implementation of metrics.RealmMetrics.
type realmMetrics struct {
	reloads      *prometheus.CounterVec
	users        *prometheus.GaugeVec
	lastReload   *prometheus.GaugeVec
	attempts     *prometheus.CounterVec
	authDuration *prometheus.HistogramVec
}

// NewRealmMetrics creates a new Prometheus-backed RealmMetrics instance.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRealmMetrics() metrics.RealmMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &realmMetrics{
		reloads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "users_file_reloads_total",
				Help:      "Total number of users file reloads by result",
			},
			[]string{"realm", "result"}, // "ok", "failed"
		),
		users: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "users",
				Help:      "Number of users in the published snapshot",
			},
			[]string{"realm"},
		),
		lastReload: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "users_file_last_reload_timestamp_seconds",
				Help:      "Unix time of the last published users snapshot",
			},
			[]string{"realm"},
		),
		attempts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "attempts_total",
				Help:      "Total number of authentication attempts by outcome",
			},
			[]string{"realm", "outcome"},
		),
		authDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "authentication_duration_milliseconds",
				Help:      "Duration of password verification in milliseconds",
				Buckets: []float64{
					0.01, // plain / SHA
					0.1,
					1,   // md5-crypt
					10,
					50,  // bcrypt cost 10
					100,
					250,
					1000, // high bcrypt cost
				},
			},
			[]string{"realm"},
		),
	}
}

func (m *realmMetrics) ObserveReload(realm string, users int, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.reloads.WithLabelValues(realm, result).Inc()
	m.users.WithLabelValues(realm).Set(float64(users))
	m.lastReload.WithLabelValues(realm).SetToCurrentTime()
}

func (m *realmMetrics) ObserveAuthentication(realm, outcome string, duration time.Duration) {
	m.attempts.WithLabelValues(realm, outcome).Inc()
	m.authDuration.WithLabelValues(realm).Observe(float64(duration.Microseconds()) / 1000)
}

// groupMetrics is the Prometheus implementation of metrics.GroupMetrics.
type groupMetrics struct {
	resolutions *prometheus.CounterVec
	duration    prometheus.Histogram
}

// NewGroupMetrics creates a Prometheus-backed GroupMetrics, or nil when
// metrics are disabled.
func NewGroupMetrics() metrics.GroupMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &groupMetrics{
		resolutions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "ldap_group_resolutions_total",
				Help:      "Total number of directory group resolutions by outcome",
			},
			[]string{"outcome"}, // "success", "timeout", "error"
		),
		duration: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metrics.Namespace,
				Name:      "ldap_group_resolution_duration_milliseconds",
				Help:      "Duration of directory group resolutions in milliseconds",
				Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000},
			},
		),
	}
}

func (m *groupMetrics) ObserveGroupResolution(outcome string, duration time.Duration) {
	m.resolutions.WithLabelValues(outcome).Inc()
	m.duration.Observe(float64(duration.Microseconds()) / 1000)
}

// trustMetrics is the Prometheus implementation of metrics.TrustMetrics.
type trustMetrics struct {
	decisions    *prometheus.CounterVec
	trustedNames prometheus.Gauge
}

// NewTrustMetrics creates a Prometheus-backed TrustMetrics, or nil when
// metrics are disabled.
func NewTrustMetrics() metrics.TrustMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &trustMetrics{
		decisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metrics.Namespace,
				Name:      "trust_decisions_total",
				Help:      "Total number of certificate trust restriction decisions",
			},
			[]string{"outcome"}, // "success", "failure", "error"
		),
		trustedNames: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: metrics.Namespace,
				Name:      "trust_restricted_names",
				Help:      "Number of trusted name patterns currently loaded",
			},
		),
	}
}

func (m *trustMetrics) ObserveTrustDecision(outcome string) {
	m.decisions.WithLabelValues(outcome).Inc()
}

func (m *trustMetrics) SetTrustedNames(n int) {
	m.trustedNames.Set(float64(n))
}
