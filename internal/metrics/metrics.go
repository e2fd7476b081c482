package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter the auth service emits. It is constructed once
// in main and passed by reference into the services and routing layer; there
// is no package-level mutable state, so tests can build isolated instances
// against their own registries.
type Metrics struct {
	LoginAttempts   *prometheus.CounterVec
	Rotations       *prometheus.CounterVec
	ReplaysDetected prometheus.Counter
	Lockouts        prometheus.Counter
	SweepDeleted    *prometheus.CounterVec
}

// New creates the metric set and registers it on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbook",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"result"}),
		Rotations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbook",
			Subsystem: "auth",
			Name:      "refresh_rotations_total",
			Help:      "Refresh token rotation attempts by outcome.",
		}, []string{"result"}),
		ReplaysDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotbook",
			Subsystem: "auth",
			Name:      "refresh_replays_detected_total",
			Help:      "Replayed refresh ids that triggered family-wide revocation.",
		}),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "slotbook",
			Subsystem: "auth",
			Name:      "account_lockouts_total",
			Help:      "Accounts locked by the brute-force policy.",
		}),
		SweepDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "slotbook",
			Subsystem: "auth",
			Name:      "sweep_deleted_rows_total",
			Help:      "Expired rows removed by the background sweep, by table.",
		}, []string{"table"}),
	}

	reg.MustRegister(m.LoginAttempts, m.Rotations, m.ReplaysDetected, m.Lockouts, m.SweepDeleted)
	return m
}
