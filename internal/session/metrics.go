package session

import "github.com/prometheus/client_golang/prometheus"

const (
	metricsNamespace = "mpayctl"
	metricsSubsystem = "session"
)

// Metrics counts pipeline and refresh activity.
type Metrics struct {
	Requests         prometheus.Counter
	AuthRetries      prometheus.Counter
	RefreshAttempts  prometheus.Counter
	RefreshFailures  prometheus.Counter
	RefreshShared    prometheus.Counter
	PermissionDenied prometheus.Counter
	SessionsLost     prometheus.Counter
}

// NewMetrics creates the counters and registers them with reg. A nil reg
// leaves them unregistered, which is what tests and one-shot commands want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: newCounter("requests_total",
			"Requests sent through the authenticated pipeline, replays included."),
		AuthRetries: newCounter("auth_retries_total",
			"Requests replayed after a 401 and a token refresh."),
		RefreshAttempts: newCounter("refresh_attempts_total",
			"Refresh exchanges sent to the backend."),
		RefreshFailures: newCounter("refresh_failures_total",
			"Refresh exchanges that failed and cleared the session."),
		RefreshShared: newCounter("refresh_shared_total",
			"Refresh callers that shared an exchange with another caller."),
		PermissionDenied: newCounter("permission_denied_total",
			"Requests rejected with 403."),
		SessionsLost: newCounter("sessions_lost_total",
			"Sessions ended by an irrecoverable authentication failure."),
	}

	if reg != nil {
		reg.MustRegister(
			m.Requests,
			m.AuthRetries,
			m.RefreshAttempts,
			m.RefreshFailures,
			m.RefreshShared,
			m.PermissionDenied,
			m.SessionsLost,
		)
	}

	return m
}

func newCounter(name, help string) prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      name,
		Help:      help,
	})
}
