package obs

import "github.com/prometheus/client_golang/prometheus"

// AuthMetrics counts authentication outcomes. It is handed to the
// identity service as an explicit dependency rather than looked up from
// a shared registry.
type AuthMetrics struct {
	registrations prometheus.Counter
	loginAttempts *prometheus.CounterVec
}

// NewAuthMetrics creates and registers the authentication counters.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		registrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "user_registrations_total",
			Help: "Total number of user registrations.",
		}),
		loginAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "login_attempts_total",
				Help: "Total number of login attempts.",
			},
			[]string{"status"},
		),
	}
	reg.MustRegister(m.registrations, m.loginAttempts)
	return m
}

// Registration increments the registration counter.
func (m *AuthMetrics) Registration() {
	m.registrations.Inc()
}

// LoginAttempt increments the login attempt counter for the given status
// ("success" or "failure").
func (m *AuthMetrics) LoginAttempt(status string) {
	m.loginAttempts.WithLabelValues(status).Inc()
}
