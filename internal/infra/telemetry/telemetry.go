package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fares7elsadek/Readly/internal/core/port"
)

const namespace = "readly"

// AuthMetrics records authentication outcomes as Prometheus counters.
type AuthMetrics struct {
	logins        *prometheus.CounterVec
	tokensIssued  *prometheus.CounterVec
	verifications *prometheus.CounterVec
	mailDispatch  *prometheus.CounterVec
}

var _ port.AuthMetrics = (*AuthMetrics)(nil)

// NewAuthMetrics registers the auth counters on reg. Counters already
// registered by an earlier call are reused.
func NewAuthMetrics(reg prometheus.Registerer) (*AuthMetrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	logins, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "logins_total",
		Help:      "Login attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}
	issued, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "tokens_issued_total",
		Help:      "Tokens issued partitioned by kind.",
	}, "kind")
	if err != nil {
		return nil, err
	}
	verifications, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "verifications_total",
		Help:      "Email verification attempts partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}
	mail, err := registerCounterVec(reg, prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "auth",
		Name:      "mail_dispatch_total",
		Help:      "Verification mail deliveries partitioned by outcome.",
	}, "outcome")
	if err != nil {
		return nil, err
	}

	return &AuthMetrics{
		logins:        logins,
		tokensIssued:  issued,
		verifications: verifications,
		mailDispatch:  mail,
	}, nil
}

func (m *AuthMetrics) ObserveLogin(outcome string) {
	m.logins.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveTokenIssued(kind string) {
	m.tokensIssued.WithLabelValues(kind).Inc()
}

func (m *AuthMetrics) ObserveVerification(outcome string) {
	m.verifications.WithLabelValues(outcome).Inc()
}

func (m *AuthMetrics) ObserveMailDispatch(outcome string) {
	m.mailDispatch.WithLabelValues(outcome).Inc()
}

func registerCounterVec(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	vec := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return vec, nil
}
