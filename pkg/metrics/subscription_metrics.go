package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SubscriptionMetrics records lifecycle and payment verification outcomes.
type SubscriptionMetrics interface {
	IncTransition(operation, outcome string)
	IncVerification(provider, outcome string)
	ObserveVerificationDuration(provider string, d time.Duration)
}

type subscriptionMetrics struct {
	transitions          *prometheus.CounterVec
	verifications        *prometheus.CounterVec
	verificationDuration *prometheus.HistogramVec
}

// NewSubscriptionMetrics registers the collectors on registry.
func NewSubscriptionMetrics(registry prometheus.Registerer) SubscriptionMetrics {
	factory := promauto.With(registry)

	return &subscriptionMetrics{
		transitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "subscription_transitions_total",
				Help: "Subscription lifecycle operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		verifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_verifications_total",
				Help: "Payment verifications by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		verificationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_verification_duration_seconds",
				Help:    "Time spent fetching and checking a payment with the provider",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
	}
}

func (m *subscriptionMetrics) IncTransition(operation, outcome string) {
	m.transitions.WithLabelValues(operation, outcome).Inc()
}

func (m *subscriptionMetrics) IncVerification(provider, outcome string) {
	m.verifications.WithLabelValues(provider, outcome).Inc()
}

func (m *subscriptionMetrics) ObserveVerificationDuration(provider string, d time.Duration) {
	m.verificationDuration.WithLabelValues(provider).Observe(d.Seconds())
}

type nopMetrics struct{}

// NewNopMetrics discards everything.
func NewNopMetrics() SubscriptionMetrics { return nopMetrics{} }

func (nopMetrics) IncTransition(string, string)                      {}
func (nopMetrics) IncVerification(string, string)                    {}
func (nopMetrics) ObserveVerificationDuration(string, time.Duration) {}
