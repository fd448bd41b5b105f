package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the registration flow. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	OTPDispatches         *prometheus.CounterVec
	CodeVerifications     *prometheus.CounterVec
	RegistrationsComplete prometheus.Counter
	RegistrationResets    *prometheus.CounterVec
	StoreOperationSeconds *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		OTPDispatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guest_registration_otp_dispatches_total",
			Help: "OTP emails handed to the email channel, by result",
		}, []string{"result"}),
		CodeVerifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guest_registration_code_verifications_total",
			Help: "Submitted OTP codes, by outcome",
		}, []string{"outcome"}),
		RegistrationsComplete: factory.NewCounter(prometheus.CounterOpts{
			Name: "guest_registration_completed_total",
			Help: "Guests committed to the roster",
		}),
		RegistrationResets: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "guest_registration_resets_total",
			Help: "Sessions reset back to collecting fields, by cause",
		}, []string{"cause"}),
		StoreOperationSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "guest_registration_store_operation_seconds",
			Help:    "Latency of guest store operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementOTPDispatches(result string) {
	if m == nil {
		return
	}
	m.OTPDispatches.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementCodeVerifications(outcome string) {
	if m == nil {
		return
	}
	m.CodeVerifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRegistrationsCompleted() {
	if m == nil {
		return
	}
	m.RegistrationsComplete.Inc()
}

func (m *Metrics) IncrementResets(cause string) {
	if m == nil {
		return
	}
	m.RegistrationResets.WithLabelValues(cause).Inc()
}

func (m *Metrics) ObserveStoreOperation(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.StoreOperationSeconds.WithLabelValues(operation).Observe(seconds)
}
