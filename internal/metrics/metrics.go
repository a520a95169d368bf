package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/fx"
)

// Metrics holds the service's prometheus collectors, exposed on /metrics.
type Metrics struct {
	WebhookEvents      *prometheus.CounterVec
	TokenVerifications *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		WebhookEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_webhook_events_total",
			Help: "Inbound payment webhook events by type and outcome.",
		}, []string{"event_type", "outcome"}),
		TokenVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "paywall_token_verifications_total",
			Help: "Bearer token verification attempts by outcome.",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) RecordWebhookEvent(eventType, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) RecordTokenVerification(outcome string) {
	if m == nil {
		return
	}
	m.TokenVerifications.WithLabelValues(outcome).Inc()
}

var Module = fx.Module("metrics",
	fx.Provide(New),
)
