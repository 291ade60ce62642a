package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// WebhookMetrics интерфейс для метрик биллинга
type WebhookMetrics interface {
	IncEventReceived(eventType string)
	IncEventOutcome(eventType, outcome string)
	IncCheckoutSessionCreated()
}

type webhookMetrics struct {
	log              *logger.Logger
	eventsReceived   *prometheus.CounterVec
	eventsOutcome    *prometheus.CounterVec
	checkoutSessions prometheus.Counter
}

// NewWebhookMetrics создает новые метрики биллинга
func NewWebhookMetrics(registry *prometheus.Registry, log *logger.Logger) WebhookMetrics {
	eventsReceived := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_received_total",
			Help: "The total number of verified webhook events by type",
		},
		[]string{"type"},
	)

	eventsOutcome := promauto.With(registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "billing_webhook_events_outcome_total",
			Help: "The total number of processed webhook events by type and outcome",
		},
		[]string{"type", "outcome"},
	)

	checkoutSessions := promauto.With(registry).NewCounter(
		prometheus.CounterOpts{
			Name: "billing_checkout_sessions_created_total",
			Help: "The total number of created checkout sessions",
		},
	)

	return &webhookMetrics{
		log:              log,
		eventsReceived:   eventsReceived,
		eventsOutcome:    eventsOutcome,
		checkoutSessions: checkoutSessions,
	}
}

// IncEventReceived увеличивает счетчик принятых событий
func (m *webhookMetrics) IncEventReceived(eventType string) {
	m.eventsReceived.WithLabelValues(eventType).Inc()
}

// IncEventOutcome увеличивает счетчик исходов обработки событий
func (m *webhookMetrics) IncEventOutcome(eventType, outcome string) {
	m.eventsOutcome.WithLabelValues(eventType, outcome).Inc()
}

// IncCheckoutSessionCreated увеличивает счетчик созданных checkout-сессий
func (m *webhookMetrics) IncCheckoutSessionCreated() {
	m.checkoutSessions.Inc()
}
