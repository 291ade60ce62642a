package stripe

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// WebhookVerifier проверяет подпись вебхуков Stripe и декодирует события
// в доменное представление. Подпись считается по точным байтам тела,
// поэтому тело запроса передается сюда сырым.
type WebhookVerifier struct {
	secret string
	log    *logger.Logger
}

// NewWebhookVerifier создает новый верификатор вебхуков.
func NewWebhookVerifier(secret string, log *logger.Logger) (*WebhookVerifier, error) {
	if secret == "" {
		return nil, fmt.Errorf("stripe: %w: webhook secret is required", domain.ErrMissingConfiguration)
	}
	return &WebhookVerifier{
		secret: secret,
		log:    log,
	}, nil
}

// VerifyAndDecode проверяет подпись и декодирует событие.
// До успешной проверки подписи содержимое события не используется.
func (v *WebhookVerifier) VerifyAndDecode(payload []byte, sigHeader string) (domain.BillingEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, v.secret)
	if err != nil {
		v.log.Errorw("Webhook signature verification failed", "error", err)
		return domain.BillingEvent{}, fmt.Errorf("%w: %v", domain.ErrSignatureVerification, err)
	}

	v.log.Infow("Received verified Stripe event", "eventID", event.ID, "eventType", event.Type)
	return decodeEvent(event)
}

// Форматы полезной нагрузки событий. Webhook-события несут идентификаторы
// связанных объектов строками (без expand).
type checkoutSessionPayload struct {
	ID           string            `json:"id"`
	Customer     string            `json:"customer"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionPayload struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

type invoicePayload struct {
	ID           string `json:"id"`
	Customer     string `json:"customer"`
	Subscription string `json:"subscription"`
}

type paymentIntentPayload struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// decodeEvent превращает событие Stripe в размеченное объединение.
// Каждый вариант несет только поля, которые у него легитимно есть.
func decodeEvent(event stripe.Event) (domain.BillingEvent, error) {
	decoded := domain.BillingEvent{
		ID:      event.ID,
		Type:    domain.EventType(event.Type),
		Created: time.Unix(event.Created, 0),
	}

	switch decoded.Type {
	case domain.EventCheckoutSessionCompleted:
		var p checkoutSessionPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("failed to decode checkout session payload: %w", err)
		}
		decoded.CheckoutSession = &domain.CheckoutSessionData{
			ID:             p.ID,
			CustomerID:     p.Customer,
			SubscriptionID: p.Subscription,
			Metadata:       p.Metadata,
		}

	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var p subscriptionPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("failed to decode subscription payload: %w", err)
		}
		decoded.Subscription = &domain.SubscriptionData{
			ID:         p.ID,
			CustomerID: p.Customer,
			Status:     domain.SubscriptionStatus(p.Status),
			Metadata:   p.Metadata,
		}

	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		var p invoicePayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("failed to decode invoice payload: %w", err)
		}
		decoded.Invoice = &domain.InvoiceData{
			ID:             p.ID,
			CustomerID:     p.Customer,
			SubscriptionID: p.Subscription,
		}

	case domain.EventPaymentIntentSucceeded, domain.EventPaymentIntentFailed:
		var p paymentIntentPayload
		if err := json.Unmarshal(event.Data.Raw, &p); err != nil {
			return domain.BillingEvent{}, fmt.Errorf("failed to decode payment intent payload: %w", err)
		}
		decoded.PaymentIntent = &domain.PaymentIntentData{
			ID:       p.ID,
			Amount:   p.Amount,
			Currency: p.Currency,
		}

	default:
		// Неизвестный тип события: оставляем только заголовок,
		// реконсилятор ответит no-op
	}

	return decoded, nil
}
