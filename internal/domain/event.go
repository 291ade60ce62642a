package domain

import (
	"time"
)

// EventType тип вебхук-события от платежного провайдера
type EventType string

const (
	EventCheckoutSessionCompleted EventType = "checkout.session.completed"
	EventSubscriptionCreated      EventType = "customer.subscription.created"
	EventSubscriptionUpdated      EventType = "customer.subscription.updated"
	EventSubscriptionDeleted      EventType = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed     EventType = "invoice.payment_failed"
	EventPaymentIntentSucceeded   EventType = "payment_intent.succeeded"
	EventPaymentIntentFailed      EventType = "payment_intent.payment_failed"
)

// CheckoutSessionData данные события завершенной checkout-сессии
type CheckoutSessionData struct {
	ID             string
	CustomerID     string
	SubscriptionID string
	Metadata       map[string]string
}

// SubscriptionData данные события жизненного цикла подписки
type SubscriptionData struct {
	ID         string
	CustomerID string
	Status     SubscriptionStatus
	Metadata   map[string]string
}

// InvoiceData данные события по инвойсу
type InvoiceData struct {
	ID             string
	CustomerID     string
	SubscriptionID string
}

// PaymentIntentData данные события по платежному намерению
type PaymentIntentData struct {
	ID       string
	Amount   int64
	Currency string
}

// BillingEvent представляет верифицированное событие биллинга.
// Размеченное объединение: заполнен ровно один из указателей на данные,
// соответствующий типу события. Декодируется один раз на границе.
type BillingEvent struct {
	ID      string
	Type    EventType
	Created time.Time

	CheckoutSession *CheckoutSessionData
	Subscription    *SubscriptionData
	Invoice         *InvoiceData
	PaymentIntent   *PaymentIntentData
}

// UserID извлекает идентификатор пользователя из метаданных события.
// Для событий по инвойсам идентификатор недоступен напрямую и
// восстанавливается через запрос подписки у провайдера.
func (e BillingEvent) UserID() string {
	switch {
	case e.CheckoutSession != nil:
		return e.CheckoutSession.Metadata[MetadataUserIDKey]
	case e.Subscription != nil:
		return e.Subscription.Metadata[MetadataUserIDKey]
	default:
		return ""
	}
}

// MetadataUserIDKey ключ метаданных, связывающий объекты Stripe с пользователем
const MetadataUserIDKey = "uid"
