package service

import (
	"context"
	"fmt"
	"time"

	stripeint "github.com/Dhoini/Billing-sync-service/internal/integration/stripe"
	"github.com/Dhoini/Billing-sync-service/internal/kafka/producer"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/internal/metrics"
	"github.com/Dhoini/Billing-sync-service/internal/repository"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// SubscriptionLookup восстанавливает данные подписки по ее Stripe ID.
// Нужен событиям инвойсов, которые не несут userID в собственных метаданных.
type SubscriptionLookup interface {
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripeint.ProviderSubscription, error)
}

// ReconcilerService интерфейс сервиса сверки событий биллинга
type ReconcilerService interface {
	// ProcessEvent применяет верифицированное событие к записи пользователя.
	// Возврат ошибки означает ответ 5xx: провайдер доставит событие повторно.
	ProcessEvent(ctx context.Context, event domain.BillingEvent) error
}

// reconcilerService реализация сервиса сверки.
// Каждый переход выражен абсолютными присваиваниями полей, поэтому
// повторная доставка события идемпотентна. Порядок применения -
// порядок доставки (last-write-wins по прибытию).
type reconcilerService struct {
	records  repository.UserRecordRepository
	eventLog repository.EventLogRepository // Может быть nil
	lookup   SubscriptionLookup
	producer producer.BillingProducer // Может быть nil
	metrics  metrics.WebhookMetrics
	log      *logger.Logger
}

// NewReconcilerService создает новый сервис сверки событий биллинга
func NewReconcilerService(
	records repository.UserRecordRepository,
	eventLog repository.EventLogRepository,
	lookup SubscriptionLookup,
	billingProducer producer.BillingProducer,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) ReconcilerService {
	return &reconcilerService{
		records:  records,
		eventLog: eventLog,
		lookup:   lookup,
		producer: billingProducer,
		metrics:  webhookMetrics,
		log:      log,
	}
}

// ProcessEvent применяет событие и фиксирует исход в журнале и метриках
func (s *reconcilerService) ProcessEvent(ctx context.Context, event domain.BillingEvent) error {
	userID, outcome, err := s.applyEvent(ctx, event)

	if s.metrics != nil {
		s.metrics.IncEventOutcome(string(event.Type), string(outcome))
	}
	s.recordAudit(ctx, event, userID, outcome, err)

	if err != nil {
		return err
	}

	// Уведомляем потребителей об успешно примененном переходе
	if outcome == repository.EventOutcomeApplied && s.producer != nil {
		go s.publishChange(context.WithoutCancel(ctx), userID, event)
	}

	return nil
}

// applyEvent классифицирует событие и применяет переход состояния.
// Возвращает userID (если атрибутирован), исход и ошибку обработки.
func (s *reconcilerService) applyEvent(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	switch event.Type {
	case domain.EventCheckoutSessionCompleted:
		return s.applyCheckoutCompleted(ctx, event)
	case domain.EventSubscriptionCreated:
		return s.applySubscriptionCreated(ctx, event)
	case domain.EventSubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, event)
	case domain.EventSubscriptionDeleted:
		return s.applySubscriptionDeleted(ctx, event)
	case domain.EventInvoicePaymentSucceeded:
		return s.applyInvoicePaymentSucceeded(ctx, event)
	case domain.EventInvoicePaymentFailed:
		return s.applyInvoicePaymentFailed(ctx, event)
	case domain.EventPaymentIntentSucceeded, domain.EventPaymentIntentFailed:
		// Только наблюдаемость, состояние не меняем
		s.log.Infow("Payment intent event observed", "eventID", event.ID, "eventType", event.Type)
		return "", repository.EventOutcomeIgnored, nil
	default:
		s.log.Infow("Ignored unhandled webhook event type", "eventID", event.ID, "eventType", event.Type)
		return "", repository.EventOutcomeIgnored, nil
	}
}

// applyCheckoutCompleted обрабатывает завершение checkout-сессии
func (s *reconcilerService) applyCheckoutCompleted(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	cs := event.CheckoutSession
	userID := cs.Metadata[domain.MetadataUserIDKey]
	if userID == "" {
		s.log.Warnw("Checkout session completed without user attribution", "eventID", event.ID, "sessionID", cs.ID)
		return "", repository.EventOutcomeSkipped, nil
	}

	patch := domain.SubscriptionPatch{
		Active:             domain.Bool(true),
		Pro:                domain.Bool(true),
		Agent:              domain.Bool(true),
		SubscriptionStatus: domain.Status(domain.SubscriptionStatusActive),
		UpdatedAt:          time.Now(),
	}
	if cs.CustomerID != "" {
		patch.StripeCustomerID = domain.String(cs.CustomerID)
	}
	if cs.SubscriptionID != "" {
		patch.StripeSubscriptionID = domain.String(cs.SubscriptionID)
	}

	return s.merge(ctx, event, userID, patch)
}

// applySubscriptionCreated обрабатывает создание подписки
func (s *reconcilerService) applySubscriptionCreated(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	sub := event.Subscription
	userID := sub.Metadata[domain.MetadataUserIDKey]
	if userID == "" {
		s.log.Warnw("Subscription created without user attribution", "eventID", event.ID, "subscriptionID", sub.ID)
		return "", repository.EventOutcomeSkipped, nil
	}

	// Статус берем как есть от провайдера
	patch := domain.SubscriptionPatch{
		SubscriptionStatus:   domain.Status(sub.Status),
		StripeSubscriptionID: domain.String(sub.ID),
		UpdatedAt:            time.Now(),
	}

	return s.merge(ctx, event, userID, patch)
}

// applySubscriptionUpdated обрабатывает обновление подписки
func (s *reconcilerService) applySubscriptionUpdated(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	sub := event.Subscription
	userID := sub.Metadata[domain.MetadataUserIDKey]
	if userID == "" {
		s.log.Warnw("Subscription updated without user attribution", "eventID", event.ID, "subscriptionID", sub.ID)
		return "", repository.EventOutcomeSkipped, nil
	}

	// Доступ пересчитывается из статуса: active и trialing дают доступ
	access := sub.Status.GrantsAccess()
	patch := domain.SubscriptionPatch{
		Active:             domain.Bool(access),
		Pro:                domain.Bool(access),
		SubscriptionStatus: domain.Status(sub.Status),
		UpdatedAt:          time.Now(),
	}

	return s.merge(ctx, event, userID, patch)
}

// applySubscriptionDeleted обрабатывает удаление подписки
func (s *reconcilerService) applySubscriptionDeleted(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	sub := event.Subscription
	userID := sub.Metadata[domain.MetadataUserIDKey]
	if userID == "" {
		s.log.Warnw("Subscription deleted without user attribution", "eventID", event.ID, "subscriptionID", sub.ID)
		return "", repository.EventOutcomeSkipped, nil
	}

	// Отмена снимает флаги доступа, но не удаляет запись
	patch := domain.SubscriptionPatch{
		Active:             domain.Bool(false),
		Pro:                domain.Bool(false),
		SubscriptionStatus: domain.Status(domain.SubscriptionStatusCanceled),
		UpdatedAt:          time.Now(),
	}

	return s.merge(ctx, event, userID, patch)
}

// applyInvoicePaymentSucceeded обрабатывает успешную оплату инвойса
func (s *reconcilerService) applyInvoicePaymentSucceeded(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	userID, outcome, err := s.attributeInvoice(ctx, event)
	if userID == "" {
		return "", outcome, err
	}

	now := time.Now()
	patch := domain.SubscriptionPatch{
		Active:             domain.Bool(true),
		Pro:                domain.Bool(true),
		SubscriptionStatus: domain.Status(domain.SubscriptionStatusActive),
		LastPaymentDate:    &now,
		UpdatedAt:          now,
	}

	return s.merge(ctx, event, userID, patch)
}

// applyInvoicePaymentFailed обрабатывает неудачную оплату инвойса
func (s *reconcilerService) applyInvoicePaymentFailed(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	userID, outcome, err := s.attributeInvoice(ctx, event)
	if userID == "" {
		return "", outcome, err
	}

	now := time.Now()
	patch := domain.SubscriptionPatch{
		SubscriptionStatus: domain.Status(domain.SubscriptionStatusPastDue),
		PaymentFailedAt:    &now,
		UpdatedAt:          now,
	}

	return s.merge(ctx, event, userID, patch)
}

// attributeInvoice восстанавливает userID по событию инвойса через запрос
// подписки у провайдера. Отсутствие атрибуции - осознанный no-op (событие
// принимается без записи), ошибка запроса - повод для повторной доставки.
func (s *reconcilerService) attributeInvoice(ctx context.Context, event domain.BillingEvent) (string, repository.EventOutcome, error) {
	inv := event.Invoice
	if inv.SubscriptionID == "" {
		// Инвойс без подписки (разовый платеж) - нас не касается
		s.log.Infow("Invoice event without subscription reference", "eventID", event.ID, "invoiceID", inv.ID)
		return "", repository.EventOutcomeSkipped, nil
	}

	if s.lookup == nil {
		s.log.Errorw("Invoice event requires subscription lookup, but Stripe client is not configured", "eventID", event.ID)
		return "", repository.EventOutcomeFailed, fmt.Errorf("failed to attribute invoice event %s: %w", event.ID, domain.ErrMissingConfiguration)
	}

	sub, err := s.lookup.GetSubscription(ctx, inv.SubscriptionID)
	if err != nil {
		s.log.Errorw("Failed to look up subscription for invoice event", "error", err, "eventID", event.ID, "subscriptionID", inv.SubscriptionID)
		return "", repository.EventOutcomeFailed, fmt.Errorf("failed to attribute invoice event %s: %w", event.ID, err)
	}

	userID := sub.Metadata[domain.MetadataUserIDKey]
	if userID == "" {
		s.log.Warnw("Invoice event subscription has no user attribution", "eventID", event.ID, "subscriptionID", inv.SubscriptionID)
		return "", repository.EventOutcomeSkipped, nil
	}

	return userID, repository.EventOutcomeApplied, nil
}

// merge выполняет merge-запись патча по ключу пользователя
func (s *reconcilerService) merge(ctx context.Context, event domain.BillingEvent, userID string, patch domain.SubscriptionPatch) (string, repository.EventOutcome, error) {
	if err := s.records.Merge(ctx, userID, patch); err != nil {
		s.log.Errorw("Failed to merge user record", "error", err, "eventID", event.ID, "userID", userID)
		return userID, repository.EventOutcomeFailed, fmt.Errorf("failed to apply event %s: %w", event.ID, err)
	}

	s.log.Infow("Billing event applied", "eventID", event.ID, "eventType", event.Type, "userID", userID)
	return userID, repository.EventOutcomeApplied, nil
}

// recordAudit фиксирует исход обработки в журнале событий.
// Журнал best-effort: его сбой не влияет на ответ провайдеру.
func (s *reconcilerService) recordAudit(ctx context.Context, event domain.BillingEvent, userID string, outcome repository.EventOutcome, processErr error) {
	if s.eventLog == nil {
		return
	}

	entry := repository.EventLogEntry{
		EventID:      event.ID,
		EventType:    string(event.Type),
		UserID:       userID,
		Outcome:      outcome,
		EventCreated: event.Created,
		ReceivedAt:   time.Now(),
	}
	if processErr != nil {
		entry.ErrorMessage = processErr.Error()
	}

	if err := s.eventLog.Record(ctx, entry); err != nil {
		s.log.Warnw("Failed to record event in audit log", "error", err, "eventID", event.ID)
	}
}

// publishChange отправляет событие изменения подписки в Kafka
func (s *reconcilerService) publishChange(ctx context.Context, userID string, event domain.BillingEvent) {
	kafkaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	change := producer.SubscriptionChange{
		UserID:    userID,
		EventID:   event.ID,
		EventType: event.Type,
		Timestamp: time.Now(),
	}
	if event.Subscription != nil {
		change.Status = string(event.Subscription.Status)
	}

	if err := s.producer.PublishSubscriptionChanged(kafkaCtx, change); err != nil {
		s.log.Warnw("Failed to publish subscription change", "error", err, "userID", userID, "eventID", event.ID)
	}
}
