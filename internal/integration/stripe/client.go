package stripe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// ProviderSubscription срез данных подписки, полученный от Stripe
type ProviderSubscription struct {
	ID         string
	CustomerID string
	Status     domain.SubscriptionStatus
	Metadata   map[string]string
}

// Client определяет методы для взаимодействия со Stripe API.
type Client interface {
	// CreateCheckoutSession создает hosted checkout-сессию в режиме подписки
	// и возвращает ее идентификатор.
	CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error)

	// GetSubscription запрашивает подписку у Stripe. Используется для
	// восстановления userID по событиям инвойсов.
	GetSubscription(ctx context.Context, stripeSubscriptionID string) (*ProviderSubscription, error)
}

// stripeClient реализует интерфейс Client.
type stripeClient struct {
	api     *client.API
	baseURL string // Базовый URL для redirect-ссылок после оплаты
	log     *logger.Logger
}

// NewClient создает новый экземпляр клиента Stripe.
func NewClient(apiKey, baseURL string, log *logger.Logger) (Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("stripe: %w: api key is required", domain.ErrMissingConfiguration)
	}

	api := &client.API{}
	api.Init(apiKey, nil)
	return &stripeClient{
		api:     api,
		baseURL: baseURL,
		log:     log,
	}, nil
}

// CreateCheckoutSession создает hosted checkout-сессию для подписки.
// Метаданные с userID ставятся и на сессию, и на будущую подписку,
// чтобы последующие события атрибутировались без дополнительного запроса.
func (sc *stripeClient) CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(sc.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}&uid=" + userID),
		CancelURL:  stripe.String(sc.baseURL + "/checkout/cancel?uid=" + userID),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				domain.MetadataUserIDKey: userID,
			},
		},
		Params: stripe.Params{
			IdempotencyKey: stripe.String(uuid.NewString()),
			Context:        ctx,
		},
	}
	params.AddMetadata(domain.MetadataUserIDKey, userID)

	sess, err := sc.api.CheckoutSessions.New(params)
	if err != nil {
		logStripeError(sc.log, "CreateCheckoutSession", err)
		return "", domain.NewProviderError("CreateCheckoutSession", providerMessage(err), err)
	}

	sc.log.Infow("Stripe checkout session created", "sessionID", sess.ID, "userID", userID, "priceID", priceID)
	return sess.ID, nil
}

// GetSubscription запрашивает подписку у Stripe с ретраями на временных сбоях.
func (sc *stripeClient) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*ProviderSubscription, error) {
	var sub *stripe.Subscription

	operation := func() error {
		var err error
		params := &stripe.SubscriptionParams{
			Params: stripe.Params{Context: ctx},
		}
		sub, err = sc.api.Subscriptions.Get(stripeSubscriptionID, params)
		if err != nil {
			if isRetryableStripeError(err) {
				sc.log.Warnw("Retryable Stripe error on subscription lookup, retrying", "subscriptionID", stripeSubscriptionID, "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxInterval = 5 * time.Second
	bo.MaxElapsedTime = 15 * time.Second
	bo.Reset()

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		logStripeError(sc.log, "GetSubscription", err)
		return nil, domain.NewProviderError("GetSubscription", providerMessage(err), err)
	}

	result := &ProviderSubscription{
		ID:       sub.ID,
		Status:   domain.SubscriptionStatus(sub.Status),
		Metadata: sub.Metadata,
	}
	if sub.Customer != nil {
		result.CustomerID = sub.Customer.ID
	}

	return result, nil
}

// isRetryableStripeError определяет, имеет ли смысл повторять запрос
func isRetryableStripeError(err error) bool {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		// Повторяем только серверные сбои Stripe
		return stripeErr.HTTPStatusCode >= 500
	}
	// Не-Stripe ошибка - скорее всего сетевая, повторяем
	return true
}

// providerMessage извлекает сообщение провайдера для ответа наружу
func providerMessage(err error) string {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return stripeErr.Msg
	}
	return err.Error()
}

// logStripeError - вспомогательная функция для логирования деталей ошибки Stripe.
func logStripeError(log *logger.Logger, operation string, err error) {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		log.Errorw("Stripe API error",
			"operation", operation,
			"type", string(stripeErr.Type),
			"code", string(stripeErr.Code),
			"param", stripeErr.Param,
			"message", stripeErr.Msg,
			"request_id", stripeErr.RequestID,
			"status_code", stripeErr.HTTPStatusCode,
		)
	} else {
		log.Errorw("Non-Stripe error during Stripe operation",
			"operation", operation,
			"error", err,
		)
	}
}
