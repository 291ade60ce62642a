package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	stripeint "github.com/Dhoini/Billing-sync-service/internal/integration/stripe"
	"github.com/Dhoini/Billing-sync-service/internal/repository"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// fakeSubscriptionLookup возвращает заранее заданную подписку или ошибку
type fakeSubscriptionLookup struct {
	sub   *stripeint.ProviderSubscription
	err   error
	calls int
}

func (f *fakeSubscriptionLookup) GetSubscription(ctx context.Context, stripeSubscriptionID string) (*stripeint.ProviderSubscription, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.sub, nil
}

func newTestReconciler(records repository.UserRecordRepository, lookup SubscriptionLookup) ReconcilerService {
	return NewReconcilerService(records, nil, lookup, nil, nil, logger.New(logger.ERROR))
}

func TestProcessEventCheckoutCompleted(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventCheckoutSessionCompleted,
		CheckoutSession: &domain.CheckoutSessionData{
			ID:             "cs_1",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, rec.Active)
	assert.True(t, rec.Pro)
	assert.True(t, rec.Agent)
	assert.Equal(t, domain.SubscriptionStatusActive, rec.SubscriptionStatus)
	assert.Equal(t, "cus_1", rec.StripeCustomerID)
	assert.Equal(t, "sub_1", rec.StripeSubscriptionID)
}

func TestProcessEventCheckoutCompletedIsIdempotent(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventCheckoutSessionCompleted,
		CheckoutSession: &domain.CheckoutSessionData{
			ID:             "cs_1",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}

	// Повторная доставка того же события не меняет итоговое состояние
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	first, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	second, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)

	assert.Equal(t, 1, repo.Count())
	assert.Equal(t, first.Active, second.Active)
	assert.Equal(t, first.Pro, second.Pro)
	assert.Equal(t, first.Agent, second.Agent)
	assert.Equal(t, first.SubscriptionStatus, second.SubscriptionStatus)
	assert.Equal(t, first.StripeCustomerID, second.StripeCustomerID)
	assert.Equal(t, first.StripeSubscriptionID, second.StripeSubscriptionID)
}

func TestProcessEventCheckoutWithoutAttributionIsNoop(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:              "evt_1",
		Type:            domain.EventCheckoutSessionCompleted,
		CheckoutSession: &domain.CheckoutSessionData{ID: "cs_1"},
	}

	// Отсутствие атрибуции - принятое без записи событие, не ошибка
	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 0, repo.Count())
}

func TestProcessEventSubscriptionCreatedStoresStatusVerbatim(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventSubscriptionCreated,
		Subscription: &domain.SubscriptionData{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusTrialing,
			Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusTrialing, rec.SubscriptionStatus)
	assert.Equal(t, "sub_1", rec.StripeSubscriptionID)
	// Создание подписки само по себе флаги доступа не трогает
	assert.False(t, rec.Active)
}

func TestProcessEventSubscriptionUpdatedRecomputesAccess(t *testing.T) {
	tests := []struct {
		name       string
		status     domain.SubscriptionStatus
		wantAccess bool
	}{
		{"active grants access", domain.SubscriptionStatusActive, true},
		{"trialing grants access", domain.SubscriptionStatusTrialing, true},
		{"past_due revokes access", domain.SubscriptionStatusPastDue, false},
		{"canceled revokes access", domain.SubscriptionStatusCanceled, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repository.NewInMemoryUserRecordRepository()
			svc := newTestReconciler(repo, nil)

			event := domain.BillingEvent{
				ID:   "evt_1",
				Type: domain.EventSubscriptionUpdated,
				Subscription: &domain.SubscriptionData{
					ID:       "sub_1",
					Status:   tt.status,
					Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
				},
			}

			require.NoError(t, svc.ProcessEvent(context.Background(), event))

			rec, err := repo.GetByUserID(context.Background(), "user-1")
			require.NoError(t, err)
			assert.Equal(t, tt.wantAccess, rec.Active)
			assert.Equal(t, tt.wantAccess, rec.Pro)
			assert.Equal(t, tt.status, rec.SubscriptionStatus)
		})
	}
}

func TestProcessEventSubscriptionUpdatedPreservesOtherFields(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	// Сначала завершение checkout, дальше обновление подписки
	checkout := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventCheckoutSessionCompleted,
		CheckoutSession: &domain.CheckoutSessionData{
			ID:             "cs_1",
			CustomerID:     "cus_1",
			SubscriptionID: "sub_1",
			Metadata:       map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), checkout))

	updated := domain.BillingEvent{
		ID:   "evt_2",
		Type: domain.EventSubscriptionUpdated,
		Subscription: &domain.SubscriptionData{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusPastDue,
			Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}
	require.NoError(t, svc.ProcessEvent(context.Background(), updated))

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, rec.Active)
	assert.False(t, rec.Pro)
	// Идентификаторы и agent-флаг из checkout-события уцелели после merge
	assert.True(t, rec.Agent)
	assert.Equal(t, "cus_1", rec.StripeCustomerID)
	assert.Equal(t, "sub_1", rec.StripeSubscriptionID)
}

func TestProcessEventSubscriptionDeleted(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventSubscriptionDeleted,
		Subscription: &domain.SubscriptionData{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusCanceled,
			Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.False(t, rec.Active)
	assert.False(t, rec.Pro)
	assert.Equal(t, domain.SubscriptionStatusCanceled, rec.SubscriptionStatus)
}

func TestProcessEventInvoicePaymentSucceeded(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	lookup := &fakeSubscriptionLookup{
		sub: &stripeint.ProviderSubscription{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusActive,
			Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}
	svc := newTestReconciler(repo, lookup)

	event := domain.BillingEvent{
		ID:      "evt_1",
		Type:    domain.EventInvoicePaymentSucceeded,
		Invoice: &domain.InvoiceData{ID: "in_1", SubscriptionID: "sub_1"},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 1, lookup.calls)

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.True(t, rec.Active)
	assert.True(t, rec.Pro)
	assert.Equal(t, domain.SubscriptionStatusActive, rec.SubscriptionStatus)
	require.NotNil(t, rec.LastPaymentDate)
	assert.WithinDuration(t, time.Now(), *rec.LastPaymentDate, time.Minute)
}

func TestProcessEventInvoicePaymentFailed(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	lookup := &fakeSubscriptionLookup{
		sub: &stripeint.ProviderSubscription{
			ID:       "sub_1",
			Status:   domain.SubscriptionStatusPastDue,
			Metadata: map[string]string{domain.MetadataUserIDKey: "user-1"},
		},
	}
	svc := newTestReconciler(repo, lookup)

	event := domain.BillingEvent{
		ID:      "evt_1",
		Type:    domain.EventInvoicePaymentFailed,
		Invoice: &domain.InvoiceData{ID: "in_1", SubscriptionID: "sub_1"},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))

	rec, err := repo.GetByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SubscriptionStatusPastDue, rec.SubscriptionStatus)
	require.NotNil(t, rec.PaymentFailedAt)
	// Неуспешная оплата не трогает флаги доступа напрямую
	assert.False(t, rec.Active)
}

func TestProcessEventInvoiceWithoutSubscriptionIsNoop(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	lookup := &fakeSubscriptionLookup{}
	svc := newTestReconciler(repo, lookup)

	event := domain.BillingEvent{
		ID:      "evt_1",
		Type:    domain.EventInvoicePaymentSucceeded,
		Invoice: &domain.InvoiceData{ID: "in_1"},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 0, lookup.calls)
	assert.Equal(t, 0, repo.Count())
}

func TestProcessEventInvoiceLookupWithoutAttributionIsNoop(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	lookup := &fakeSubscriptionLookup{
		sub: &stripeint.ProviderSubscription{ID: "sub_1", Status: domain.SubscriptionStatusActive},
	}
	svc := newTestReconciler(repo, lookup)

	event := domain.BillingEvent{
		ID:      "evt_1",
		Type:    domain.EventInvoicePaymentSucceeded,
		Invoice: &domain.InvoiceData{ID: "in_1", SubscriptionID: "sub_1"},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 0, repo.Count())
}

func TestProcessEventInvoiceLookupFailureReturnsError(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	lookup := &fakeSubscriptionLookup{err: errors.New("stripe is down")}
	svc := newTestReconciler(repo, lookup)

	event := domain.BillingEvent{
		ID:      "evt_1",
		Type:    domain.EventInvoicePaymentSucceeded,
		Invoice: &domain.InvoiceData{ID: "in_1", SubscriptionID: "sub_1"},
	}

	// Ошибка запроса к провайдеру должна всплыть, чтобы Stripe повторил доставку
	err := svc.ProcessEvent(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, 0, repo.Count())
}

func TestProcessEventPaymentIntentIsObserveOnly(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:            "evt_1",
		Type:          domain.EventPaymentIntentSucceeded,
		PaymentIntent: &domain.PaymentIntentData{ID: "pi_1", Amount: 999, Currency: "usd"},
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 0, repo.Count())
}

func TestProcessEventUnknownTypeIsNoop(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	svc := newTestReconciler(repo, nil)

	event := domain.BillingEvent{
		ID:   "evt_1",
		Type: domain.EventType("customer.created"),
	}

	require.NoError(t, svc.ProcessEvent(context.Background(), event))
	assert.Equal(t, 0, repo.Count())
}
