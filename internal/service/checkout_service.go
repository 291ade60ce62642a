package service

import (
	"context"
	"fmt"

	stripeint "github.com/Dhoini/Billing-sync-service/internal/integration/stripe"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// CheckoutService интерфейс сервиса инициации оплаты
type CheckoutService interface {
	// CreateCheckoutSession создает hosted checkout-сессию для пользователя
	// и возвращает ее идентификатор. Без ретраев: при сбое пользователь
	// повторяет попытку сам, перезапустив оплату.
	CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error)
}

// checkoutService реализация сервиса инициации оплаты
type checkoutService struct {
	stripe stripeint.Client
	log    *logger.Logger
}

// NewCheckoutService создает новый сервис инициации оплаты
func NewCheckoutService(stripe stripeint.Client, log *logger.Logger) CheckoutService {
	return &checkoutService{
		stripe: stripe,
		log:    log,
	}
}

// CreateCheckoutSession создает checkout-сессию в режиме подписки
func (s *checkoutService) CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error) {
	// Проверяем входные данные
	if userID == "" {
		return "", fmt.Errorf("%w: uid is required", domain.ErrInvalidInput)
	}
	if priceID == "" {
		return "", fmt.Errorf("%w: priceId is required", domain.ErrInvalidInput)
	}

	// Отсутствие ключа API - ошибка конфигурации, а не повод падать при старте
	if s.stripe == nil {
		return "", fmt.Errorf("checkout: %w: stripe api key is not configured", domain.ErrMissingConfiguration)
	}

	sessionID, err := s.stripe.CreateCheckoutSession(ctx, userID, priceID)
	if err != nil {
		s.log.Errorw("Failed to create checkout session", "error", err, "userID", userID, "priceID", priceID)
		return "", err
	}

	return sessionID, nil
}
