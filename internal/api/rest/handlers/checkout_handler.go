package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/internal/metrics"
	"github.com/Dhoini/Billing-sync-service/internal/service"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
	"github.com/Dhoini/Billing-sync-service/pkg/req"
	"github.com/Dhoini/Billing-sync-service/pkg/res"
)

// CreateCheckoutSessionRequest запрос на создание checkout-сессии
type CreateCheckoutSessionRequest struct {
	UID     string `json:"uid" validate:"required"`
	PriceID string `json:"priceId" validate:"required"`
}

// CreateCheckoutSessionResponse ответ с идентификатором созданной сессии
type CreateCheckoutSessionResponse struct {
	SessionID string `json:"sessionId"`
}

// CheckoutHandler обработчик инициации оплаты
type CheckoutHandler struct {
	checkoutService service.CheckoutService
	metrics         metrics.WebhookMetrics
	log             *logger.Logger
}

// NewCheckoutHandler создает новый обработчик инициации оплаты
func NewCheckoutHandler(checkoutService service.CheckoutService, webhookMetrics metrics.WebhookMetrics, log *logger.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkoutService: checkoutService,
		metrics:         webhookMetrics,
		log:             log,
	}
}

// CreateSession обрабатывает POST /api/v1/checkout
func (h *CheckoutHandler) CreateSession(c *gin.Context) {
	body, err := req.HandleBody[CreateCheckoutSessionRequest](c.Writer, c.Request, h.log)
	if err != nil {
		// Ответ уже отправлен внутри HandleBody
		return
	}

	sessionID, err := h.checkoutService.CreateCheckoutSession(c.Request.Context(), body.UID, body.PriceID)
	if err != nil {
		h.handleCheckoutError(c, err)
		return
	}

	if h.metrics != nil {
		h.metrics.IncCheckoutSessionCreated()
	}

	h.log.Infow("Checkout session created", "sessionID", sessionID, "userID", body.UID)
	res.JsonResponse(c.Writer, CreateCheckoutSessionResponse{SessionID: sessionID}, http.StatusOK)
}

// handleCheckoutError транслирует доменные ошибки в HTTP-статусы
func (h *CheckoutHandler) handleCheckoutError(c *gin.Context, err error) {
	var providerErr *domain.ProviderError

	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: err.Error()}, http.StatusBadRequest, h.log)
	case errors.Is(err, domain.ErrMissingConfiguration):
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "billing is not configured"}, http.StatusInternalServerError, h.log)
	case errors.As(err, &providerErr):
		// Сообщение провайдера пробрасываем вызывающему для диагностики
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: providerErr.Message}, http.StatusInternalServerError, h.log)
	default:
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "failed to create checkout session"}, http.StatusInternalServerError, h.log)
	}
}
