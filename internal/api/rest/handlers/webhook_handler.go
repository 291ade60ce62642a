package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	stripeint "github.com/Dhoini/Billing-sync-service/internal/integration/stripe"
	"github.com/Dhoini/Billing-sync-service/internal/metrics"
	"github.com/Dhoini/Billing-sync-service/internal/service"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
	"github.com/Dhoini/Billing-sync-service/pkg/res"
)

// maxWebhookBodyBytes ограничивает размер тела вебхука
const maxWebhookBodyBytes = 65536

// WebhookHandler обработчик вебхуков Stripe
type WebhookHandler struct {
	verifier   *stripeint.WebhookVerifier // Может быть nil, если секрет не задан
	reconciler service.ReconcilerService
	metrics    metrics.WebhookMetrics
	log        *logger.Logger
}

// NewWebhookHandler создает новый обработчик вебхуков
func NewWebhookHandler(
	verifier *stripeint.WebhookVerifier,
	reconciler service.ReconcilerService,
	webhookMetrics metrics.WebhookMetrics,
	log *logger.Logger,
) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		metrics:    webhookMetrics,
		log:        log,
	}
}

// HandleStripeWebhook обрабатывает POST /webhooks/stripe.
// Подпись проверяется до любого чтения содержимого: событие без валидной
// подписи не доходит до реконсилятора и не порождает записей.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	if h.verifier == nil {
		h.log.Errorw("Webhook received but webhook secret is not configured")
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "webhook secret is not configured"}, http.StatusInternalServerError, h.log)
		return
	}

	// Подпись считается по точным байтам тела
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes)
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.log.Errorw("Failed to read webhook body", "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "failed to read request body"}, http.StatusBadRequest, h.log)
		return
	}

	event, err := h.verifier.VerifyAndDecode(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, domain.ErrSignatureVerification) {
			res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "webhook signature verification failed"}, http.StatusBadRequest, h.log)
			return
		}
		// Подпись валидна, но событие не разобралось: 5xx, чтобы Stripe повторил доставку
		h.log.Errorw("Failed to decode verified webhook event", "error", err)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "failed to decode event", Details: err.Error()}, http.StatusInternalServerError, h.log)
		return
	}

	if h.metrics != nil {
		h.metrics.IncEventReceived(string(event.Type))
	}

	if err := h.reconciler.ProcessEvent(c.Request.Context(), event); err != nil {
		// Ошибка обработки означает повторную доставку со стороны Stripe
		h.log.Errorw("Failed to process webhook event", "error", err, "eventID", event.ID, "eventType", event.Type)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "failed to process event", Details: err.Error()}, http.StatusInternalServerError, h.log)
		return
	}

	res.JsonResponse(c.Writer, gin.H{"received": true}, http.StatusOK)
}
