package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/internal/repository"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
	"github.com/Dhoini/Billing-sync-service/pkg/res"
)

// SubscriptionHandler обработчик чтения состояния подписки
type SubscriptionHandler struct {
	records repository.UserRecordRepository
	log     *logger.Logger
}

// NewSubscriptionHandler создает новый обработчик чтения подписок
func NewSubscriptionHandler(records repository.UserRecordRepository, log *logger.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		records: records,
		log:     log,
	}
}

// GetByUserID обрабатывает GET /api/v1/subscriptions/:userId
func (h *SubscriptionHandler) GetByUserID(c *gin.Context) {
	userID := c.Param("userId")
	if userID == "" {
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "userId is required"}, http.StatusBadRequest, h.log)
		return
	}

	record, err := h.records.GetByUserID(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			res.JsonResponse(c.Writer, res.ErrorResponse{Error: "subscription record not found"}, http.StatusNotFound)
			return
		}
		h.log.Errorw("Failed to get user record", "error", err, "userID", userID)
		res.JsonErrorResponse(c.Writer, res.ErrorResponse{Error: "failed to get subscription record"}, http.StatusInternalServerError, h.log)
		return
	}

	res.JsonResponse(c.Writer, record, http.StatusOK)
}
