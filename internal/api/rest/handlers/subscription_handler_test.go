package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/internal/repository"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

func newSubscriptionTestRouter(repo *repository.InMemoryUserRecordRepository) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewSubscriptionHandler(repo, logger.New(logger.ERROR))

	router := gin.New()
	router.GET("/api/v1/subscriptions/:userId", handler.GetByUserID)
	return router
}

func TestGetByUserIDReturnsRecord(t *testing.T) {
	repo := repository.NewInMemoryUserRecordRepository()
	require.NoError(t, repo.Merge(context.Background(), "user-1", domain.SubscriptionPatch{
		Active:             domain.Bool(true),
		Pro:                domain.Bool(true),
		SubscriptionStatus: domain.Status(domain.SubscriptionStatusActive),
		UpdatedAt:          time.Now(),
	}))

	router := newSubscriptionTestRouter(repo)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/user-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"userId":"user-1"`)
	assert.Contains(t, w.Body.String(), `"active":true`)
	assert.Contains(t, w.Body.String(), `"subscriptionStatus":"active"`)
}

func TestGetByUserIDNotFound(t *testing.T) {
	router := newSubscriptionTestRouter(repository.NewInMemoryUserRecordRepository())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/subscriptions/missing-user", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
