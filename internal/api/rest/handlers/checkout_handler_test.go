package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// fakeCheckoutService возвращает заранее заданную сессию или ошибку
type fakeCheckoutService struct {
	sessionID string
	err       error
}

func (f *fakeCheckoutService) CreateCheckoutSession(ctx context.Context, userID, priceID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.sessionID, nil
}

func newCheckoutTestRouter(svc *fakeCheckoutService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewCheckoutHandler(svc, nil, logger.New(logger.ERROR))

	router := gin.New()
	router.POST("/api/v1/checkout", handler.CreateSession)
	return router
}

func postCheckout(router *gin.Engine, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/checkout", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCreateSessionReturnsSessionID(t *testing.T) {
	router := newCheckoutTestRouter(&fakeCheckoutService{sessionID: "cs_test_1"})

	w := postCheckout(router, `{"uid":"user-1","priceId":"price_1"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"sessionId":"cs_test_1"`)
}

func TestCreateSessionValidatesBody(t *testing.T) {
	router := newCheckoutTestRouter(&fakeCheckoutService{sessionID: "cs_test_1"})

	tests := []struct {
		name string
		body string
	}{
		{"missing uid", `{"priceId":"price_1"}`},
		{"missing priceId", `{"uid":"user-1"}`},
		{"empty body", `{}`},
		{"broken json", `{"uid":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postCheckout(router, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestCreateSessionMissingConfiguration(t *testing.T) {
	router := newCheckoutTestRouter(&fakeCheckoutService{err: domain.ErrMissingConfiguration})

	w := postCheckout(router, `{"uid":"user-1","priceId":"price_1"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestCreateSessionProviderErrorExposesMessage(t *testing.T) {
	providerErr := domain.NewProviderError("CreateCheckoutSession", "No such price: price_x", nil)
	router := newCheckoutTestRouter(&fakeCheckoutService{err: providerErr})

	w := postCheckout(router, `{"uid":"user-1","priceId":"price_x"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "No such price")
}
