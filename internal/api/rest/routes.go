package rest

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Dhoini/Billing-sync-service/internal/api/rest/handlers"
	restMiddleware "github.com/Dhoini/Billing-sync-service/internal/api/rest/middleware"
	"github.com/Dhoini/Billing-sync-service/internal/middleware"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// RouterDeps зависимости HTTP-маршрутизатора
type RouterDeps struct {
	CheckoutHandler     *handlers.CheckoutHandler
	WebhookHandler      *handlers.WebhookHandler
	SubscriptionHandler *handlers.SubscriptionHandler
	AuthMiddleware      *middleware.JWTMiddleware // Может быть nil, тогда чтение подписок закрыто
	Registry            *prometheus.Registry
	Log                 *logger.Logger
	Env                 string
}

// SetupRouter настраивает маршруты HTTP-сервера
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(restMiddleware.LoggerMiddleware(deps.Log))
	router.Use(gin.Recovery())

	// Служебные маршруты
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// Вебхуки провайдера: аутентификация - подпись в теле запроса
	router.POST("/webhooks/stripe", deps.WebhookHandler.HandleStripeWebhook)

	api := router.Group("/api/v1")
	{
		api.POST("/checkout", deps.CheckoutHandler.CreateSession)

		// Чтение состояния подписки доступно только с валидным токеном
		if deps.AuthMiddleware != nil {
			protected := api.Group("")
			protected.Use(deps.AuthMiddleware.RequireAuth())
			protected.GET("/subscriptions/:userId", deps.SubscriptionHandler.GetByUserID)
		}
	}

	return router
}
