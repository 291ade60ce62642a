package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IBM/sarama"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Dhoini/Billing-sync-service/config"
	"github.com/Dhoini/Billing-sync-service/internal/api/rest"
	"github.com/Dhoini/Billing-sync-service/internal/api/rest/handlers"
	stripeint "github.com/Dhoini/Billing-sync-service/internal/integration/stripe"
	"github.com/Dhoini/Billing-sync-service/internal/kafka"
	"github.com/Dhoini/Billing-sync-service/internal/kafka/producer"
	"github.com/Dhoini/Billing-sync-service/internal/metrics"
	"github.com/Dhoini/Billing-sync-service/internal/middleware"
	"github.com/Dhoini/Billing-sync-service/internal/repository"
	firestorerepo "github.com/Dhoini/Billing-sync-service/internal/repository/firestore"
	"github.com/Dhoini/Billing-sync-service/internal/repository/postgres"
	"github.com/Dhoini/Billing-sync-service/internal/service"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

var log *logger.Logger

func init() {
	// Загружаем переменные окружения
	if err := godotenv.Load(); err != nil {
		// Пропускаем ошибку, если .env файл не найден
	}

	// Инициализация логгера
	logLevel := logger.INFO
	if os.Getenv("DEBUG") == "true" {
		logLevel = logger.DEBUG
	}
	log = logger.New(logLevel)
}

func main() {
	// Загрузка конфигурации
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration: %v", err)
	}
	if cfg.Logging.Level == "debug" {
		log = logger.New(logger.DEBUG)
	}

	// Создаем контекст с возможностью отмены
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Инициализация Prometheus
	promRegistry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(promRegistry, log)

	// Основное хранилище записей подписок
	firestoreRepo, err := firestorerepo.NewUserRecordRepository(ctx, cfg.Firestore.ProjectID, cfg.Firestore.CredentialsFile, cfg.Firestore.Collection, log)
	if err != nil {
		log.Fatal("Failed to initialize Firestore repository: %v", err)
	}
	defer firestoreRepo.Close()

	var records repository.UserRecordRepository = firestoreRepo

	// Кеш чтения поверх хранилища (опционально)
	if cfg.Redis.Addr != "" {
		cache, err := repository.NewRedisCacheRepository(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, log)
		if err != nil {
			log.Warn("Redis unavailable, continuing without cache: %v", err)
		} else {
			defer cache.Close()
			records = repository.NewCachedUserRecordRepository(firestoreRepo, cache, log)
		}
	}

	// Журнал вебхук-событий (опционально)
	var eventLog repository.EventLogRepository
	if cfg.Database.DSN != "" {
		db, err := postgres.NewConnection(ctx, cfg.Database.DSN, log)
		if err != nil {
			log.Fatal("Failed to connect to database: %v", err)
		}
		defer db.Close()
		eventLog = postgres.NewEventLogRepository(db, log)
	} else {
		log.Warn("DATABASE_DSN is not set, webhook event audit log is disabled")
	}

	// Продюсер событий изменения подписок (опционально)
	var billingProducer producer.BillingProducer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureKafkaTopics(cfg.Kafka.Brokers, log); err != nil {
			log.Warn("Failed to ensure Kafka topics: %v", err)
		}

		kafkaConfig := kafka.NewConfig(cfg.Kafka.Brokers)
		saramaConfig := kafka.NewSaramaConfig(kafkaConfig)

		kafkaProducer, err := sarama.NewSyncProducer(kafkaConfig.Brokers, saramaConfig)
		if err != nil {
			log.Fatal("Failed to create Kafka producer: %v", err)
		}
		defer kafkaProducer.Close()

		billingProducer = producer.NewKafkaBillingProducer(kafkaProducer, log)
	}

	// Клиент Stripe. Отсутствие ключа не валит сервис:
	// соответствующие операции ответят ошибкой конфигурации
	stripeClient, err := stripeint.NewClient(cfg.Stripe.APIKey, cfg.App.BaseURL, log)
	if err != nil {
		log.Warn("Stripe client is not configured: %v", err)
	}

	webhookVerifier, err := stripeint.NewWebhookVerifier(cfg.Stripe.WebhookSecret, log)
	if err != nil {
		log.Warn("Webhook verifier is not configured: %v", err)
	}

	// Сервисы
	checkoutService := service.NewCheckoutService(stripeClient, log)
	reconcilerService := service.NewReconcilerService(records, eventLog, stripeClient, billingProducer, webhookMetrics, log)

	// Middleware аутентификации для читающего API
	var authMiddleware *middleware.JWTMiddleware
	if validator, err := middleware.NewHMACTokenValidator(cfg.Auth.JWTSecret); err != nil {
		log.Warn("JWT secret is not set, subscription read API is disabled: %v", err)
	} else {
		authMiddleware = middleware.NewJWTMiddleware(validator, log)
	}

	// Настройка маршрутизатора
	router := rest.SetupRouter(rest.RouterDeps{
		CheckoutHandler:     handlers.NewCheckoutHandler(checkoutService, webhookMetrics, log),
		WebhookHandler:      handlers.NewWebhookHandler(webhookVerifier, reconcilerService, webhookMetrics, log),
		SubscriptionHandler: handlers.NewSubscriptionHandler(records, log),
		AuthMiddleware:      authMiddleware,
		Registry:            promRegistry,
		Log:                 log,
		Env:                 cfg.App.Env,
	})

	// Создание и запуск HTTP сервера
	server := rest.NewServer(cfg, router, log)

	// Запуск сервера в горутине
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Останавливаем сервер
	shutdownTimeout := time.Duration(cfg.App.ShutdownTimeout) * time.Second
	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Fatal("Server forced to shutdown: %v", err)
	}

	log.Info("Server stopped gracefully")
}
