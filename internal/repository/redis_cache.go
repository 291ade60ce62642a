package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

const (
	userRecordKeyPrefix = "user_record:"

	// TTL для кэша
	defaultCacheTTL = 15 * time.Minute
)

// RedisCacheRepository кеш записей подписок в Redis
type RedisCacheRepository struct {
	client *redis.Client
	log    *logger.Logger
}

// NewRedisCacheRepository создает новый экземпляр Redis репозитория
func NewRedisCacheRepository(redisAddr, redisPassword string, redisDB int, log *logger.Logger) (*RedisCacheRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       redisDB,
	})

	// Проверяем соединение с Redis
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", redisAddr)
	return &RedisCacheRepository{
		client: client,
		log:    log,
	}, nil
}

// Close закрывает соединение с Redis
func (r *RedisCacheRepository) Close() error {
	return r.client.Close()
}

// CacheUserRecord кеширует запись подписки пользователя
func (r *RedisCacheRepository) CacheUserRecord(ctx context.Context, rec *domain.UserSubscription) error {
	key := fmt.Sprintf("%s%s", userRecordKeyPrefix, rec.UserID)

	data, err := json.Marshal(rec)
	if err != nil {
		r.log.Errorw("Failed to marshal user record for caching", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to marshal user record: %w", err)
	}

	if err := r.client.Set(ctx, key, data, defaultCacheTTL).Err(); err != nil {
		r.log.Errorw("Failed to cache user record in Redis", "error", err, "userID", rec.UserID)
		return fmt.Errorf("failed to cache user record: %w", err)
	}

	r.log.Debugw("User record cached successfully", "userID", rec.UserID)
	return nil
}

// GetCachedUserRecord получает запись пользователя из кеша
func (r *RedisCacheRepository) GetCachedUserRecord(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	key := fmt.Sprintf("%s%s", userRecordKeyPrefix, userID)

	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			// Ключ не найден в кеше
			r.log.Debugw("User record not found in cache", "userID", userID)
			return nil, nil
		}
		r.log.Errorw("Error getting user record from Redis", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get user record from cache: %w", err)
	}

	var rec domain.UserSubscription
	if err := json.Unmarshal(data, &rec); err != nil {
		r.log.Errorw("Failed to unmarshal cached user record", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to unmarshal cached user record: %w", err)
	}

	r.log.Debugw("User record retrieved from cache", "userID", userID)
	return &rec, nil
}

// InvalidateUserRecord удаляет запись пользователя из кеша
func (r *RedisCacheRepository) InvalidateUserRecord(ctx context.Context, userID string) error {
	key := fmt.Sprintf("%s%s", userRecordKeyPrefix, userID)

	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Errorw("Failed to invalidate user record cache", "error", err, "userID", userID)
		return fmt.Errorf("failed to invalidate user record cache: %w", err)
	}

	r.log.Debugw("User record cache invalidated", "userID", userID)
	return nil
}
