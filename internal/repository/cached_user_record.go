package repository

import (
	"context"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// CachedUserRecordRepository реализует UserRecordRepository с кешированием
type CachedUserRecordRepository struct {
	repo  UserRecordRepository
	cache *RedisCacheRepository
	log   *logger.Logger
}

// NewCachedUserRecordRepository создает новый репозиторий с кешированием
func NewCachedUserRecordRepository(
	repo UserRecordRepository,
	cache *RedisCacheRepository,
	log *logger.Logger,
) UserRecordRepository {
	return &CachedUserRecordRepository{
		repo:  repo,
		cache: cache,
		log:   log,
	}
}

// GetByUserID получает запись пользователя (сначала из кеша, потом из хранилища)
func (r *CachedUserRecordRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	// Пытаемся получить из кеша
	cached, err := r.cache.GetCachedUserRecord(ctx, userID)
	if err != nil {
		r.log.Warnw("Error getting user record from cache", "error", err, "userID", userID)
		// Продолжаем выполнение при ошибке кеша
	}

	if cached != nil {
		return cached, nil
	}

	// Если не нашли в кеше, идем в основное хранилище
	rec, err := r.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// Кешируем найденную запись
	if err := r.cache.CacheUserRecord(ctx, rec); err != nil {
		r.log.Warnw("Failed to cache user record after fetching", "error", err, "userID", userID)
	}

	return rec, nil
}

// Merge применяет патч в основном хранилище и инвалидирует кеш
func (r *CachedUserRecordRepository) Merge(ctx context.Context, userID string, patch domain.SubscriptionPatch) error {
	// Сначала пишем в основное хранилище
	if err := r.repo.Merge(ctx, userID, patch); err != nil {
		return err
	}

	// Затем инвалидируем кеш, чтобы следующее чтение увидело свежие поля
	if err := r.cache.InvalidateUserRecord(ctx, userID); err != nil {
		r.log.Warnw("Failed to invalidate user record cache after merge", "error", err, "userID", userID)
		// Продолжаем выполнение, несмотря на ошибку кеширования
	}

	return nil
}
