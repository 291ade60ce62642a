package repository

import (
	"context"
	"sync"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
)

// InMemoryUserRecordRepository реализация хранилища записей в памяти.
// Используется в тестах и как запасной вариант без внешнего хранилища.
type InMemoryUserRecordRepository struct {
	records map[string]domain.UserSubscription
	mutex   sync.RWMutex
}

// NewInMemoryUserRecordRepository создает новое хранилище записей в памяти
func NewInMemoryUserRecordRepository() *InMemoryUserRecordRepository {
	return &InMemoryUserRecordRepository{
		records: make(map[string]domain.UserSubscription),
	}
}

// GetByUserID возвращает запись подписки пользователя
func (r *InMemoryUserRecordRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	rec, exists := r.records[userID]
	if !exists {
		return nil, domain.ErrNotFound
	}

	return &rec, nil
}

// Merge применяет частичное обновление к записи пользователя
func (r *InMemoryUserRecordRepository) Merge(ctx context.Context, userID string, patch domain.SubscriptionPatch) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	rec, exists := r.records[userID]
	if !exists {
		rec = domain.UserSubscription{UserID: userID}
	}

	patch.Apply(&rec)
	r.records[userID] = rec

	return nil
}

// Count возвращает количество записей (для проверок в тестах)
func (r *InMemoryUserRecordRepository) Count() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.records)
}
