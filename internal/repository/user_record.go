package repository

import (
	"context"
	"time"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
)

// UserRecordRepository интерфейс хранилища записей подписок пользователей
type UserRecordRepository interface {
	// GetByUserID возвращает запись подписки пользователя.
	// Если записи нет, возвращает domain.ErrNotFound.
	GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error)

	// Merge применяет частичное обновление к записи пользователя.
	// Запись создается, если ее еще нет; поля, не указанные в патче,
	// сохраняют прежние значения.
	Merge(ctx context.Context, userID string, patch domain.SubscriptionPatch) error
}

// EventOutcome результат обработки вебхук-события
type EventOutcome string

const (
	EventOutcomeApplied EventOutcome = "applied"
	EventOutcomeSkipped EventOutcome = "skipped"
	EventOutcomeIgnored EventOutcome = "ignored"
	EventOutcomeFailed  EventOutcome = "failed"
)

// EventLogEntry запись журнала вебхук-событий
type EventLogEntry struct {
	EventID      string       `db:"event_id"`
	EventType    string       `db:"event_type"`
	UserID       string       `db:"user_id"`
	Outcome      EventOutcome `db:"outcome"`
	ErrorMessage string       `db:"error_message"`
	EventCreated time.Time    `db:"event_created"`
	ReceivedAt   time.Time    `db:"received_at"`
}

// EventLogRepository интерфейс журнала вебхук-событий.
// Журнал нужен для ручной сверки: события без атрибуции пользователя
// принимаются с ответом 200, но не теряются бесследно.
type EventLogRepository interface {
	// Record фиксирует исход обработки события. Повторная доставка того же
	// события обновляет существующую запись и увеличивает счетчик попыток.
	Record(ctx context.Context, entry EventLogEntry) error
}
