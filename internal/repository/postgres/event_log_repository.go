package postgres

import (
	"context"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"

	"github.com/Dhoini/Billing-sync-service/internal/repository"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// EventLogRepository журнал вебхук-событий в PostgreSQL
type EventLogRepository struct {
	db  *sqlx.DB
	log *logger.Logger
}

// NewConnection создает подключение к базе данных
func NewConnection(ctx context.Context, dsn string, log *logger.Logger) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "pgx", dsn)
	if err != nil {
		log.Errorw("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		log.Errorw("Failed to ping database", "error", err)
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Infow("Connected to PostgreSQL")
	return db, nil
}

// NewEventLogRepository создает новый журнал событий
func NewEventLogRepository(db *sqlx.DB, log *logger.Logger) *EventLogRepository {
	return &EventLogRepository{db: db, log: log}
}

// Record фиксирует исход обработки события.
// Повторная доставка обновляет исход и увеличивает счетчик попыток.
func (r *EventLogRepository) Record(ctx context.Context, entry repository.EventLogEntry) error {
	query := `
        INSERT INTO webhook_events (event_id, event_type, user_id, outcome, error_message, event_created, received_at, attempt_count)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 1)
        ON CONFLICT (event_id) DO UPDATE SET
            outcome = $4,
            error_message = $5,
            received_at = $7,
            attempt_count = webhook_events.attempt_count + 1
    `
	_, err := r.db.ExecContext(ctx, query,
		entry.EventID, entry.EventType, entry.UserID, entry.Outcome,
		entry.ErrorMessage, entry.EventCreated, entry.ReceivedAt)
	if err != nil {
		r.log.Errorw("Failed to record webhook event", "error", err, "eventID", entry.EventID)
		return fmt.Errorf("failed to record webhook event: %w", err)
	}

	r.log.Debugw("Webhook event recorded", "eventID", entry.EventID, "outcome", entry.Outcome)
	return nil
}
