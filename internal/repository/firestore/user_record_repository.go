package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

// UserRecordRepository реализация хранилища записей подписок поверх Firestore.
// Merge-запись выполняется через Set с firestore.MergeAll: затрагиваются
// только переданные поля, атомарность на уровне документа дает сам Firestore.
type UserRecordRepository struct {
	client     *firestore.Client
	collection string
	log        *logger.Logger
}

// NewUserRecordRepository создает новый Firestore-репозиторий записей
func NewUserRecordRepository(ctx context.Context, projectID, credentialsFile, collection string, log *logger.Logger) (*UserRecordRepository, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore: %w: project id is required", domain.ErrMissingConfiguration)
	}

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, opts...)
	if err != nil {
		log.Errorw("Failed to initialize Firebase app", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("firestore: failed to initialize firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		log.Errorw("Failed to create Firestore client", "error", err, "projectID", projectID)
		return nil, fmt.Errorf("firestore: failed to create client: %w", err)
	}

	log.Infow("Connected to Firestore", "projectID", projectID, "collection", collection)
	return &UserRecordRepository{
		client:     client,
		collection: collection,
		log:        log,
	}, nil
}

// Close закрывает соединение с Firestore
func (r *UserRecordRepository) Close() error {
	return r.client.Close()
}

// GetByUserID возвращает запись подписки пользователя
func (r *UserRecordRepository) GetByUserID(ctx context.Context, userID string) (*domain.UserSubscription, error) {
	doc, err := r.client.Collection(r.collection).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			r.log.Debugw("User record not found", "userID", userID)
			return nil, domain.ErrNotFound
		}
		r.log.Errorw("Failed to get user record", "error", err, "userID", userID)
		return nil, fmt.Errorf("firestore: failed to get user record: %w", err)
	}

	var rec domain.UserSubscription
	if err := doc.DataTo(&rec); err != nil {
		r.log.Errorw("Failed to decode user record", "error", err, "userID", userID)
		return nil, fmt.Errorf("firestore: failed to decode user record: %w", err)
	}
	rec.UserID = userID

	return &rec, nil
}

// Merge применяет частичное обновление к документу пользователя
func (r *UserRecordRepository) Merge(ctx context.Context, userID string, patch domain.SubscriptionPatch) error {
	fields := patch.Fields()

	// Set с MergeAll создает документ при отсутствии и не трогает
	// поля, которых нет в патче
	if _, err := r.client.Collection(r.collection).Doc(userID).Set(ctx, fields, firestore.MergeAll); err != nil {
		r.log.Errorw("Failed to merge user record", "error", err, "userID", userID)
		return fmt.Errorf("firestore: failed to merge user record: %w", err)
	}

	r.log.Debugw("User record merged", "userID", userID, "fields", len(fields))
	return nil
}
