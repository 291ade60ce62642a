package domain

import (
	"errors"
	"fmt"
)

// Application errors
var (
	// ErrMissingConfiguration отсутствует обязательный секрет или настройка
	ErrMissingConfiguration = errors.New("missing configuration")

	// ErrInvalidInput неверные входные данные
	ErrInvalidInput = errors.New("invalid input data")

	// ErrSignatureVerification не удалось проверить подпись вебхука
	ErrSignatureVerification = errors.New("webhook signature verification failed")

	// ErrNotFound запись не найдена
	ErrNotFound = errors.New("record not found")
)

// ProviderError представляет ошибку вызова платежного провайдера
type ProviderError struct {
	Operation   string
	Message     string
	OriginalErr error
}

// Error реализует интерфейс error
func (e *ProviderError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("provider error [%s]: %s: %v", e.Operation, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("provider error [%s]: %s", e.Operation, e.Message)
}

// Unwrap возвращает оригинальную ошибку
func (e *ProviderError) Unwrap() error {
	return e.OriginalErr
}

// NewProviderError создает новую ошибку провайдера
func NewProviderError(operation, message string, err error) *ProviderError {
	return &ProviderError{
		Operation:   operation,
		Message:     message,
		OriginalErr: err,
	}
}
