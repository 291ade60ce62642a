package req

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/Dhoini/Billing-sync-service/pkg/logger"
	"github.com/Dhoini/Billing-sync-service/pkg/res"
	"github.com/go-playground/validator/v10"
)

// Decode декодирует JSON из io.ReadCloser в структуру типа T.
func Decode[T any](body io.ReadCloser) (T, error) {
	var payload T
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return payload, err
	}
	return payload, nil
}

// IsValid валидирует структуру типа T.
func IsValid[T any](payload T) error {
	validate := validator.New()
	return validate.Struct(payload)
}

// HandleBody декодирует, валидирует и обрабатывает тело запроса.
func HandleBody[T any](w http.ResponseWriter, r *http.Request, log *logger.Logger) (*T, error) {
	body, err := Decode[T](r.Body)
	if err != nil {
		log.Errorw("Ошибка декодирования тела запроса", "error", err)
		res.JsonResponse(w, res.ErrorResponse{Error: "invalid request body"}, http.StatusBadRequest)
		return nil, err
	}

	if err := IsValid(body); err != nil {
		log.Errorw("Ошибка валидации тела запроса", "error", err)
		res.JsonResponse(w, res.ErrorResponse{Error: "invalid request data", Details: err.Error()}, http.StatusBadRequest)
		return nil, err
	}
	return &body, nil
}
