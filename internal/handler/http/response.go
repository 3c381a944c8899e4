package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/authgate/auth-service/pkg/errors"
	"github.com/authgate/auth-service/pkg/validator"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body != nil {
		_ = json.NewEncoder(w).Encode(body)
	}
}

type errorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// writeError maps any error to its JSON response. Internal causes are logged
// with their wrapped detail but serialized as a generic message.
func writeError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	var validationErr *validator.ValidationError
	if errors.As(err, &validationErr) {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    "INVALID_INPUT",
			Message: "validation failed",
			Fields:  validationErr.Fields(),
		})
		return
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Status >= http.StatusInternalServerError {
			logger.ErrorContext(ctx, "request failed", slog.String("error", appErr.Error()))
		}
		writeJSON(w, appErr.Status, errorBody{Code: appErr.Code, Message: appErr.Message})
		return
	}

	status := apperrors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", slog.String("error", err.Error()))
		writeJSON(w, status, errorBody{Code: "INTERNAL_ERROR", Message: "an internal error occurred"})
		return
	}

	writeJSON(w, status, errorBody{Code: "ERROR", Message: err.Error()})
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
