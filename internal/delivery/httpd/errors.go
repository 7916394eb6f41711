package httpd

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/vinhpham24hdev/api-chrome-extension-sub000/internal/service"
)

const (
	codeValidation      = "VALIDATION_ERROR"
	codeNotFound        = "NOT_FOUND"
	codeForbidden       = "FORBIDDEN"
	codeStorageMismatch = "STORAGE_MISMATCH"
	codeTimeout         = "TIMEOUT"
	codeInternal        = "INTERNAL_ERROR"
)

// writeServiceError переводит типизированные ошибки сервисов в HTTP-ответ.
// Текст необработанных ошибок уходит только в лог.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger zerolog.Logger, err error) {
	var (
		verr *service.ValidationError
		nerr *service.NotFoundError
		perr *service.PermissionError
		merr *service.StorageMismatchError
	)

	switch {
	case errors.As(err, &verr):
		writeValidation(w, verr.Violations...)
	case errors.As(err, &nerr):
		writeError(w, http.StatusNotFound, codeNotFound, nerr.Error())
	case errors.As(err, &perr):
		writeError(w, http.StatusForbidden, codeForbidden, perr.Error())
	case errors.As(err, &merr):
		writeError(w, http.StatusConflict, codeStorageMismatch, merr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, codeTimeout, "Request timed out")
	default:
		logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("Request failed")
		writeError(w, http.StatusInternalServerError, codeInternal, "Internal server error")
	}
}
