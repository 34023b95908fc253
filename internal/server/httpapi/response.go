package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/gatekeeper/internal/common"
)

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: message, Code: code})
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, common.ErrorMissingField):
		return http.StatusBadRequest, "MISSING_FIELD", err.Error()
	case errors.Is(err, common.ErrorInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS", "invalid username or password"
	case errors.Is(err, common.ErrorInvalidKey):
		return http.StatusBadRequest, "INVALID_KEY", "invalid registration key"
	case errors.Is(err, common.ErrorUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing session"
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, common.ErrorInvalidApplication):
		return http.StatusNotFound, "INVALID_APPLICATION", "application not found"
	case errors.Is(err, common.ErrorAlreadyExists):
		return http.StatusConflict, "ALREADY_EXISTS", "username already taken"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}

func (h *Handler) writeMappedError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	status, code, msg := mapDomainError(err)
	fields := []any{
		"operation", operation,
		"status_code", status,
		"error_code", code,
		"request_id", requestIDFromContext(ctx),
		"error", err.Error(),
	}
	if status >= 500 {
		h.logger.Error(ctx, "http operation failed", fields...)
	} else {
		h.logger.Debug(ctx, "http operation rejected", fields...)
	}
	writeError(w, status, code, msg)
}
