// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/alchemorsel/recipeflow/internal/infrastructure/monitoring"
	apperrors "github.com/alchemorsel/recipeflow/pkg/errors"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, logger *zap.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", zap.Error(err))
	}
}

// WriteError renders err as the error envelope. Errors that are not
// AppErrors become internal errors and their cause is only logged.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		appErr = apperrors.NewInternalError("").WithCause(err)
	}

	status := appErr.StatusCode()
	fields := append(monitoring.ContextFields(r.Context()),
		zap.String("code", string(appErr.Code)),
		zap.Int("status", status),
		zap.Error(err),
	)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", append(fields, zap.String("stack", appErr.StackTrace))...)
	} else {
		logger.Warn("Request rejected", fields...)
	}

	WriteJSON(w, logger, status, apperrors.ToErrorResponse(appErr, chimiddleware.GetReqID(r.Context())))
}

// decodeJSON reads a bounded JSON body into target
func decodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64, target interface{}) error {
	body := http.MaxBytesReader(w, r.Body, maxBytes)
	defer body.Close()

	if err := json.NewDecoder(body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewValidationError("request body too large")
		}
		return apperrors.NewValidationError("malformed JSON body: " + err.Error())
	}
	return nil
}
