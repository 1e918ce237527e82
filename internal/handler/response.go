package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, every failure through
// writeError, so all endpoints share one shape:
//
//	{"error": "Title and description are required"}

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/tasktracker/internal/apperror"
	"github.com/sakif/tasktracker/internal/auth"
)

// maxBodyBytes caps request bodies; the largest legitimate payload is a task.
const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Error string `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// writeJSON sets headers and status before the body; once the body starts,
// header changes are ignored.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

func writeMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}

// writeError maps a domain error to a status code. errors.Is walks the
// wrap chain, so a service's fmt.Errorf("...: %w", appErr) still matches.
//
//	ErrValidation   → 400
//	ErrUnauthorized → 401
//	ErrForbidden    → 403
//	ErrNotFound     → 404
//	ErrConflict     → 409
//
// Anything else is logged with the request id and answered with a generic
// 500; internal details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
		}
		if status != http.StatusInternalServerError {
			writeErrorMessage(w, status, appErr.Message)
			return
		}
	}

	logger.Error("request failed",
		slog.String("requestID", chimiddleware.GetReqID(r.Context())),
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
}

// decodeJSON reads one JSON value from the body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperror.ValidationFailed("", "Request body is required")
		}
		return apperror.ValidationFailed("", "Invalid JSON body")
	}
	return nil
}

// requireUserID reads the user RequireAuth stored. Routes are always
// mounted behind RequireAuth, so a miss means a wiring mistake.
func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusUnauthorized, "Not authenticated")
		return "", false
	}
	return id, true
}
