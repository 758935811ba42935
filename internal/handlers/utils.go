package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/result-system/apiserver/internal/apperr"
)

type contextKey string

const contextPrincipalKey contextKey = "principal"

// DataResponse is the success envelope.
type DataResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorResponse is the error envelope. Code is the status name, for example
// UNAUTHORIZED or BAD_USER_INPUT.
type ErrorResponse struct {
	Success   bool      `json:"success"`
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Paths     []string  `json:"paths,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, DataResponse{Success: true, Data: data, Timestamp: time.Now().UTC()})
}

// writeError renders err as an error envelope. Causes of server-side
// failures are logged and never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	appErr := apperr.From(err)
	status := appErr.HTTPStatus()

	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Int("status", status),
		zap.String("kind", appErr.Kind.String()),
	}
	if status >= http.StatusInternalServerError {
		log.Error("request failed", append(fields, zap.Error(err))...)
	} else if appErr.Cause != nil {
		log.Debug("request rejected", append(fields, zap.Error(appErr.Cause))...)
	}

	writeJSON(w, status, ErrorResponse{
		Code:      apperr.StatusCode(status),
		Message:   appErr.Message,
		Timestamp: time.Now().UTC(),
		Paths:     appErr.Paths,
	})
}

// Healthz reports liveness.
func Healthz(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NotFound is the fallback for unknown routes.
func NotFound(log *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, log, apperr.NotFound("Could not find this route."))
	}
}
