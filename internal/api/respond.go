package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/article-enhancer/internal/pipeline"
	"github.com/sells-group/article-enhancer/internal/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// envelope is the body shape of every API response.
type envelope struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

// ValidationError reports a malformed request. It maps to 400.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func invalid(msg string) error { return &ValidationError{Message: msg} }

func writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Status: statusSuccess, Data: data})
}

// writeError maps err onto a status code and an error envelope. Server-side
// failures are logged and answered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	writeJSON(w, status, envelope{Status: statusError, Message: msg})
}

func classify(err error) (int, string) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, ve.Message
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "article not found"
	case errors.Is(err, store.ErrDuplicate):
		return http.StatusConflict, "an article with this originalUrl already exists"
	case errors.Is(err, pipeline.ErrAlreadyEnhanced):
		return http.StatusConflict, "article already enhanced"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
