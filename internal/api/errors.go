package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/MJE43/rotor-replay-go/internal/calibrate"
	"github.com/MJE43/rotor-replay-go/internal/exploit"
	"github.com/MJE43/rotor-replay-go/internal/ingest"
	"github.com/MJE43/rotor-replay-go/internal/slot"
	"github.com/MJE43/rotor-replay-go/internal/store"
)

// ErrorBuilder helps construct structured errors with context
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError creates a new error builder
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

// WithContext adds context information to the error
func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

// WithRequestID adds request ID to the error
func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

// WithCause records the wrapped error message, if any
func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

// Build creates the final EngineError
func (eb *ErrorBuilder) Build() EngineError {
	return EngineError{
		Type:      eb.errType,
		Message:   eb.message,
		Context:   eb.context,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// ErrorHandler maps domain errors to responses and logs them.
type ErrorHandler struct {
	logger *zap.Logger
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// classify returns the status and error type for err.
func classify(err error) (int, string) {
	var rowErr *ingest.RowError
	switch {
	case errors.Is(err, slot.ErrMalformedOutcome), errors.As(err, &rowErr):
		return http.StatusBadRequest, ErrTypeMalformed
	case errors.Is(err, calibrate.ErrInvalidRequest), errors.Is(err, slot.ErrInvalidModel):
		return http.StatusBadRequest, ErrTypeInvalidParams
	case errors.Is(err, exploit.ErrUnresolved):
		return http.StatusUnprocessableEntity, ErrTypeUnresolved
	case errors.Is(err, store.ErrDuplicateOutcome):
		return http.StatusConflict, ErrTypeDuplicate
	case errors.Is(err, store.ErrRunNotFound):
		return http.StatusNotFound, ErrTypeNotFound
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, ErrTypeTimeout
	default:
		return http.StatusInternalServerError, ErrTypeInternal
	}
}

// HandleError writes err as an EngineError with a status derived from its kind.
func (eh *ErrorHandler) HandleError(w http.ResponseWriter, r *http.Request, err error) {
	status, errType := classify(err)
	engineErr := NewError(errType, err.Error()).
		WithCause(errors.Unwrap(err)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, engineErr, status)
	eh.writeErrorResponse(w, status, engineErr)
}

// HandleValidationError handles validation-specific errors
func (eh *ErrorHandler) HandleValidationError(w http.ResponseWriter, r *http.Request, field, message string) {
	engineErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		WithContext("path", r.URL.Path).
		WithContext("method", r.Method).
		Build()

	eh.logError(r, engineErr, http.StatusBadRequest)
	eh.writeErrorResponse(w, http.StatusBadRequest, engineErr)
}

// RecoveryHandler turns panics into internal errors.
func (eh *ErrorHandler) RecoveryHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				eh.logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("path", r.URL.Path),
					zap.ByteString("stack", debug.Stack()))
				engineErr := NewError(ErrTypeInternal, "Internal server error").
					WithRequestID(middleware.GetReqID(r.Context())).
					Build()
				eh.writeErrorResponse(w, http.StatusInternalServerError, engineErr)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (eh *ErrorHandler) logError(r *http.Request, err EngineError, status int) {
	fields := []zap.Field{
		zap.String("type", err.Type),
		zap.String("message", err.Message),
		zap.Int("status", status),
		zap.String("request_id", err.RequestID),
		zap.String("path", r.URL.Path),
	}
	if status >= http.StatusInternalServerError {
		eh.logger.Error("request failed", fields...)
		return
	}
	eh.logger.Info("request rejected", fields...)
}

func (eh *ErrorHandler) writeErrorResponse(w http.ResponseWriter, status int, err EngineError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Engine-Version", EngineVersion)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(err)
}
