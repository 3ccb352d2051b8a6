package chi

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/rollup/internal/domain"
)

// ErrorCode is the machine-readable error code of an API error response.
type ErrorCode string

// API error codes.
const (
	CodeBadRequest         ErrorCode = "bad_request"
	CodeUnauthorized       ErrorCode = "unauthorized"
	CodeValidationFailed   ErrorCode = "validation_failed"
	CodeNotFound           ErrorCode = "not_found"
	CodeDocumentNotFound   ErrorCode = "document_not_found"
	CodeUnknownField       ErrorCode = "unknown_field"
	CodeMandatoryMissing   ErrorCode = "mandatory_field_missing"
	CodeInvalidReference   ErrorCode = "invalid_reference"
	CodeReentrantWrite     ErrorCode = "reentrant_write"
	CodeCriteriaResolution ErrorCode = "criteria_resolution_failed"
	CodeInternalError      ErrorCode = "internal_error"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

func defaultErrorHandlers() []errorHandler {
	return []errorHandler{
		criteriaResolutionHandler,
		sentinelHandler(domain.ErrDocumentNotFound, http.StatusNotFound, CodeDocumentNotFound),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrUnknownField, http.StatusBadRequest, CodeUnknownField),
		sentinelHandler(domain.ErrInvalidSchema, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrMandatoryFieldMissing, http.StatusUnprocessableEntity, CodeMandatoryMissing),
		sentinelHandler(domain.ErrInvalidReference, http.StatusUnprocessableEntity, CodeInvalidReference),
		sentinelHandler(domain.ErrReentrantWrite, http.StatusConflict, CodeReentrantWrite),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
// Schema errors carry the offending field, which is safe to show.
func safeDomainMessage(err error) string {
	for _, s := range []error{
		domain.ErrUnknownField, domain.ErrInvalidSchema, domain.ErrMandatoryFieldMissing, domain.ErrInvalidReference,
	} {
		if errors.Is(err, s) {
			return err.Error()
		}
	}
	sentinels := []error{
		domain.ErrDocumentNotFound,
		domain.ErrNotFound,
		domain.ErrReentrantWrite,
		domain.ErrCriteriaResolution,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// criteriaResolutionHandler reports the reference that failed to resolve.
func criteriaResolutionHandler(w http.ResponseWriter, err error, msg string) bool {
	var cre *domain.CriteriaResolutionError
	if !errors.As(err, &cre) {
		return false
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"code":    CodeCriteriaResolution,
		"message": msg,
		"field":   cre.Field,
		"type":    cre.Type,
		"value":   cre.Code,
	})
	return true
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
