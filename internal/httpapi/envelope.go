package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// envelope is the standard response body. Every outward result uses it,
// success and failure alike.
type envelope struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Data       any       `json:"data"`
	Error      *apiError `json:"error"`
	StatusCode int       `json:"statusCode"`
	Timestamp  time.Time `json:"timestamp"`
}

type apiError struct {
	ErrorCode      string            `json:"errorCode"`
	FieldErrors    map[string]string `json:"fieldErrors,omitempty"`
	Errors         []string          `json:"errors,omitempty"`
	AdditionalInfo map[string]string `json:"additionalInfo,omitempty"`
}

// Error codes carried in the envelope.
const (
	codeUnauthorized     = "UNAUTHORIZED"
	codeForbidden        = "FORBIDDEN"
	codeNotFound         = "NOT_FOUND"
	codeIllegalState     = "ILLEGAL_STATE"
	codeConflict         = "CONFLICT"
	codeValidation       = "VALIDATION"
	codeBadRequest       = "BAD_REQUEST"
	codeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	codeRateLimited      = "RATE_LIMITED"
	codeInternal         = "INTERNAL"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData emits a success envelope.
func writeData(w http.ResponseWriter, code int, message string, data any) {
	writeJSON(w, code, envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		StatusCode: code,
		Timestamp:  time.Now().UTC(),
	})
}

// writeError emits a failure envelope.
func writeError(w http.ResponseWriter, code int, errorCode, message string) {
	writeJSON(w, code, envelope{
		Success:    false,
		Message:    message,
		Error:      &apiError{ErrorCode: errorCode},
		StatusCode: code,
		Timestamp:  time.Now().UTC(),
	})
}

// writeValidationError emits a 422 with per-field details.
func writeValidationError(w http.ResponseWriter, message string, fieldErrors map[string]string) {
	writeJSON(w, http.StatusUnprocessableEntity, envelope{
		Success:    false,
		Message:    message,
		Error:      &apiError{ErrorCode: codeValidation, FieldErrors: fieldErrors},
		StatusCode: http.StatusUnprocessableEntity,
		Timestamp:  time.Now().UTC(),
	})
}

// writeUnauthorized is the single 401 used for every credential failure.
// Missing, malformed, expired and revoked credentials all produce this same
// body so a caller cannot distinguish them; the internal reason goes to
// logs and metrics only.
func writeUnauthorized(w http.ResponseWriter) {
	writeError(w, http.StatusUnauthorized, codeUnauthorized, "Unauthorized")
}

// writeForbidden is the single 403. It never names the missing role.
func writeForbidden(w http.ResponseWriter) {
	writeError(w, http.StatusForbidden, codeForbidden, "Forbidden")
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
}
