package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"login-service/internal/service"
	"login-service/internal/util"
)

// Response represents a standard API response
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

func successResponse(data any, message string) Response {
	return Response{Success: true, Data: data, Message: message}
}

func errorResponse(err error, message string) Response {
	return Response{Success: false, Error: err.Error(), Message: message}
}

func respondWithJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		util.Error("Failed to encode JSON response", util.ErrorField(err))
	}
}

// respondWithError answers form posts with a plain-text message and JSON clients with
// the Response envelope.
func respondWithError(w http.ResponseWriter, r *http.Request, statusCode int, err error, message string) {
	if statusCode >= http.StatusInternalServerError {
		util.Error("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode),
			util.String("path", r.URL.Path))
	} else {
		util.Debug("HTTP error response",
			util.ErrorField(err),
			util.Int("status_code", statusCode),
			util.String("path", r.URL.Path))
	}

	if wantsJSON(r) {
		respondWithJSON(w, statusCode, errorResponse(err, message))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	_, _ = w.Write([]byte(message))
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// getStatusCode maps service errors to the status and message the client sees.
func getStatusCode(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Invalid credentials"
	case errors.Is(err, service.ErrInvalidSecondFactor):
		return http.StatusUnauthorized, "Invalid 2FA code"
	case errors.Is(err, service.ErrNoPendingChallenge):
		return http.StatusBadRequest, "No pending login"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusUnauthorized, "Session expired"
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "Session store unavailable"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
