// Package handler exposes the workflow engine as a JSON HTTP API with a
// websocket event stream per session.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
)

const maxBodyBytes = 1 << 20

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, errorBody{Error: message})
}

// decode reads a JSON body into dst. An empty body is allowed when
// optional is set.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			if optional {
				return true
			}
			respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrSessionNotFound),
		errors.Is(err, apperrors.ErrChallengeNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrInvalidCredentials),
		errors.Is(err, apperrors.ErrInvalidOTP),
		errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrResendNotAllowed):
		return http.StatusTooManyRequests
	case errors.Is(err, apperrors.ErrUnknownField),
		errors.Is(err, apperrors.ErrIndexRange):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrDialogOpen),
		errors.Is(err, apperrors.ErrReadOnlyField),
		errors.Is(err, apperrors.ErrMirroredField),
		errors.Is(err, apperrors.ErrLimitReached),
		errors.Is(err, apperrors.ErrStaleResult),
		errors.Is(err, apperrors.ErrNoActiveWizard):
		return http.StatusConflict
	case errors.Is(err, apperrors.ErrTimeoutExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrGatewayUnavailable),
		errors.Is(err, apperrors.ErrVerificationFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// respondFailure writes err with its mapped status. Validation failures
// carry the offending field; internal errors are logged and masked.
func respondFailure(w http.ResponseWriter, log logger.Logger, err error) {
	status := statusFor(err)
	if ve, ok := apperrors.AsValidation(err); ok {
		respondJSON(w, status, errorBody{Error: ve.Message, Field: ve.Field})
		return
	}
	if status == http.StatusInternalServerError {
		log.Error("Request failed", map[string]interface{}{"error": err.Error()})
		respondError(w, status, "Internal server error")
		return
	}
	respondError(w, status, err.Error())
}
