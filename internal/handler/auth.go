package handler

import (
	"net/http"

	"pensionflow/internal/auth"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

// AuthHandler handles the operator login endpoints.
type AuthHandler struct {
	service   *auth.Service
	validator *validator.Validator
	logger    logger.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(service *auth.Service, val *validator.Validator, log logger.Logger) *AuthHandler {
	return &AuthHandler{
		service:   service,
		validator: val,
		logger:    log,
	}
}

type otpRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	Code        string `json:"code"`
}

// Login checks credentials and starts the OTP step.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decode(w, r, &req, false) {
		return
	}

	challenge, err := h.service.Login(r.Context(), &req)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, challenge)
}

// VerifyOTP completes the login and returns the access token.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req, false) {
		return
	}
	if err := h.validator.Check(&req); err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	token, err := h.service.VerifyOTP(r.Context(), req.ChallengeID, req.Code)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, token)
}

// ResendOTP sends a fresh login OTP once the countdown has run out.
func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if !decode(w, r, &req, false) {
		return
	}
	if err := h.validator.Check(&req); err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	challenge, err := h.service.ResendOTP(r.Context(), req.ChallengeID)
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, challenge)
}
