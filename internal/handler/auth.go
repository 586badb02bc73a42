// Package handler provides HTTP handlers for the onboarding engine.
package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"onboard/internal/auth"
	"onboard/pkg/errors"
	"onboard/pkg/logger"
	"onboard/pkg/validator"
)

// AuthHandler handles staff authentication endpoints.
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

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		h.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}

	if err := h.validator.Validate(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

// Register handles staff account creation.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}

	response, err := h.service.Register(r.Context(), &req)
	if err != nil {
		if err == errors.ErrUserAlreadyExists {
			h.respondError(w, http.StatusConflict, "User already exists")
			return
		}

		h.logger.Error("Registration failed", map[string]interface{}{"error": err.Error()})
		h.respondError(w, http.StatusInternalServerError, "Registration failed")
		return
	}

	h.respondJSON(w, http.StatusCreated, response)
}

// Login authenticates a staff member and returns a token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	response, err := h.service.Login(r.Context(), &req)
	if err != nil {
		if err == errors.ErrUserInactive {
			h.respondError(w, http.StatusForbidden, "Account is inactive")
			return
		}
		h.respondError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	h.respondJSON(w, http.StatusOK, response)
}

// Logout revokes the presented bearer token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		h.respondError(w, http.StatusBadRequest, "Bearer token required")
		return
	}

	if err := h.service.Logout(r.Context(), parts[1]); err != nil {
		h.logger.Error("Logout failed", map[string]interface{}{"error": err.Error()})
		h.respondError(w, http.StatusInternalServerError, "Logout failed")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (h *AuthHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *AuthHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
