package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"onboard/internal/auth"
	"onboard/internal/domain"
	"onboard/internal/middleware"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// UsersHandler exposes staff account administration. All routes are
// admin only.
type UsersHandler struct {
	service *auth.Service
	logger  logger.Logger
}

func NewUsersHandler(service *auth.Service, log logger.Logger) *UsersHandler {
	return &UsersHandler{service: service, logger: log}
}

type listUsersResponse struct {
	Users []*domain.User `json:"users"`
	Total int            `json:"total"`
}

func (h *UsersHandler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok || role != domain.StaffRoleAdmin {
		respondError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

func (h *UsersHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 200 {
			limit = int(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = int(n)
		}
	}
	users, total, err := h.service.ListUsers(r.Context(), limit, offset)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to list users")
		return
	}
	respondJSON(w, http.StatusOK, listUsersResponse{Users: users, Total: total})
}

func (h *UsersHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}
	user, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	respondJSON(w, http.StatusOK, user)
}

type setActiveRequest struct {
	IsActive bool `json:"is_active"`
}

// SetActive enables or disables a staff account. Disabled accounts
// cannot log in or act on onboardings.
func (h *UsersHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req setActiveRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.service.SetActive(r.Context(), id, req.IsActive)
	if err != nil {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}

	h.logger.Info("Staff account status changed", map[string]interface{}{
		"user_id":   user.ID,
		"is_active": user.IsActive,
	})
	respondJSON(w, http.StatusOK, user)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
