package handler

import (
	"context"
	"net/http"
	"strconv"

	"onboard/internal/domain"
	"onboard/internal/middleware"
	"onboard/pkg/logger"
)

// AuditReader pages the audit trail, newest first.
type AuditReader interface {
	FindRecent(ctx context.Context, limit, offset int) ([]*domain.AuditLog, error)
}

// AuditHandler exposes the audit trail to administrators.
type AuditHandler struct {
	reader AuditReader
	logger logger.Logger
}

func NewAuditHandler(reader AuditReader, log logger.Logger) *AuditHandler {
	return &AuditHandler{reader: reader, logger: log}
}

// List handles GET /api/v1/audit
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	role, ok := middleware.RoleFromContext(r.Context())
	if !ok || role != domain.StaffRoleAdmin {
		respondError(w, http.StatusForbidden, "Forbidden")
		return
	}

	limit := 100
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 500 {
			limit = int(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = int(n)
		}
	}

	entries, err := h.reader.FindRecent(r.Context(), limit, offset)
	if err != nil {
		h.logger.Error("Failed to list audit logs", map[string]interface{}{
			"error": err.Error(),
		})
		respondError(w, http.StatusInternalServerError, "Failed to list audit logs")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}
