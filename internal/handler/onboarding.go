// ==============================================================================
// ONBOARDING HTTP HANDLER - internal/handler/onboarding.go
// ==============================================================================
// HTTP endpoints for the onboarding workflow: lifecycle, screening,
// checklists, documents, approvals, phases and fee quotes
// ==============================================================================

package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"onboard/internal/approval"
	"onboard/internal/domain"
	"onboard/internal/middleware"
	"onboard/internal/onboarding"
	oberrors "onboard/pkg/errors"
	"onboard/pkg/logger"
	"onboard/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// UserFinder loads staff accounts for authorization decisions.
type UserFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
}

// OnboardingHandler handles onboarding workflow endpoints
type OnboardingHandler struct {
	service   *onboarding.Service
	users     UserFinder
	validator *validator.Validator
	logger    logger.Logger
}

// NewOnboardingHandler creates a new OnboardingHandler with required dependencies
func NewOnboardingHandler(service *onboarding.Service, users UserFinder, val *validator.Validator, log logger.Logger) *OnboardingHandler {
	return &OnboardingHandler{
		service:   service,
		users:     users,
		validator: val,
		logger:    log,
	}
}

// ==============================================================================
// HELPERS
// ==============================================================================

// respondJSON sends a JSON response with proper content type and status code
func (h *OnboardingHandler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", map[string]interface{}{
			"error":   err.Error(),
			"status":  status,
			"handler": "onboarding",
		})
		http.Error(w, `{"error":"response encoding failed"}`, http.StatusInternalServerError)
	}
}

// respondError sends a standardized error response
func (h *OnboardingHandler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}

// parseAndValidateRequest parses and validates a JSON request body
func (h *OnboardingHandler) parseAndValidateRequest(w http.ResponseWriter, r *http.Request, req interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 2<<20) // 2MB limit

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(req); err != nil {
		if err == io.EOF {
			h.respondError(w, http.StatusBadRequest, "Request body is required")
			return false
		}
		h.logger.Warn("Invalid request body", map[string]interface{}{
			"error":    err.Error(),
			"handler":  "onboarding",
			"endpoint": r.URL.Path,
		})
		h.respondError(w, http.StatusBadRequest, "Invalid request body format")
		return false
	}

	if err := h.validator.Validate(req); err != nil {
		h.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}

	return true
}

// pathUUID extracts and parses a UUID path variable
func (h *OnboardingHandler) pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// actingUser loads the authenticated staff member for the request
func (h *OnboardingHandler) actingUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondError(w, http.StatusUnauthorized, "Authentication required")
		return nil, false
	}
	user, err := h.users.FindByID(r.Context(), userID)
	if err != nil {
		h.respondError(w, http.StatusUnauthorized, "Unknown user")
		return nil, false
	}
	if !user.IsActive {
		h.respondError(w, http.StatusForbidden, "Account is inactive")
		return nil, false
	}
	return user, true
}

// serviceError maps workflow errors to HTTP responses
func (h *OnboardingHandler) serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, oberrors.ErrOnboardingNotFound),
		errors.Is(err, oberrors.ErrRequirementNotFound),
		errors.Is(err, oberrors.ErrDocumentNotFound),
		errors.Is(err, oberrors.ErrAssessmentNotFound):
		h.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, oberrors.ErrRoleNotPermitted),
		errors.Is(err, oberrors.ErrOverrideNotPermitted):
		h.respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, oberrors.ErrSignoffIncomplete),
		errors.Is(err, oberrors.ErrJustificationTooShort),
		errors.Is(err, oberrors.ErrInvalidApprovalAction),
		errors.Is(err, oberrors.ErrOnboardingTerminal),
		errors.Is(err, oberrors.ErrScreeningNotRun),
		errors.Is(err, oberrors.ErrRequirementNotMatching),
		errors.Is(err, oberrors.ErrPrincipalNotFound):
		h.respondError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error("Onboarding request failed", map[string]interface{}{
			"error": err.Error(),
		})
		h.respondError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// ==============================================================================
// LIFECYCLE ENDPOINTS
// ==============================================================================

// Start handles POST /api/v1/onboardings
func (h *OnboardingHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req onboarding.StartOnboardingInput
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	ob, err := h.service.StartOnboarding(r.Context(), req)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, ob)
}

// Get handles GET /api/v1/onboardings/{id}
func (h *OnboardingHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	ob, err := h.service.GetOnboarding(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ob)
}

// List handles GET /api/v1/onboardings with an optional comma-separated
// status filter, e.g. ?status=pending_mlro,pending_board
func (h *OnboardingHandler) List(w http.ResponseWriter, r *http.Request) {
	var statuses []domain.OnboardingStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			status, ok := domain.ParseOnboardingStatus(strings.TrimSpace(part))
			if !ok {
				h.respondError(w, http.StatusBadRequest, "Unknown status filter: "+part)
				return
			}
			statuses = append(statuses, status)
		}
	}

	limit := 50
	offset := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 && n <= 100 {
			limit = int(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n >= 0 {
			offset = int(n)
		}
	}

	onboardings, err := h.service.ListOnboardings(r.Context(), statuses, limit, offset)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"onboardings": onboardings,
		"count":       len(onboardings),
	})
}

// ==============================================================================
// SCREENING AND RISK ENDPOINTS
// ==============================================================================

// RunScreening handles POST /api/v1/onboardings/{id}/screening
func (h *OnboardingHandler) RunScreening(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	assessment, err := h.service.RunScreening(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, assessment)
}

// GetRiskAssessment handles GET /api/v1/onboardings/{id}/risk
func (h *OnboardingHandler) GetRiskAssessment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	assessment, err := h.service.LatestRiskAssessment(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, assessment)
}

// ==============================================================================
// CHECKLIST ENDPOINTS
// ==============================================================================

// RegenerateRequirements handles POST /api/v1/onboardings/{id}/requirements/regenerate
func (h *OnboardingHandler) RegenerateRequirements(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	requirements, err := h.service.RegenerateRequirements(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"requirements": requirements,
		"count":        len(requirements),
	})
}

// GetChecklist handles GET /api/v1/onboardings/{id}/checklist
func (h *OnboardingHandler) GetChecklist(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	list, err := h.service.BuildChecklist(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, list)
}

// GetProgress handles GET /api/v1/onboardings/{id}/progress
func (h *OnboardingHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	progress, err := h.service.ChecklistProgress(r.Context(), id)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, progress)
}

// ==============================================================================
// DOCUMENT ENDPOINTS
// ==============================================================================

// IngestDocumentsRequest carries a batch of uploaded documents with any
// analysis already produced by the OCR collaborator.
type IngestDocumentsRequest struct {
	Documents []*domain.UploadedDocument `json:"documents" validate:"required,min=1"`
}

// IngestDocuments handles POST /api/v1/onboardings/{id}/documents
func (h *OnboardingHandler) IngestDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req IngestDocumentsRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	now := time.Now().UTC()
	for _, doc := range req.Documents {
		if doc.ID == uuid.Nil {
			doc.ID = uuid.New()
		}
		if doc.UploadedAt.IsZero() {
			doc.UploadedAt = now
		}
	}

	events, err := h.service.IngestDocuments(r.Context(), id, req.Documents)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"documents":    req.Documents,
		"linked":       events,
		"linked_count": len(events),
	})
}

// ReassignRequest manually links a document to a requirement slot.
type ReassignRequest struct {
	RequirementID uuid.UUID `json:"requirement_id" validate:"required"`
}

// ReassignDocument handles POST /api/v1/documents/{docId}/reassign
func (h *OnboardingHandler) ReassignDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathUUID(w, r, "docId")
	if !ok {
		return
	}

	var req ReassignRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	if err := h.service.ReassignDocument(r.Context(), docID, req.RequirementID); err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "reassigned"})
}

// OverrideRequest carries the justification for forcing a document to pass.
type OverrideRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// OverrideDocument handles POST /api/v1/documents/{docId}/override
func (h *OnboardingHandler) OverrideDocument(w http.ResponseWriter, r *http.Request) {
	docID, ok := h.pathUUID(w, r, "docId")
	if !ok {
		return
	}

	actor, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	var req OverrideRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	if err := h.service.OverrideDocument(r.Context(), docID, actor, req.Reason); err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "overridden"})
}

// ==============================================================================
// APPROVAL ENDPOINTS
// ==============================================================================

// SignoffRequest records a compliance or MLRO KYC sign-off.
type SignoffRequest struct {
	Status   domain.ApprovalStatus `json:"status" validate:"required,oneof=approved rejected"`
	Comments string                `json:"comments"`
}

// RecordSignoff handles POST /api/v1/onboardings/{id}/signoff
func (h *OnboardingHandler) RecordSignoff(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	signer, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	var req SignoffRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	record, err := h.service.RecordKYCSignoff(r.Context(), id, signer, req.Status, req.Comments)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// BoardDecisionRequest records the board step outcome.
type BoardDecisionRequest struct {
	Action   approval.BoardAction `json:"action" validate:"required,oneof=approve reject request_info"`
	Comments string               `json:"comments"`
}

// DecideBoard handles POST /api/v1/onboardings/{id}/board-decision
func (h *OnboardingHandler) DecideBoard(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	signer, ok := h.actingUser(w, r)
	if !ok {
		return
	}

	var req BoardDecisionRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	record, err := h.service.DecideBoard(r.Context(), id, signer, req.Action, req.Comments)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, record)
}

// ==============================================================================
// PHASE ENDPOINTS
// ==============================================================================

// CheckPhaseRequest lists the tasks completed in the current phase.
type CheckPhaseRequest struct {
	CompletedTasks []string `json:"completed_tasks"`
}

// CheckPhase handles POST /api/v1/onboardings/{id}/phase/check
func (h *OnboardingHandler) CheckPhase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CheckPhaseRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	result, err := h.service.CheckPhase(r.Context(), id, req.CompletedTasks)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, result)
}

// AdvancePhaseRequest selects the phase action to take.
type AdvancePhaseRequest struct {
	Action string `json:"action" validate:"required,oneof=save next"`
}

// AdvancePhase handles POST /api/v1/onboardings/{id}/phase/advance
func (h *OnboardingHandler) AdvancePhase(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AdvancePhaseRequest
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	ob, err := h.service.AdvancePhase(r.Context(), id, req.Action)
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, ob)
}

// OverdueReport handles GET /api/v1/onboardings/overdue
func (h *OnboardingHandler) OverdueReport(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.OverdueReport(r.Context(), time.Now().UTC())
	if err != nil {
		h.serviceError(w, err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"overdue": entries,
		"count":   len(entries),
	})
}

// ==============================================================================
// FEE ENDPOINTS
// ==============================================================================

// QuoteFees handles POST /api/v1/fees/quote
func (h *OnboardingHandler) QuoteFees(w http.ResponseWriter, r *http.Request) {
	var req onboarding.QuoteInput
	if !h.parseAndValidateRequest(w, r, &req) {
		return
	}

	result := h.service.QuoteFees(req)
	h.respondJSON(w, http.StatusOK, result)
}
