// ==============================================================================
// ONBOARDING SERVICE - internal/onboarding/service.go
// ==============================================================================
// Orchestrates the onboarding workflow: screening, risk assessment, document
// requirements, phase advancement and the approval chain
// ==============================================================================

package onboarding

import (
	"context"
	"sync"
	"time"

	"onboard/internal/approval"
	"onboard/internal/checklist"
	"onboard/internal/docmatch"
	"onboard/internal/domain"
	"onboard/internal/fees"
	"onboard/internal/phase"
	"onboard/internal/risk"
	"onboard/pkg/cache"
	oberrors "onboard/pkg/errors"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// REPOSITORY INTERFACES
// ==============================================================================

// Repository defines the data persistence interface for onboarding operations
type Repository interface {
	// Onboarding operations
	CreateOnboarding(ctx context.Context, ob *domain.Onboarding) error
	UpdateOnboarding(ctx context.Context, ob *domain.Onboarding) error
	FindOnboardingByID(ctx context.Context, id uuid.UUID) (*domain.Onboarding, error)
	FindOnboardingsByStatus(ctx context.Context, statuses []domain.OnboardingStatus, limit, offset int) ([]*domain.Onboarding, error)
	FindActiveOnboardings(ctx context.Context) ([]*domain.Onboarding, error)

	// Principal operations
	CreatePrincipal(ctx context.Context, principal *domain.Principal) error
	FindPrincipalsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.Principal, error)

	// Risk assessment operations
	CreateRiskAssessment(ctx context.Context, assessment *domain.RiskAssessment) error
	FindLatestRiskAssessment(ctx context.Context, onboardingID uuid.UUID) (*domain.RiskAssessment, error)

	// Requirement operations
	CreateRequirements(ctx context.Context, requirements []domain.DocumentRequirement) error
	UpdateRequirement(ctx context.Context, requirement *domain.DocumentRequirement) error
	FindRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.DocumentRequirement, error)
	FindRequirementByID(ctx context.Context, id uuid.UUID) (*domain.DocumentRequirement, error)
	DeleteRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) error

	// Document operations
	CreateDocument(ctx context.Context, doc *domain.UploadedDocument) error
	UpdateDocument(ctx context.Context, doc *domain.UploadedDocument) error
	FindDocumentByID(ctx context.Context, id uuid.UUID) (*domain.UploadedDocument, error)
	FindDocumentsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]*domain.UploadedDocument, error)

	// Approval operations
	UpsertApprovalRecord(ctx context.Context, record *domain.ApprovalRecord) error
	FindApprovalRecords(ctx context.Context, onboardingID uuid.UUID) ([]*domain.ApprovalRecord, error)
}

// ScreeningProvider runs sanctions/PEP/adverse-media screening for a set of
// principals. The production implementation calls the external screening
// vendor; callers wrap it with their own retry and timeout policy.
type ScreeningProvider interface {
	Screen(ctx context.Context, principals []domain.Principal) ([]domain.ScreeningResult, error)
}

// ==============================================================================
// SERVICE
// ==============================================================================

// Service wires the decision components behind a single workflow API.
type Service struct {
	repo       Repository
	screening  ScreeningProvider
	riskEngine *risk.Engine
	matcher    *docmatch.Matcher
	machine    *phase.Machine
	gate       *approval.Gate
	cache      *cache.RedisCache
	logger     logger.Logger

	// regenMu serializes requirement regeneration per onboarding so two
	// concurrent regenerations cannot interleave purge and recreate.
	regenMu sync.Map
}

// NewService constructs the onboarding workflow service. The cache may be
// nil; cached reads then fall through to the repository.
func NewService(
	repo Repository,
	screening ScreeningProvider,
	riskEngine *risk.Engine,
	matcher *docmatch.Matcher,
	machine *phase.Machine,
	gate *approval.Gate,
	redisCache *cache.RedisCache,
	log logger.Logger,
) *Service {
	return &Service{
		repo:       repo,
		screening:  screening,
		riskEngine: riskEngine,
		matcher:    matcher,
		machine:    machine,
		gate:       gate,
		cache:      redisCache,
		logger:     log,
	}
}

func (s *Service) lockOnboarding(id uuid.UUID) func() {
	muIface, _ := s.regenMu.LoadOrStore(id, &sync.Mutex{})
	mu := muIface.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ==============================================================================
// ONBOARDING LIFECYCLE
// ==============================================================================

// StartOnboardingInput carries the initial enquiry details.
type StartOnboardingInput struct {
	SponsorName  string           `json:"sponsor_name" validate:"required,min=2,max=200"`
	FundName     string           `json:"fund_name" validate:"required,min=2,max=200"`
	Jurisdiction string           `json:"jurisdiction" validate:"required,len=2"`
	EntityType   string           `json:"entity_type" validate:"required"`
	AssignedTo   *uuid.UUID       `json:"assigned_to,omitempty"`
	Principals   []PrincipalInput `json:"principals" validate:"dive"`
}

// PrincipalInput is one key party on the new onboarding.
type PrincipalInput struct {
	FullName     string          `json:"full_name" validate:"required,min=2,max=200"`
	RoleLabel    string          `json:"role_label" validate:"required"`
	OwnershipPct decimal.Decimal `json:"ownership_pct"`
	IsUBO        bool            `json:"is_ubo"`
}

// StartOnboarding creates a draft onboarding in phase 1 with its principals.
func (s *Service) StartOnboarding(ctx context.Context, input StartOnboardingInput) (*domain.Onboarding, error) {
	now := time.Now().UTC()
	ob := &domain.Onboarding{
		ID:             uuid.New(),
		SponsorName:    input.SponsorName,
		FundName:       input.FundName,
		Jurisdiction:   input.Jurisdiction,
		EntityType:     input.EntityType,
		CurrentPhase:   domain.PhaseEnquiry,
		Status:         domain.OnboardingStatusDraft,
		AssignedTo:     input.AssignedTo,
		PhaseStartedAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.CreateOnboarding(ctx, ob); err != nil {
		return nil, oberrors.Wrap(err, "failed to create onboarding")
	}

	for _, p := range input.Principals {
		principal := &domain.Principal{
			ID:           uuid.New(),
			OnboardingID: ob.ID,
			FullName:     p.FullName,
			RoleLabel:    p.RoleLabel,
			Role:         domain.ParseRole(p.RoleLabel),
			OwnershipPct: p.OwnershipPct,
			IsUBO:        p.IsUBO,
			CreatedAt:    now,
		}
		if err := s.repo.CreatePrincipal(ctx, principal); err != nil {
			return nil, oberrors.Wrap(err, "failed to create principal")
		}
	}

	s.logger.Info("Onboarding started", map[string]interface{}{
		"onboarding_id": ob.ID,
		"sponsor":       ob.SponsorName,
		"fund":          ob.FundName,
		"principals":    len(input.Principals),
	})

	return ob, nil
}

// GetOnboarding loads one onboarding by id.
func (s *Service) GetOnboarding(ctx context.Context, id uuid.UUID) (*domain.Onboarding, error) {
	return s.repo.FindOnboardingByID(ctx, id)
}

// ListOnboardings pages onboardings, optionally filtered by status. An
// empty filter covers every status.
func (s *Service) ListOnboardings(ctx context.Context, statuses []domain.OnboardingStatus, limit, offset int) ([]*domain.Onboarding, error) {
	if len(statuses) == 0 {
		statuses = domain.AllOnboardingStatuses()
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.FindOnboardingsByStatus(ctx, statuses, limit, offset)
}

// ==============================================================================
// SCREENING AND RISK
// ==============================================================================

// RunScreening screens all principals, computes the risk assessment, and
// persists it. The latest assessment by timestamp is authoritative. The
// onboarding's risk level is updated in place.
func (s *Service) RunScreening(ctx context.Context, onboardingID uuid.UUID) (*domain.RiskAssessment, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	if ob.Status.IsTerminal() {
		return nil, oberrors.ErrOnboardingTerminal
	}

	principals, err := s.repo.FindPrincipalsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	if len(principals) == 0 {
		return nil, oberrors.ErrPrincipalNotFound
	}

	results, err := s.screening.Screen(ctx, principals)
	if err != nil {
		return nil, oberrors.Wrap(err, "screening provider failed")
	}

	assessment := s.riskEngine.Calculate(onboardingID, results, ob.Jurisdiction, ob.EntityType)
	if err := s.repo.CreateRiskAssessment(ctx, assessment); err != nil {
		return nil, oberrors.Wrap(err, "failed to persist risk assessment")
	}

	ob.RiskLevel = assessment.Rating
	ob.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateOnboarding(ctx, ob); err != nil {
		return nil, oberrors.Wrap(err, "failed to update onboarding risk level")
	}

	s.cacheAssessment(ctx, assessment)

	return assessment, nil
}

func (s *Service) cacheAssessment(ctx context.Context, assessment *domain.RiskAssessment) {
	if s.cache == nil {
		return
	}
	key := cache.RiskAssessmentKey(assessment.OnboardingID)
	if err := s.cache.Set(ctx, key, assessment, 15*time.Minute); err != nil {
		s.logger.Warn("Failed to cache risk assessment", map[string]interface{}{
			"onboarding_id": assessment.OnboardingID,
			"error":         err.Error(),
		})
	}
}

// LatestRiskAssessment returns the authoritative assessment, preferring the
// cache and falling back to the repository.
func (s *Service) LatestRiskAssessment(ctx context.Context, onboardingID uuid.UUID) (*domain.RiskAssessment, error) {
	if s.cache != nil {
		var cached domain.RiskAssessment
		if err := s.cache.Get(ctx, cache.RiskAssessmentKey(onboardingID), &cached); err == nil {
			return &cached, nil
		}
	}
	return s.repo.FindLatestRiskAssessment(ctx, onboardingID)
}

// ==============================================================================
// DOCUMENT REQUIREMENTS
// ==============================================================================

// RegenerateRequirements purges and rebuilds the requirement checklist for
// an onboarding. Serialized per onboarding so concurrent regenerations
// cannot interleave purge and recreate.
func (s *Service) RegenerateRequirements(ctx context.Context, onboardingID uuid.UUID) ([]domain.DocumentRequirement, error) {
	unlock := s.lockOnboarding(onboardingID)
	defer unlock()

	principals, err := s.repo.FindPrincipalsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	requirements := checklist.Generate(onboardingID, principals)

	if err := s.repo.DeleteRequirementsByOnboardingID(ctx, onboardingID); err != nil {
		return nil, oberrors.Wrap(err, "failed to purge prior requirements")
	}
	if err := s.repo.CreateRequirements(ctx, requirements); err != nil {
		return nil, oberrors.Wrap(err, "failed to create requirements")
	}

	s.logger.Info("Document requirements regenerated", map[string]interface{}{
		"onboarding_id": onboardingID,
		"count":         len(requirements),
	})

	return requirements, nil
}

// BuildChecklist assembles the sponsor/key-party checklist view, including
// the enhanced due diligence addendum when the latest assessment calls for
// it.
func (s *Service) BuildChecklist(ctx context.Context, onboardingID uuid.UUID) (*checklist.Checklist, error) {
	principals, err := s.repo.FindPrincipalsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	assessment, err := s.LatestRiskAssessment(ctx, onboardingID)
	if err != nil && err != oberrors.ErrAssessmentNotFound {
		return nil, err
	}

	list := checklist.Build(principals, assessment)
	return &list, nil
}

// ChecklistProgress computes the verification rollup for an onboarding.
func (s *Service) ChecklistProgress(ctx context.Context, onboardingID uuid.UUID) (*checklist.Progress, error) {
	requirements, err := s.repo.FindRequirementsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	docs, err := s.repo.FindDocumentsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	docIndex := make(map[uuid.UUID]*domain.UploadedDocument, len(docs))
	for _, doc := range docs {
		docIndex[doc.ID] = doc
	}

	progress := checklist.CalculateProgress(requirements, docIndex)
	return &progress, nil
}

// ==============================================================================
// DOCUMENT ANALYSIS AND MATCHING
// ==============================================================================

// IngestDocuments analyzes a batch of uploaded documents, suggests
// assignments, auto-links confident matches to outstanding requirements,
// and persists everything touched.
func (s *Service) IngestDocuments(ctx context.Context, onboardingID uuid.UUID, docs []*domain.UploadedDocument) ([]docmatch.LinkEvent, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	principals, err := s.repo.FindPrincipalsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	requirements, err := s.repo.FindRequirementsByOnboardingID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	reqPtrs := make([]*domain.DocumentRequirement, len(requirements))
	for i := range requirements {
		reqPtrs[i] = &requirements[i]
	}

	s.matcher.AnalyzeBatch(docs, principals, ob.SponsorName, time.Now().UTC())
	events := s.matcher.SyncToRequirements(docs, reqPtrs)

	for _, doc := range docs {
		doc.OnboardingID = onboardingID
		if err := s.repo.CreateDocument(ctx, doc); err != nil {
			return nil, oberrors.Wrap(err, "failed to persist document")
		}
	}
	for _, event := range events {
		for _, req := range reqPtrs {
			if req.ID == event.RequirementID {
				if err := s.repo.UpdateRequirement(ctx, req); err != nil {
					return nil, oberrors.Wrap(err, "failed to persist requirement link")
				}
			}
		}
	}

	return events, nil
}

// ReassignDocument manually links a document to a requirement slot,
// bypassing the confidence gate.
func (s *Service) ReassignDocument(ctx context.Context, documentID, requirementID uuid.UUID) error {
	doc, err := s.repo.FindDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}
	req, err := s.repo.FindRequirementByID(ctx, requirementID)
	if err != nil {
		return err
	}

	if err := s.matcher.Reassign(doc, req); err != nil {
		return err
	}

	if err := s.repo.UpdateDocument(ctx, doc); err != nil {
		return oberrors.Wrap(err, "failed to persist document reassignment")
	}
	if err := s.repo.UpdateRequirement(ctx, req); err != nil {
		return oberrors.Wrap(err, "failed to persist requirement link")
	}
	return nil
}

// OverrideDocument forces a failing document to pass with an audited
// justification. Restricted to MLRO, compliance and admin.
func (s *Service) OverrideDocument(ctx context.Context, documentID uuid.UUID, actor *domain.User, reason string) error {
	doc, err := s.repo.FindDocumentByID(ctx, documentID)
	if err != nil {
		return err
	}

	if err := s.matcher.Override(doc, actor.Role, actor.Email, reason, time.Now().UTC()); err != nil {
		return err
	}

	return s.repo.UpdateDocument(ctx, doc)
}

// ==============================================================================
// APPROVALS
// ==============================================================================

// RecordKYCSignoff records a compliance or MLRO sign-off and moves the
// onboarding status along when the chain progresses.
func (s *Service) RecordKYCSignoff(ctx context.Context, onboardingID uuid.UUID, signer *domain.User, status domain.ApprovalStatus, comments string) (*domain.ApprovalRecord, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	if ob.Status.IsTerminal() {
		return nil, oberrors.ErrOnboardingTerminal
	}

	record, err := s.gate.RecordSignoff(onboardingID, signer, status, comments, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpsertApprovalRecord(ctx, record); err != nil {
		return nil, oberrors.Wrap(err, "failed to persist sign-off")
	}

	records, err := s.repo.FindApprovalRecords(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	switch {
	case approval.SignoffsComplete(records):
		ob.Status = domain.OnboardingStatusPendingBoard
	case record.Step == domain.ApprovalStepCompliance && record.Status == domain.ApprovalStatusApproved:
		ob.Status = domain.OnboardingStatusPendingMLRO
	}
	ob.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateOnboarding(ctx, ob); err != nil {
		return nil, oberrors.Wrap(err, "failed to update onboarding status")
	}

	return record, nil
}

// DecideBoard records the board decision. The required approval level comes
// from the latest risk assessment; without one the file escalates to board.
// Fails closed unless both KYC sign-offs are already approved.
func (s *Service) DecideBoard(ctx context.Context, onboardingID uuid.UUID, signer *domain.User, action approval.BoardAction, comments string) (*domain.ApprovalRecord, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	if ob.Status.IsTerminal() {
		return nil, oberrors.ErrOnboardingTerminal
	}

	level := domain.ApprovalLevelBoard
	assessment, err := s.LatestRiskAssessment(ctx, onboardingID)
	if err != nil && err != oberrors.ErrAssessmentNotFound {
		return nil, err
	}
	if assessment != nil {
		level = assessment.ApprovalLevel
	}

	records, err := s.repo.FindApprovalRecords(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	record, err := s.gate.DecideBoard(ob, signer, action, comments, level, records, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if err := s.repo.UpsertApprovalRecord(ctx, record); err != nil {
		return nil, oberrors.Wrap(err, "failed to persist board decision")
	}
	if err := s.repo.UpdateOnboarding(ctx, ob); err != nil {
		return nil, oberrors.Wrap(err, "failed to update onboarding status")
	}

	return record, nil
}

// ==============================================================================
// PHASES
// ==============================================================================

// CheckPhase evaluates whether the onboarding's current phase can close.
func (s *Service) CheckPhase(ctx context.Context, onboardingID uuid.UUID, completedTasks []string) (*phase.CompletionResult, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	assessment, err := s.LatestRiskAssessment(ctx, onboardingID)
	if err != nil && err != oberrors.ErrAssessmentNotFound {
		return nil, err
	}

	result := s.machine.CheckPhaseCompletion(ob.CurrentPhase, completedTasks, assessment)
	return &result, nil
}

// AdvancePhase moves the onboarding forward one phase, or saves in place.
func (s *Service) AdvancePhase(ctx context.Context, onboardingID uuid.UUID, action string) (*domain.Onboarding, error) {
	ob, err := s.repo.FindOnboardingByID(ctx, onboardingID)
	if err != nil {
		return nil, err
	}

	// Leaving the screening phase requires an assessment on file, whatever
	// the client claims about completed tasks.
	if ob.CurrentPhase == domain.PhaseScreening && action != phase.ActionSave {
		if _, err := s.LatestRiskAssessment(ctx, onboardingID); err != nil {
			if err == oberrors.ErrAssessmentNotFound {
				return nil, oberrors.ErrScreeningNotRun
			}
			return nil, err
		}
	}

	records, err := s.repo.FindApprovalRecords(ctx, onboardingID)
	if err != nil {
		return nil, err
	}
	boardApproved := false
	for _, r := range records {
		if r.Step == domain.ApprovalStepBoard && r.Status == domain.ApprovalStatusApproved {
			boardApproved = true
		}
	}

	if err := s.machine.AdvancePhase(ob, action, boardApproved); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateOnboarding(ctx, ob); err != nil {
		return nil, oberrors.Wrap(err, "failed to persist phase advance")
	}

	return ob, nil
}

// OverdueReport lists every active onboarding past its phase deadline,
// most overdue first.
func (s *Service) OverdueReport(ctx context.Context, now time.Time) ([]phase.OverdueEntry, error) {
	active, err := s.repo.FindActiveOnboardings(ctx)
	if err != nil {
		return nil, err
	}
	return s.machine.CheckOverdue(active, now), nil
}

// ==============================================================================
// FEES
// ==============================================================================

// QuoteInput describes a fee quote request.
type QuoteInput struct {
	FundSize     decimal.Decimal `json:"fund_size" validate:"required"`
	Services     []string        `json:"services" validate:"required,min=1"`
	NumInvestors int             `json:"num_investors" validate:"gte=0"`
	NumDirectors int             `json:"num_directors" validate:"gte=0"`
	Complexity   string          `json:"complexity" validate:"omitempty,oneof=low medium high"`
	IncludeSetup bool            `json:"include_setup"`
}

// QuoteFees prices an engagement from the configured fee schedule.
func (s *Service) QuoteFees(input QuoteInput) fees.FeeResult {
	return fees.CalculateFees(input.FundSize, input.Services, input.NumInvestors, input.NumDirectors, input.Complexity, input.IncludeSetup)
}
