package onboarding

import (
	"context"
	"strings"
	"testing"
	"time"

	"onboard/internal/approval"
	"onboard/internal/docmatch"
	"onboard/internal/domain"
	"onboard/internal/phase"
	"onboard/internal/risk"
	"onboard/pkg/config"
	oberrors "onboard/pkg/errors"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mocks

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateOnboarding(ctx context.Context, ob *domain.Onboarding) error {
	args := m.Called(ctx, ob)
	return args.Error(0)
}

func (m *MockRepository) UpdateOnboarding(ctx context.Context, ob *domain.Onboarding) error {
	args := m.Called(ctx, ob)
	return args.Error(0)
}

func (m *MockRepository) FindOnboardingByID(ctx context.Context, id uuid.UUID) (*domain.Onboarding, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Onboarding), args.Error(1)
}

func (m *MockRepository) FindOnboardingsByStatus(ctx context.Context, statuses []domain.OnboardingStatus, limit, offset int) ([]*domain.Onboarding, error) {
	args := m.Called(ctx, statuses, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Onboarding), args.Error(1)
}

func (m *MockRepository) FindActiveOnboardings(ctx context.Context) ([]*domain.Onboarding, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Onboarding), args.Error(1)
}

func (m *MockRepository) CreatePrincipal(ctx context.Context, principal *domain.Principal) error {
	args := m.Called(ctx, principal)
	return args.Error(0)
}

func (m *MockRepository) FindPrincipalsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.Principal, error) {
	args := m.Called(ctx, onboardingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Principal), args.Error(1)
}

func (m *MockRepository) CreateRiskAssessment(ctx context.Context, assessment *domain.RiskAssessment) error {
	args := m.Called(ctx, assessment)
	return args.Error(0)
}

func (m *MockRepository) FindLatestRiskAssessment(ctx context.Context, onboardingID uuid.UUID) (*domain.RiskAssessment, error) {
	args := m.Called(ctx, onboardingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RiskAssessment), args.Error(1)
}

func (m *MockRepository) CreateRequirements(ctx context.Context, requirements []domain.DocumentRequirement) error {
	args := m.Called(ctx, requirements)
	return args.Error(0)
}

func (m *MockRepository) UpdateRequirement(ctx context.Context, requirement *domain.DocumentRequirement) error {
	args := m.Called(ctx, requirement)
	return args.Error(0)
}

func (m *MockRepository) FindRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]domain.DocumentRequirement, error) {
	args := m.Called(ctx, onboardingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.DocumentRequirement), args.Error(1)
}

func (m *MockRepository) FindRequirementByID(ctx context.Context, id uuid.UUID) (*domain.DocumentRequirement, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.DocumentRequirement), args.Error(1)
}

func (m *MockRepository) DeleteRequirementsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) error {
	args := m.Called(ctx, onboardingID)
	return args.Error(0)
}

func (m *MockRepository) CreateDocument(ctx context.Context, doc *domain.UploadedDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) UpdateDocument(ctx context.Context, doc *domain.UploadedDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) FindDocumentByID(ctx context.Context, id uuid.UUID) (*domain.UploadedDocument, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.UploadedDocument), args.Error(1)
}

func (m *MockRepository) FindDocumentsByOnboardingID(ctx context.Context, onboardingID uuid.UUID) ([]*domain.UploadedDocument, error) {
	args := m.Called(ctx, onboardingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.UploadedDocument), args.Error(1)
}

func (m *MockRepository) UpsertApprovalRecord(ctx context.Context, record *domain.ApprovalRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockRepository) FindApprovalRecords(ctx context.Context, onboardingID uuid.UUID) ([]*domain.ApprovalRecord, error) {
	args := m.Called(ctx, onboardingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.ApprovalRecord), args.Error(1)
}

type MockScreeningProvider struct {
	mock.Mock
}

func (m *MockScreeningProvider) Screen(ctx context.Context, principals []domain.Principal) ([]domain.ScreeningResult, error) {
	args := m.Called(ctx, principals)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ScreeningResult), args.Error(1)
}

// Helpers

func newTestService(repo *MockRepository, screening *MockScreeningProvider) *Service {
	log := logger.NewNop()
	engine := risk.NewEngine(config.LoadRiskConfig(), log)
	matcher := docmatch.NewMatcher(docmatch.NewHeuristicAnalyzer(), log)
	machine := phase.NewMachine(log)
	gate := approval.NewGate(log)
	return NewService(repo, screening, engine, matcher, machine, gate, nil, log)
}

func testOnboarding(status domain.OnboardingStatus, current domain.Phase) *domain.Onboarding {
	return &domain.Onboarding{
		ID:           uuid.New(),
		SponsorName:  "Acme Capital",
		FundName:     "Acme Diversified Fund",
		Jurisdiction: "JE",
		EntityType:   "limited_company",
		CurrentPhase: current,
		Status:       status,
	}
}

// Tests

func TestStartOnboarding(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	repo.On("CreateOnboarding", mock.Anything, mock.AnythingOfType("*domain.Onboarding")).Return(nil)
	repo.On("CreatePrincipal", mock.Anything, mock.AnythingOfType("*domain.Principal")).Return(nil).Twice()

	ob, err := svc.StartOnboarding(context.Background(), StartOnboardingInput{
		SponsorName:  "Acme Capital",
		FundName:     "Acme Diversified Fund",
		Jurisdiction: "JE",
		EntityType:   "limited_company",
		Principals: []PrincipalInput{
			{FullName: "John Smith", RoleLabel: "Managing Partner"},
			{FullName: "Jane Doe", RoleLabel: "Director"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseEnquiry, ob.CurrentPhase)
	assert.Equal(t, domain.OnboardingStatusDraft, ob.Status)
	require.NotNil(t, ob.PhaseStartedAt)
	repo.AssertExpectations(t)
}

func TestRunScreening_PersistsAssessmentAndRiskLevel(t *testing.T) {
	repo := new(MockRepository)
	screening := new(MockScreeningProvider)
	svc := newTestService(repo, screening)

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseScreening)
	principals := []domain.Principal{{ID: uuid.New(), FullName: "John Smith", Role: domain.RoleDirector}}

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindPrincipalsByOnboardingID", mock.Anything, ob.ID).Return(principals, nil)
	screening.On("Screen", mock.Anything, principals).Return([]domain.ScreeningResult{
		{Name: "John Smith", HasPEPHit: true},
	}, nil)
	repo.On("CreateRiskAssessment", mock.Anything, mock.AnythingOfType("*domain.RiskAssessment")).Return(nil)
	repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

	assessment, err := svc.RunScreening(context.Background(), ob.ID)

	require.NoError(t, err)
	assert.True(t, assessment.EDDRequired)
	assert.Equal(t, assessment.Rating, ob.RiskLevel)
	repo.AssertExpectations(t)
	screening.AssertExpectations(t)
}

func TestRunScreening_NoPrincipalsRecorded(t *testing.T) {
	repo := new(MockRepository)
	screening := new(MockScreeningProvider)
	svc := newTestService(repo, screening)

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseScreening)
	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindPrincipalsByOnboardingID", mock.Anything, ob.ID).Return([]domain.Principal{}, nil)

	_, err := svc.RunScreening(context.Background(), ob.ID)

	assert.ErrorIs(t, err, oberrors.ErrPrincipalNotFound)
	screening.AssertNotCalled(t, "Screen", mock.Anything, mock.Anything)
}

func TestRunScreening_TerminalOnboardingRejected(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusApproved, domain.PhaseComplete)
	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)

	_, err := svc.RunScreening(context.Background(), ob.ID)
	assert.ErrorIs(t, err, oberrors.ErrOnboardingTerminal)
}

func TestRegenerateRequirements_PurgesBeforeCreating(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	onboardingID := uuid.New()
	principals := []domain.Principal{
		{ID: uuid.New(), OnboardingID: onboardingID, FullName: "John Smith", Role: domain.RoleManagingPartner},
	}

	var callOrder []string
	repo.On("FindPrincipalsByOnboardingID", mock.Anything, onboardingID).Return(principals, nil)
	repo.On("DeleteRequirementsByOnboardingID", mock.Anything, onboardingID).Run(func(mock.Arguments) {
		callOrder = append(callOrder, "purge")
	}).Return(nil)
	repo.On("CreateRequirements", mock.Anything, mock.AnythingOfType("[]domain.DocumentRequirement")).Run(func(mock.Arguments) {
		callOrder = append(callOrder, "create")
	}).Return(nil)

	requirements, err := svc.RegenerateRequirements(context.Background(), onboardingID)

	require.NoError(t, err)
	// Managing partner: passport, address proof and source of wealth.
	assert.Len(t, requirements, 3)
	assert.Equal(t, []string{"purge", "create"}, callOrder)
}

func TestIngestDocuments_AutoLinksAndPersists(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseKYC)
	principals := []domain.Principal{{ID: uuid.New(), FullName: "John Smith", Role: domain.RoleDirector}}
	requirements := []domain.DocumentRequirement{
		{ID: uuid.New(), OnboardingID: ob.ID, PersonName: "John Smith", DocType: domain.DocTypePassport, Status: domain.RequirementStatusOutstanding},
	}

	doc := &domain.UploadedDocument{
		ID:       uuid.New(),
		Filename: "john_smith_passport.pdf",
		Analysis: &domain.DocumentAnalysis{
			DetectedType:  domain.DocTypePassport,
			Confidence:    0.92,
			ExtractedName: "John Smith",
			Checks:        map[string]domain.CheckResult{"document_quality": domain.CheckResultPass},
			OverallStatus: domain.CheckResultPass,
		},
	}

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindPrincipalsByOnboardingID", mock.Anything, ob.ID).Return(principals, nil)
	repo.On("FindRequirementsByOnboardingID", mock.Anything, ob.ID).Return(requirements, nil)
	repo.On("CreateDocument", mock.Anything, doc).Return(nil)
	repo.On("UpdateRequirement", mock.Anything, mock.AnythingOfType("*domain.DocumentRequirement")).Return(nil)

	events, err := svc.IngestDocuments(context.Background(), ob.ID, []*domain.UploadedDocument{doc})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, ob.ID, doc.OnboardingID)
	repo.AssertExpectations(t)
}

func TestOverrideDocument_RequiresJustification(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	doc := &domain.UploadedDocument{
		ID:       uuid.New(),
		Analysis: &domain.DocumentAnalysis{OverallStatus: domain.CheckResultFail},
	}
	mlro := &domain.User{ID: uuid.New(), Email: "mlro@firm.je", Role: domain.StaffRoleMLRO}

	repo.On("FindDocumentByID", mock.Anything, doc.ID).Return(doc, nil)

	err := svc.OverrideDocument(context.Background(), doc.ID, mlro, strings.Repeat("x", 40))
	assert.ErrorIs(t, err, oberrors.ErrJustificationTooShort)
	repo.AssertNotCalled(t, "UpdateDocument", mock.Anything, mock.Anything)

	repo.On("UpdateDocument", mock.Anything, doc).Return(nil)
	err = svc.OverrideDocument(context.Background(), doc.ID, mlro, strings.Repeat("x", 51))
	require.NoError(t, err)
	assert.Equal(t, domain.CheckResultPass, doc.EffectiveStatus())
}

func TestRecordKYCSignoff_MovesStatusAlong(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseApproval)
	compliance := &domain.User{ID: uuid.New(), Email: "comp@firm.je", Role: domain.StaffRoleCompliance}

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("UpsertApprovalRecord", mock.Anything, mock.AnythingOfType("*domain.ApprovalRecord")).Return(nil)
	repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return([]*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
	}, nil)
	repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

	record, err := svc.RecordKYCSignoff(context.Background(), ob.ID, compliance, domain.ApprovalStatusApproved, "file reviewed")

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStepCompliance, record.Step)
	assert.Equal(t, domain.OnboardingStatusPendingMLRO, ob.Status)
}

func TestDecideBoard_FailsClosedWithPendingMLRO(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusPendingMLRO, domain.PhaseApproval)
	mlro := &domain.User{ID: uuid.New(), Email: "mlro@firm.je", Role: domain.StaffRoleMLRO}

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(nil, oberrors.ErrAssessmentNotFound)
	repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return([]*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
		{OnboardingID: ob.ID, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusPending},
	}, nil)

	_, err := svc.DecideBoard(context.Background(), ob.ID, mlro, approval.BoardActionApprove, "")

	assert.ErrorIs(t, err, oberrors.ErrSignoffIncomplete)
	assert.Equal(t, domain.OnboardingStatusPendingMLRO, ob.Status)
	repo.AssertNotCalled(t, "UpsertApprovalRecord", mock.Anything, mock.Anything)
}

func TestDecideBoard_ApproveCompletes(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)
	mlro := &domain.User{ID: uuid.New(), Email: "mlro@firm.je", Role: domain.StaffRoleMLRO}

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(&domain.RiskAssessment{
		OnboardingID:  ob.ID,
		Rating:        domain.RiskRatingHigh,
		ApprovalLevel: domain.ApprovalLevelBoard,
	}, nil)
	repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return([]*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
		{OnboardingID: ob.ID, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusApproved},
	}, nil)
	repo.On("UpsertApprovalRecord", mock.Anything, mock.AnythingOfType("*domain.ApprovalRecord")).Return(nil)
	repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

	record, err := svc.DecideBoard(context.Background(), ob.ID, mlro, approval.BoardActionApprove, "approved at board meeting")

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusApproved, record.Status)
	assert.Equal(t, domain.OnboardingStatusApproved, ob.Status)
}

func TestDecideBoard_LevelFollowsRiskAssessment(t *testing.T) {
	signoffs := func(id uuid.UUID) []*domain.ApprovalRecord {
		return []*domain.ApprovalRecord{
			{OnboardingID: id, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
			{OnboardingID: id, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusApproved},
		}
	}
	compliance := &domain.User{ID: uuid.New(), Email: "comp@firm.je", Role: domain.StaffRoleCompliance}

	t.Run("compliance completes a low-risk file", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockScreeningProvider))
		ob := testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)

		repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
		repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(&domain.RiskAssessment{
			OnboardingID:  ob.ID,
			Rating:        domain.RiskRatingLow,
			ApprovalLevel: domain.ApprovalLevelCompliance,
		}, nil)
		repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return(signoffs(ob.ID), nil)
		repo.On("UpsertApprovalRecord", mock.Anything, mock.AnythingOfType("*domain.ApprovalRecord")).Return(nil)
		repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

		record, err := svc.DecideBoard(context.Background(), ob.ID, compliance, approval.BoardActionApprove, "low risk, file complete")

		require.NoError(t, err)
		assert.Equal(t, domain.ApprovalStatusApproved, record.Status)
		assert.Equal(t, domain.OnboardingStatusApproved, ob.Status)
	})

	t.Run("compliance blocked on a high-risk file", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockScreeningProvider))
		ob := testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)

		repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
		repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(&domain.RiskAssessment{
			OnboardingID:  ob.ID,
			Rating:        domain.RiskRatingHigh,
			ApprovalLevel: domain.ApprovalLevelBoard,
		}, nil)
		repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return(signoffs(ob.ID), nil)

		_, err := svc.DecideBoard(context.Background(), ob.ID, compliance, approval.BoardActionApprove, "")

		assert.ErrorIs(t, err, oberrors.ErrRoleNotPermitted)
		assert.Equal(t, domain.OnboardingStatusPendingBoard, ob.Status)
		repo.AssertNotCalled(t, "UpsertApprovalRecord", mock.Anything, mock.Anything)
	})

	t.Run("no assessment escalates to board", func(t *testing.T) {
		repo := new(MockRepository)
		svc := newTestService(repo, new(MockScreeningProvider))
		ob := testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)

		repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
		repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(nil, oberrors.ErrAssessmentNotFound)
		repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return(signoffs(ob.ID), nil)

		_, err := svc.DecideBoard(context.Background(), ob.ID, compliance, approval.BoardActionApprove, "")

		assert.ErrorIs(t, err, oberrors.ErrRoleNotPermitted)
	})
}

func TestAdvancePhase_ScreeningNeedsAssessment(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseScreening)
	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(nil, oberrors.ErrAssessmentNotFound)

	_, err := svc.AdvancePhase(context.Background(), ob.ID, "next")

	assert.ErrorIs(t, err, oberrors.ErrScreeningNotRun)
	assert.Equal(t, domain.PhaseScreening, ob.CurrentPhase)
	repo.AssertNotCalled(t, "UpdateOnboarding", mock.Anything, mock.Anything)
}

func TestAdvancePhase_ScreeningWithAssessment(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseScreening)
	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindLatestRiskAssessment", mock.Anything, ob.ID).Return(&domain.RiskAssessment{
		OnboardingID: ob.ID,
		Rating:       domain.RiskRatingMedium,
	}, nil)
	repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return([]*domain.ApprovalRecord{}, nil)
	repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

	updated, err := svc.AdvancePhase(context.Background(), ob.ID, "next")

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseKYC, updated.CurrentPhase)
}

func TestListOnboardings_DefaultsToAllStatuses(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	expected := []*domain.Onboarding{testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)}
	repo.On("FindOnboardingsByStatus", mock.Anything, domain.AllOnboardingStatuses(), 50, 0).Return(expected, nil)

	got, err := svc.ListOnboardings(context.Background(), nil, 0, -3)

	require.NoError(t, err)
	assert.Equal(t, expected, got)
}

func TestListOnboardings_StatusFilter(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	filter := []domain.OnboardingStatus{domain.OnboardingStatusPendingMLRO, domain.OnboardingStatusPendingBoard}
	repo.On("FindOnboardingsByStatus", mock.Anything, filter, 25, 10).Return([]*domain.Onboarding{}, nil)

	_, err := svc.ListOnboardings(context.Background(), filter, 25, 10)

	require.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestAdvancePhase_ApprovedAtCompleteOnlyWithBoard(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	ob := testOnboarding(domain.OnboardingStatusPendingBoard, domain.PhaseApproval)

	repo.On("FindOnboardingByID", mock.Anything, ob.ID).Return(ob, nil)
	repo.On("FindApprovalRecords", mock.Anything, ob.ID).Return([]*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepBoard, Status: domain.ApprovalStatusApproved},
	}, nil)
	repo.On("UpdateOnboarding", mock.Anything, ob).Return(nil)

	updated, err := svc.AdvancePhase(context.Background(), ob.ID, "next")

	require.NoError(t, err)
	assert.Equal(t, domain.PhaseComplete, updated.CurrentPhase)
	assert.Equal(t, domain.OnboardingStatusApproved, updated.Status)
}

func TestOverdueReport(t *testing.T) {
	repo := new(MockRepository)
	svc := newTestService(repo, new(MockScreeningProvider))

	now := time.Now()
	started := now.AddDate(0, 0, -20)
	late := testOnboarding(domain.OnboardingStatusInProgress, domain.PhaseScreening)
	late.PhaseStartedAt = &started

	repo.On("FindActiveOnboardings", mock.Anything).Return([]*domain.Onboarding{late}, nil)

	overdue, err := svc.OverdueReport(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, overdue[0].Onboarding.ID)
	assert.Equal(t, 17, overdue[0].DaysOverdue)
}

func TestQuoteFees(t *testing.T) {
	svc := newTestService(new(MockRepository), new(MockScreeningProvider))

	result := svc.QuoteFees(QuoteInput{
		FundSize:     decimal.NewFromInt(500_000_000),
		Services:     []string{"nav", "investor", "accounting", "ta", "director", "cosec"},
		NumInvestors: 50,
		NumDirectors: 2,
		Complexity:   "low",
		IncludeSetup: true,
	})

	assert.Equal(t, "Tier 4", result.Tier)
	assert.Equal(t, "138000", result.AnnualTotal.String())
	assert.Equal(t, "20000", result.SetupTotal.String())
}
