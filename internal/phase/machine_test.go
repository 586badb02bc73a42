package phase

import (
	"testing"
	"time"

	"onboard/internal/domain"
	"onboard/pkg/errors"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine() *Machine {
	return NewMachine(logger.NewNop())
}

func TestCheckPhaseCompletion_MissingTasks(t *testing.T) {
	machine := newTestMachine()

	result := machine.CheckPhaseCompletion(domain.PhaseEnquiry, []string{"capture_enquiry"}, nil)

	assert.False(t, result.CanComplete)
	assert.ElementsMatch(t, []string{"record_sponsor_details", "conflict_check"}, result.MissingTasks)
	assert.Equal(t, domain.PhaseFund, result.NextPhase)
}

func TestCheckPhaseCompletion_AllTasksDone(t *testing.T) {
	machine := newTestMachine()

	result := machine.CheckPhaseCompletion(domain.PhaseScreening, []string{"screening_run", "risk_assessment"}, nil)

	assert.True(t, result.CanComplete)
	assert.Empty(t, result.MissingTasks)
	assert.Equal(t, domain.PhaseKYC, result.NextPhase)
}

func TestCheckPhaseCompletion_EDDSkip(t *testing.T) {
	machine := newTestMachine()

	// Low-risk onboardings skip the enhanced due diligence task set.
	lowRisk := &domain.RiskAssessment{EDDRequired: false}
	result := machine.CheckPhaseCompletion(domain.PhaseKYC, nil, lowRisk)
	assert.True(t, result.CanComplete)
	assert.Empty(t, result.MissingTasks)

	// High-risk onboardings still need the full task set.
	highRisk := &domain.RiskAssessment{EDDRequired: true}
	result = machine.CheckPhaseCompletion(domain.PhaseKYC, nil, highRisk)
	assert.False(t, result.CanComplete)
	assert.ElementsMatch(t, []string{"edd_documents_collected", "edd_review"}, result.MissingTasks)
}

func TestAdvancePhase_Monotonic(t *testing.T) {
	machine := newTestMachine()

	ob := &domain.Onboarding{
		ID:           uuid.New(),
		CurrentPhase: domain.PhaseEnquiry,
		Status:       domain.OnboardingStatusDraft,
	}

	previous := ob.CurrentPhase
	for i := 0; i < 10; i++ {
		require.NoError(t, machine.AdvancePhase(ob, "next", false))
		assert.GreaterOrEqual(t, ob.CurrentPhase, previous)
		assert.LessOrEqual(t, ob.CurrentPhase, domain.PhaseComplete)
		previous = ob.CurrentPhase
	}

	// Phase 7 is absorbing.
	assert.Equal(t, domain.PhaseComplete, ob.CurrentPhase)
}

func TestAdvancePhase_SaveKeepsPhase(t *testing.T) {
	machine := newTestMachine()

	ob := &domain.Onboarding{
		ID:           uuid.New(),
		CurrentPhase: domain.PhaseCommercial,
		Status:       domain.OnboardingStatusInProgress,
	}

	require.NoError(t, machine.AdvancePhase(ob, ActionSave, false))
	assert.Equal(t, domain.PhaseCommercial, ob.CurrentPhase)
}

func TestAdvancePhase_CompleteRequiresBoardApproval(t *testing.T) {
	machine := newTestMachine()

	ob := &domain.Onboarding{
		ID:           uuid.New(),
		CurrentPhase: domain.PhaseApproval,
		Status:       domain.OnboardingStatusInProgress,
	}

	// Reaching phase 7 without board approval leaves the onboarding open.
	require.NoError(t, machine.AdvancePhase(ob, "next", false))
	assert.Equal(t, domain.PhaseComplete, ob.CurrentPhase)
	assert.NotEqual(t, domain.OnboardingStatusApproved, ob.Status)
	assert.False(t, ob.Status.IsTerminal())

	// With board approval recorded, reaching phase 7 closes it out.
	ob2 := &domain.Onboarding{
		ID:           uuid.New(),
		CurrentPhase: domain.PhaseApproval,
		Status:       domain.OnboardingStatusPendingBoard,
	}
	require.NoError(t, machine.AdvancePhase(ob2, "next", true))
	assert.Equal(t, domain.PhaseComplete, ob2.CurrentPhase)
	assert.Equal(t, domain.OnboardingStatusApproved, ob2.Status)
}

func TestAdvancePhase_TerminalRejected(t *testing.T) {
	machine := newTestMachine()

	ob := &domain.Onboarding{
		ID:           uuid.New(),
		CurrentPhase: domain.PhaseComplete,
		Status:       domain.OnboardingStatusApproved,
	}

	err := machine.AdvancePhase(ob, "next", true)
	assert.ErrorIs(t, err, errors.ErrOnboardingTerminal)
}

func TestCalculateDeadline(t *testing.T) {
	start := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		phase domain.Phase
		days  int
	}{
		{domain.PhaseEnquiry, 2},
		{domain.PhaseFund, 5},
		{domain.PhaseCommercial, 5},
		{domain.PhaseScreening, 3},
		{domain.PhaseKYC, 10},
		{domain.PhaseApproval, 5},
	}

	for _, tt := range tests {
		deadline, ok := CalculateDeadline(tt.phase, start)
		require.True(t, ok, tt.phase.String())
		assert.Equal(t, start.AddDate(0, 0, tt.days), deadline, tt.phase.String())
	}

	// The terminal phase has no allowance and therefore no deadline.
	_, ok := CalculateDeadline(domain.PhaseComplete, start)
	assert.False(t, ok)
}

func TestCheckOverdue(t *testing.T) {
	machine := newTestMachine()
	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

	started := func(daysAgo int) *time.Time {
		ts := now.AddDate(0, 0, -daysAgo)
		return &ts
	}

	onTime := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseKYC,
		Status: domain.OnboardingStatusInProgress, PhaseStartedAt: started(3),
	}
	slightlyLate := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseEnquiry,
		Status: domain.OnboardingStatusInProgress, PhaseStartedAt: started(4),
	}
	veryLate := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseScreening,
		Status: domain.OnboardingStatusInProgress, PhaseStartedAt: started(30),
	}
	approved := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseComplete,
		Status: domain.OnboardingStatusApproved, PhaseStartedAt: started(60),
	}
	rejected := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseScreening,
		Status: domain.OnboardingStatusRejected, PhaseStartedAt: started(60),
	}
	noStart := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseFund,
		Status: domain.OnboardingStatusInProgress,
	}
	// Awaiting sign-off in the terminal phase; never overdue.
	awaitingBoard := &domain.Onboarding{
		ID: uuid.New(), CurrentPhase: domain.PhaseComplete,
		Status: domain.OnboardingStatusPendingBoard, PhaseStartedAt: started(45),
	}

	overdue := machine.CheckOverdue([]*domain.Onboarding{
		onTime, slightlyLate, veryLate, approved, rejected, noStart, awaitingBoard,
	}, now)

	require.Len(t, overdue, 2)
	assert.Equal(t, veryLate.ID, overdue[0].Onboarding.ID)
	assert.Equal(t, 27, overdue[0].DaysOverdue)
	assert.Equal(t, slightlyLate.ID, overdue[1].Onboarding.ID)
	assert.Equal(t, 2, overdue[1].DaysOverdue)
}
