package approval

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

func newTestGate() *Gate {
	return NewGate(logger.NewNop())
}

func staffUser(role domain.StaffRole) *domain.User {
	return &domain.User{
		ID:       uuid.New(),
		Email:    string(role) + "@firm.je",
		Role:     role,
		IsActive: true,
	}
}

func TestCanApprove_Matrix(t *testing.T) {
	gate := newTestGate()

	tests := []struct {
		role  domain.StaffRole
		level domain.ApprovalLevel
		want  bool
	}{
		{domain.StaffRoleBD, domain.ApprovalLevelCompliance, false},
		{domain.StaffRoleBD, domain.ApprovalLevelMLRO, false},
		{domain.StaffRoleBD, domain.ApprovalLevelBoard, false},
		{domain.StaffRoleCompliance, domain.ApprovalLevelCompliance, true},
		{domain.StaffRoleCompliance, domain.ApprovalLevelMLRO, false},
		{domain.StaffRoleCompliance, domain.ApprovalLevelBoard, false},
		{domain.StaffRoleMLRO, domain.ApprovalLevelCompliance, true},
		{domain.StaffRoleMLRO, domain.ApprovalLevelMLRO, true},
		{domain.StaffRoleMLRO, domain.ApprovalLevelBoard, true},
		{domain.StaffRoleAdmin, domain.ApprovalLevelBoard, true},
	}

	for _, tt := range tests {
		got := gate.CanApprove(tt.role, tt.level)
		assert.Equal(t, tt.want, got, "%s at %s", tt.role, tt.level)
	}
}

func TestRecordSignoff(t *testing.T) {
	gate := newTestGate()
	onboardingID := uuid.New()
	now := time.Now()

	record, err := gate.RecordSignoff(onboardingID, staffUser(domain.StaffRoleCompliance), domain.ApprovalStatusApproved, "CDD file reviewed", now)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStepCompliance, record.Step)
	assert.Equal(t, domain.ApprovalStatusApproved, record.Status)
	assert.Equal(t, onboardingID, record.OnboardingID)

	record, err = gate.RecordSignoff(onboardingID, staffUser(domain.StaffRoleMLRO), domain.ApprovalStatusRejected, "outstanding SOW", now)
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStepMLRO, record.Step)
	assert.Equal(t, domain.ApprovalStatusRejected, record.Status)
}

func TestRecordSignoff_BDCannotSign(t *testing.T) {
	gate := newTestGate()

	_, err := gate.RecordSignoff(uuid.New(), staffUser(domain.StaffRoleBD), domain.ApprovalStatusApproved, "", time.Now())
	assert.ErrorIs(t, err, errors.ErrRoleNotPermitted)
}

func TestRecordSignoff_InvalidStatus(t *testing.T) {
	gate := newTestGate()

	_, err := gate.RecordSignoff(uuid.New(), staffUser(domain.StaffRoleMLRO), domain.ApprovalStatusPendingInfo, "", time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidApprovalAction)
}

func approvedSignoffs(onboardingID uuid.UUID) []*domain.ApprovalRecord {
	return []*domain.ApprovalRecord{
		{OnboardingID: onboardingID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
		{OnboardingID: onboardingID, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusApproved},
	}
}

func TestDecideBoard_Approve(t *testing.T) {
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
	record, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleMLRO), BoardActionApprove, "approved at board meeting", domain.ApprovalLevelBoard, approvedSignoffs(ob.ID), time.Now())

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStepBoard, record.Step)
	assert.Equal(t, domain.ApprovalStatusApproved, record.Status)
	assert.Equal(t, domain.OnboardingStatusApproved, ob.Status)
}

func TestDecideBoard_RejectAndRequestInfo(t *testing.T) {
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
	record, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleMLRO), BoardActionReject, "risk appetite exceeded", domain.ApprovalLevelBoard, approvedSignoffs(ob.ID), time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusRejected, record.Status)
	assert.Equal(t, domain.OnboardingStatusRejected, ob.Status)

	ob2 := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
	record, err = gate.DecideBoard(ob2, staffUser(domain.StaffRoleAdmin), BoardActionRequestInfo, "need updated structure chart", domain.ApprovalLevelBoard, approvedSignoffs(ob2.ID), time.Now())
	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStatusPendingInfo, record.Status)
	assert.Equal(t, domain.OnboardingStatusOnHold, ob2.Status)
}

func TestDecideBoard_IncompleteSignoffsRejected(t *testing.T) {
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingMLRO}
	signoffs := []*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
		{OnboardingID: ob.ID, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusPending},
	}

	_, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleMLRO), BoardActionApprove, "", domain.ApprovalLevelBoard, signoffs, time.Now())
	assert.ErrorIs(t, err, errors.ErrSignoffIncomplete)
	assert.Equal(t, domain.OnboardingStatusPendingMLRO, ob.Status)

	// A missing record counts the same as a pending one.
	_, err = gate.DecideBoard(ob, staffUser(domain.StaffRoleMLRO), BoardActionApprove, "", domain.ApprovalLevelBoard, nil, time.Now())
	assert.ErrorIs(t, err, errors.ErrSignoffIncomplete)
}

func TestDecideBoard_ComplianceCompletesLowRisk(t *testing.T) {
	// A low-risk file routes to the compliance level, so a compliance
	// officer may complete it once both sign-offs are in.
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
	record, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleCompliance), BoardActionApprove, "low risk, file complete", domain.ApprovalLevelCompliance, approvedSignoffs(ob.ID), time.Now())

	require.NoError(t, err)
	assert.Equal(t, domain.ApprovalStepBoard, record.Step)
	assert.Equal(t, domain.ApprovalStatusApproved, record.Status)
	assert.Equal(t, domain.OnboardingStatusApproved, ob.Status)
}

func TestDecideBoard_ComplianceBlockedAboveItsLevel(t *testing.T) {
	gate := newTestGate()

	for _, level := range []domain.ApprovalLevel{domain.ApprovalLevelMLRO, domain.ApprovalLevelBoard} {
		ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
		_, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleCompliance), BoardActionApprove, "", level, approvedSignoffs(ob.ID), time.Now())
		assert.ErrorIs(t, err, errors.ErrRoleNotPermitted, "level %s", level)
		assert.Equal(t, domain.OnboardingStatusPendingBoard, ob.Status)
	}
}

func TestDecideBoard_ComplianceRoleBlocked(t *testing.T) {
	// A compliance officer cannot take a board-level decision even while
	// the MLRO sign-off is still pending.
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingMLRO}
	signoffs := []*domain.ApprovalRecord{
		{OnboardingID: ob.ID, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
		{OnboardingID: ob.ID, Step: domain.ApprovalStepMLRO, Status: domain.ApprovalStatusPending},
	}

	_, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleCompliance), BoardActionApprove, "", domain.ApprovalLevelBoard, signoffs, time.Now())
	require.Error(t, err)
	assert.Equal(t, domain.OnboardingStatusPendingMLRO, ob.Status)
}

func TestDecideBoard_UnknownAction(t *testing.T) {
	gate := newTestGate()

	ob := &domain.Onboarding{ID: uuid.New(), Status: domain.OnboardingStatusPendingBoard}
	_, err := gate.DecideBoard(ob, staffUser(domain.StaffRoleMLRO), BoardAction("defer"), "", domain.ApprovalLevelBoard, approvedSignoffs(ob.ID), time.Now())
	assert.ErrorIs(t, err, errors.ErrInvalidApprovalAction)
	assert.Equal(t, domain.OnboardingStatusPendingBoard, ob.Status)
}

func TestSignoffsComplete(t *testing.T) {
	id := uuid.New()
	assert.True(t, SignoffsComplete(approvedSignoffs(id)))
	assert.False(t, SignoffsComplete(nil))
	assert.False(t, SignoffsComplete([]*domain.ApprovalRecord{
		{OnboardingID: id, Step: domain.ApprovalStepCompliance, Status: domain.ApprovalStatusApproved},
	}))
}
