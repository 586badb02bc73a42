// Package approval implements the role-permissioned sign-off chain:
// compliance and MLRO KYC sign-offs followed by a board decision.
package approval

import (
	"time"

	"onboard/internal/domain"
	"onboard/pkg/errors"
	"onboard/pkg/logger"

	"github.com/google/uuid"
)

// BoardAction is a decision the board can take on an onboarding.
type BoardAction string

const (
	BoardActionApprove     BoardAction = "approve"
	BoardActionReject      BoardAction = "reject"
	BoardActionRequestInfo BoardAction = "request_info"
)

// Gate evaluates who may approve what and records sign-offs.
type Gate struct {
	logger logger.Logger
}

func NewGate(log logger.Logger) *Gate {
	return &Gate{logger: log}
}

// CanApprove reports whether a staff role may approve at the given level.
// BD staff cannot approve anything. Compliance may only approve low-risk
// onboardings, which route to the compliance level. MLRO and admin may
// approve at any level.
func (g *Gate) CanApprove(role domain.StaffRole, level domain.ApprovalLevel) bool {
	switch role {
	case domain.StaffRoleMLRO, domain.StaffRoleAdmin:
		return true
	case domain.StaffRoleCompliance:
		return level == domain.ApprovalLevelCompliance
	default:
		return false
	}
}

// stepForRole maps a signer role to the sign-off step it owns.
func stepForRole(role domain.StaffRole) (domain.ApprovalStep, bool) {
	switch role {
	case domain.StaffRoleCompliance:
		return domain.ApprovalStepCompliance, true
	case domain.StaffRoleMLRO:
		return domain.ApprovalStepMLRO, true
	default:
		return "", false
	}
}

// RecordSignoff produces the authoritative KYC sign-off record for the
// signer's step. Compliance and MLRO each sign independently; a later
// sign-off for the same step replaces the earlier record.
func (g *Gate) RecordSignoff(onboardingID uuid.UUID, signer *domain.User, status domain.ApprovalStatus, comments string, now time.Time) (*domain.ApprovalRecord, error) {
	step, ok := stepForRole(signer.Role)
	if !ok {
		return nil, errors.ErrRoleNotPermitted
	}
	if status != domain.ApprovalStatusApproved && status != domain.ApprovalStatusRejected {
		return nil, errors.ErrInvalidApprovalAction
	}

	record := &domain.ApprovalRecord{
		ID:           uuid.New(),
		OnboardingID: onboardingID,
		Step:         step,
		Status:       status,
		SignedBy:     signer.Email,
		SignerRole:   signer.Role,
		Comments:     comments,
		Timestamp:    now,
	}

	g.logger.Info("KYC sign-off recorded", map[string]interface{}{
		"onboarding_id": onboardingID,
		"step":          step,
		"status":        status,
		"signed_by":     signer.Email,
	})

	return record, nil
}

// signoffStatus finds the status of a step in the existing records.
func signoffStatus(records []*domain.ApprovalRecord, step domain.ApprovalStep) domain.ApprovalStatus {
	for _, r := range records {
		if r.Step == step {
			return r.Status
		}
	}
	return domain.ApprovalStatusPending
}

// SignoffsComplete reports whether compliance and MLRO have both approved.
func SignoffsComplete(records []*domain.ApprovalRecord) bool {
	return signoffStatus(records, domain.ApprovalStepCompliance) == domain.ApprovalStatusApproved &&
		signoffStatus(records, domain.ApprovalStepMLRO) == domain.ApprovalStatusApproved
}

// DecideBoard records the board step for an onboarding. The signer must be
// permitted at the onboarding's required approval level, which the risk
// assessment fixes: a compliance officer completes a low-risk file, anything
// higher needs the MLRO or board. The decision may only be taken once both
// KYC sign-offs are approved; anything else is an explicit error, never a
// silent no-op. On approval the onboarding status becomes approved.
func (g *Gate) DecideBoard(onboarding *domain.Onboarding, signer *domain.User, action BoardAction, comments string, level domain.ApprovalLevel, existing []*domain.ApprovalRecord, now time.Time) (*domain.ApprovalRecord, error) {
	if !g.CanApprove(signer.Role, level) {
		return nil, errors.ErrRoleNotPermitted
	}
	if !SignoffsComplete(existing) {
		return nil, errors.ErrSignoffIncomplete
	}

	var status domain.ApprovalStatus
	switch action {
	case BoardActionApprove:
		status = domain.ApprovalStatusApproved
	case BoardActionReject:
		status = domain.ApprovalStatusRejected
	case BoardActionRequestInfo:
		status = domain.ApprovalStatusPendingInfo
	default:
		return nil, errors.ErrInvalidApprovalAction
	}

	record := &domain.ApprovalRecord{
		ID:           uuid.New(),
		OnboardingID: onboarding.ID,
		Step:         domain.ApprovalStepBoard,
		Status:       status,
		SignedBy:     signer.Email,
		SignerRole:   signer.Role,
		Comments:     comments,
		Timestamp:    now,
	}

	switch status {
	case domain.ApprovalStatusApproved:
		onboarding.Status = domain.OnboardingStatusApproved
	case domain.ApprovalStatusRejected:
		onboarding.Status = domain.OnboardingStatusRejected
	case domain.ApprovalStatusPendingInfo:
		onboarding.Status = domain.OnboardingStatusOnHold
	}
	onboarding.UpdatedAt = now

	g.logger.Info("Board decision recorded", map[string]interface{}{
		"onboarding_id": onboarding.ID,
		"action":        action,
		"status":        status,
		"signed_by":     signer.Email,
	})

	return record, nil
}
