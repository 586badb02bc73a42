// Package phase drives the seven-phase onboarding lifecycle: completion
// gating, forward-only advancement and deadline tracking.
package phase

import (
	"sort"
	"time"

	"onboard/internal/domain"
	"onboard/pkg/errors"
	"onboard/pkg/logger"
)

// requiredTasks lists the task identifiers that must be completed before
// each phase can close. Phase 7 has no tasks; it is terminal.
var requiredTasks = map[domain.Phase][]string{
	domain.PhaseEnquiry:    {"capture_enquiry", "record_sponsor_details", "conflict_check"},
	domain.PhaseFund:       {"fund_structure", "jurisdiction_confirmed", "investor_profile"},
	domain.PhaseCommercial: {"fee_proposal", "engagement_letter"},
	domain.PhaseScreening:  {"screening_run", "risk_assessment"},
	domain.PhaseKYC:        {"edd_documents_collected", "edd_review"},
	domain.PhaseApproval:   {"compliance_signoff", "mlro_signoff", "board_decision"},
}

// phaseAllowance is the number of days allowed in each phase before an
// onboarding is flagged overdue.
var phaseAllowance = map[domain.Phase]int{
	domain.PhaseEnquiry:    2,
	domain.PhaseFund:       5,
	domain.PhaseCommercial: 5,
	domain.PhaseScreening:  3,
	domain.PhaseKYC:        10,
	domain.PhaseApproval:   5,
}

// CompletionResult reports whether a phase can close and what is missing.
type CompletionResult struct {
	CanComplete  bool         `json:"can_complete"`
	MissingTasks []string     `json:"missing_tasks"`
	NextPhase    domain.Phase `json:"next_phase"`
	Message      string       `json:"message"`
}

// OverdueEntry flags one onboarding past its phase deadline.
type OverdueEntry struct {
	Onboarding  *domain.Onboarding `json:"onboarding"`
	Phase       domain.Phase       `json:"phase"`
	Deadline    time.Time          `json:"deadline"`
	DaysOverdue int                `json:"days_overdue"`
}

// Machine evaluates phase transitions for onboardings.
type Machine struct {
	logger logger.Logger
}

func NewMachine(log logger.Logger) *Machine {
	return &Machine{logger: log}
}

// CheckPhaseCompletion compares the completed task set against the phase's
// requirements. The due-diligence phase auto-completes when the latest
// risk assessment did not require enhanced due diligence.
func (m *Machine) CheckPhaseCompletion(phase domain.Phase, completedTasks []string, assessment *domain.RiskAssessment) CompletionResult {
	next := nextPhase(phase)

	if phase == domain.PhaseKYC && assessment != nil && !assessment.EDDRequired {
		return CompletionResult{
			CanComplete:  true,
			MissingTasks: []string{},
			NextPhase:    next,
			Message:      "Enhanced due diligence not required; phase auto-completes",
		}
	}

	done := make(map[string]bool, len(completedTasks))
	for _, task := range completedTasks {
		done[task] = true
	}

	missing := []string{}
	for _, task := range requiredTasks[phase] {
		if !done[task] {
			missing = append(missing, task)
		}
	}

	if len(missing) > 0 {
		return CompletionResult{
			CanComplete:  false,
			MissingTasks: missing,
			NextPhase:    next,
			Message:      "Outstanding tasks must be completed before advancing",
		}
	}

	return CompletionResult{
		CanComplete:  true,
		MissingTasks: []string{},
		NextPhase:    next,
		Message:      "All required tasks complete",
	}
}

func nextPhase(phase domain.Phase) domain.Phase {
	if phase >= domain.PhaseComplete {
		return domain.PhaseComplete
	}
	return phase + 1
}

// ActionSave persists current-phase data without advancing.
const ActionSave = "save"

// AdvancePhase moves an onboarding forward one phase. Phase only moves
// forward; phase 7 is absorbing. Reaching phase 7 marks the onboarding
// approved only when the board has already signed off, otherwise it stays
// non-terminal until sign-off completes.
func (m *Machine) AdvancePhase(onboarding *domain.Onboarding, action string, boardApproved bool) error {
	if onboarding.Status.IsTerminal() {
		return errors.ErrOnboardingTerminal
	}
	if action == ActionSave {
		return nil
	}

	previous := onboarding.CurrentPhase
	onboarding.CurrentPhase = nextPhase(onboarding.CurrentPhase)
	now := time.Now().UTC()
	onboarding.PhaseStartedAt = &now
	onboarding.UpdatedAt = now

	if onboarding.CurrentPhase == domain.PhaseComplete && boardApproved {
		onboarding.Status = domain.OnboardingStatusApproved
	} else if onboarding.Status == domain.OnboardingStatusDraft {
		onboarding.Status = domain.OnboardingStatusInProgress
	}

	m.logger.Info("Onboarding phase advanced", map[string]interface{}{
		"onboarding_id": onboarding.ID,
		"from_phase":    previous,
		"to_phase":      onboarding.CurrentPhase,
		"status":        onboarding.Status,
	})

	return nil
}

// CalculateDeadline returns the deadline for a phase entered at startTime.
// Phases without an allowance, such as the terminal phase, have no deadline
// and report ok false.
func CalculateDeadline(phase domain.Phase, startTime time.Time) (time.Time, bool) {
	days, ok := phaseAllowance[phase]
	if !ok {
		return time.Time{}, false
	}
	return startTime.AddDate(0, 0, days), true
}

// CheckOverdue flags every non-terminal onboarding whose phase deadline has
// passed, sorted most-overdue first. Approved and rejected onboardings are
// always excluded.
func (m *Machine) CheckOverdue(onboardings []*domain.Onboarding, now time.Time) []OverdueEntry {
	var overdue []OverdueEntry

	for _, ob := range onboardings {
		if ob.Status.IsTerminal() {
			continue
		}
		if ob.PhaseStartedAt == nil {
			continue
		}

		deadline, ok := CalculateDeadline(ob.CurrentPhase, *ob.PhaseStartedAt)
		if !ok || !now.After(deadline) {
			continue
		}

		days := int(now.Sub(deadline).Hours() / 24)
		overdue = append(overdue, OverdueEntry{
			Onboarding:  ob,
			Phase:       ob.CurrentPhase,
			Deadline:    deadline,
			DaysOverdue: days,
		})
	}

	sort.Slice(overdue, func(i, j int) bool {
		return overdue[i].DaysOverdue > overdue[j].DaysOverdue
	})

	return overdue
}
