// Package errors provides common, reusable error values and helpers.
package errors

import (
	"errors"
	"fmt"
)

// Common errors
var (
	ErrOnboardingNotFound  = errors.New("onboarding not found")
	ErrPrincipalNotFound   = errors.New("principal not found")
	ErrAssessmentNotFound  = errors.New("risk assessment not found")
	ErrRequirementNotFound = errors.New("document requirement not found")
	ErrDocumentNotFound    = errors.New("uploaded document not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrUserAlreadyExists   = errors.New("user already exists")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserInactive        = errors.New("user account is inactive")
	ErrDuplicateRequest    = errors.New("duplicate request")

	// Workflow ordering errors (fail-closed)
	ErrOnboardingTerminal = errors.New("onboarding is in a terminal status")
	ErrSignoffIncomplete  = errors.New("compliance and mlro sign-off must both be approved")
	ErrScreeningNotRun    = errors.New("screening has not been run for this onboarding")

	// Permission errors (fail-closed)
	ErrRoleNotPermitted       = errors.New("role is not permitted to approve at this level")
	ErrOverrideNotPermitted   = errors.New("only mlro or compliance may override a document status")
	ErrJustificationTooShort  = errors.New("override justification must be at least 50 characters")
	ErrInvalidApprovalAction  = errors.New("invalid approval action")
	ErrRequirementNotMatching = errors.New("document does not match the requirement slot")
)

// Wrap wraps an error with additional context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
