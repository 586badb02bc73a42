// Package domain defines the core business entities for the onboarding engine.
package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ==============================================================================
// ENUMS & STATUS TYPES
// ==============================================================================

// Phase represents a step in the onboarding lifecycle (1..7).
type Phase int

const (
	PhaseEnquiry    Phase = 1
	PhaseFund       Phase = 2
	PhaseCommercial Phase = 3
	PhaseScreening  Phase = 4
	PhaseKYC        Phase = 5
	PhaseApproval   Phase = 6
	PhaseComplete   Phase = 7
)

// String returns the display name of a phase.
func (p Phase) String() string {
	switch p {
	case PhaseEnquiry:
		return "Enquiry"
	case PhaseFund:
		return "Fund"
	case PhaseCommercial:
		return "Commercial"
	case PhaseScreening:
		return "Screening"
	case PhaseKYC:
		return "KYC & CDD"
	case PhaseApproval:
		return "Approval"
	case PhaseComplete:
		return "Complete"
	default:
		return "Unknown"
	}
}

// OnboardingStatus represents the workflow status of an onboarding.
type OnboardingStatus string

const (
	OnboardingStatusDraft        OnboardingStatus = "draft"
	OnboardingStatusInProgress   OnboardingStatus = "in_progress"
	OnboardingStatusPendingMLRO  OnboardingStatus = "pending_mlro"
	OnboardingStatusPendingBoard OnboardingStatus = "pending_board"
	OnboardingStatusOnHold       OnboardingStatus = "on_hold"
	OnboardingStatusApproved     OnboardingStatus = "approved"
	OnboardingStatusRejected     OnboardingStatus = "rejected"
)

// IsTerminal reports whether the status excludes the onboarding from
// further workflow processing.
func (s OnboardingStatus) IsTerminal() bool {
	return s == OnboardingStatusApproved || s == OnboardingStatusRejected
}

// AllOnboardingStatuses lists every workflow status in lifecycle order.
func AllOnboardingStatuses() []OnboardingStatus {
	return []OnboardingStatus{
		OnboardingStatusDraft,
		OnboardingStatusInProgress,
		OnboardingStatusPendingMLRO,
		OnboardingStatusPendingBoard,
		OnboardingStatusOnHold,
		OnboardingStatusApproved,
		OnboardingStatusRejected,
	}
}

// ParseOnboardingStatus validates a status string from an API filter.
func ParseOnboardingStatus(s string) (OnboardingStatus, bool) {
	for _, status := range AllOnboardingStatuses() {
		if string(status) == s {
			return status, true
		}
	}
	return "", false
}

// RiskRating represents the composite risk classification.
type RiskRating string

const (
	RiskRatingLow    RiskRating = "low"
	RiskRatingMedium RiskRating = "medium"
	RiskRatingHigh   RiskRating = "high"
)

// ApprovalLevel represents the seniority required to approve an onboarding.
type ApprovalLevel string

const (
	ApprovalLevelCompliance ApprovalLevel = "compliance"
	ApprovalLevelMLRO       ApprovalLevel = "mlro"
	ApprovalLevelBoard      ApprovalLevel = "board"
)

// ApprovalStep identifies one step of the sign-off chain.
type ApprovalStep string

const (
	ApprovalStepCompliance ApprovalStep = "compliance"
	ApprovalStepMLRO       ApprovalStep = "mlro"
	ApprovalStepBoard      ApprovalStep = "board"
)

// ApprovalStatus represents the state of one approval step.
type ApprovalStatus string

const (
	ApprovalStatusPending     ApprovalStatus = "pending"
	ApprovalStatusApproved    ApprovalStatus = "approved"
	ApprovalStatusRejected    ApprovalStatus = "rejected"
	ApprovalStatusPendingInfo ApprovalStatus = "pending_info"
)

// RequirementStatus represents the state of a document requirement slot.
type RequirementStatus string

const (
	RequirementStatusOutstanding RequirementStatus = "outstanding"
	RequirementStatusSubmitted   RequirementStatus = "submitted"
	RequirementStatusVerified    RequirementStatus = "verified"
)

// DocType represents types of certified onboarding documents.
type DocType string

const (
	DocTypePassport           DocType = "passport"
	DocTypeAddressProof       DocType = "address_proof"
	DocTypeSourceOfWealth     DocType = "source_of_wealth"
	DocTypeSourceOfFunds      DocType = "source_of_funds"
	DocTypeCertIncorporation  DocType = "certificate_of_incorporation"
	DocTypeMemArts            DocType = "memorandum_and_articles"
	DocTypeRegisterDirectors  DocType = "register_of_directors"
	DocTypeRegisterMembers    DocType = "register_of_members"
	DocTypeStructureChart     DocType = "structure_chart"
	DocTypeBankReference      DocType = "bank_reference"
	DocTypeEnhancedBackground DocType = "enhanced_background_check"
	DocTypeUnknown            DocType = "unknown"
)

// IsPersonal reports whether the document type belongs to a natural person
// rather than the sponsor entity.
func (d DocType) IsPersonal() bool {
	switch d {
	case DocTypePassport, DocTypeAddressProof, DocTypeSourceOfWealth:
		return true
	}
	return false
}

// CheckResult represents the outcome of a document validity check.
type CheckResult string

const (
	CheckResultPass         CheckResult = "pass"
	CheckResultReviewNeeded CheckResult = "review_needed"
	CheckResultFail         CheckResult = "fail"
)

// severity orders check results worst-last for worst-of aggregation.
func (c CheckResult) severity() int {
	switch c {
	case CheckResultFail:
		return 2
	case CheckResultReviewNeeded:
		return 1
	default:
		return 0
	}
}

// WorstOf returns the more severe of two check results.
func WorstOf(a, b CheckResult) CheckResult {
	if b.severity() > a.severity() {
		return b
	}
	return a
}

// AssignmentType classifies a suggested document assignment target.
type AssignmentType string

const (
	AssignmentTypeSponsor    AssignmentType = "sponsor"
	AssignmentTypeKeyParty   AssignmentType = "key_party"
	AssignmentTypeUnassigned AssignmentType = "unassigned"
)

// StaffRole represents the role of an internal user acting on an onboarding.
type StaffRole string

const (
	StaffRoleBD         StaffRole = "bd"
	StaffRoleCompliance StaffRole = "compliance"
	StaffRoleMLRO       StaffRole = "mlro"
	StaffRoleAdmin      StaffRole = "admin"
)

// ==============================================================================
// PRINCIPAL ROLES
// ==============================================================================

// Role is the enumerated role of a principal within the sponsor structure.
// Labels are parsed once at principal creation; decision logic never
// inspects free-form role strings.
type Role string

const (
	RoleDirector            Role = "director"
	RoleIndependentDirector Role = "independent_director"
	RolePartner             Role = "partner"
	RoleManagingPartner     Role = "managing_partner"
	RoleUBO                 Role = "ubo"
	RoleBeneficialOwner     Role = "beneficial_owner"
	RoleShareholder         Role = "shareholder"
	RoleSecretary           Role = "secretary"
	RoleOther               Role = "other"
)

// ParseRole maps a free-form role label to a Role. Ownership keywords take
// precedence over "director" so a "Director & UBO" is treated as a UBO.
func ParseRole(label string) Role {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case strings.Contains(l, "ubo"):
		return RoleUBO
	case strings.Contains(l, "beneficial owner"):
		return RoleBeneficialOwner
	case strings.Contains(l, "managing"):
		return RoleManagingPartner
	case strings.Contains(l, "partner"):
		return RolePartner
	case strings.Contains(l, "independent") && strings.Contains(l, "director"):
		return RoleIndependentDirector
	case strings.Contains(l, "director"):
		return RoleDirector
	case strings.Contains(l, "secretary"):
		return RoleSecretary
	case strings.Contains(l, "shareholder"):
		return RoleShareholder
	default:
		return RoleOther
	}
}

// RequiresSourceOfWealth reports whether principals in this role must
// evidence their source of wealth. Directors without an ownership role
// are exempt.
func (r Role) RequiresSourceOfWealth() bool {
	switch r {
	case RolePartner, RoleManagingPartner, RoleUBO, RoleBeneficialOwner:
		return true
	}
	return false
}

// ==============================================================================
// DOMAIN MODELS
// ==============================================================================

// Onboarding represents one prospective fund client moving through the
// onboarding pipeline.
type Onboarding struct {
	ID             uuid.UUID        `json:"id" db:"id"`
	SponsorName    string           `json:"sponsor_name" db:"sponsor_name"`
	FundName       string           `json:"fund_name" db:"fund_name"`
	Jurisdiction   string           `json:"jurisdiction" db:"jurisdiction"`
	EntityType     string           `json:"entity_type" db:"entity_type"`
	CurrentPhase   Phase            `json:"current_phase" db:"current_phase"`
	Status         OnboardingStatus `json:"status" db:"status"`
	RiskLevel      RiskRating       `json:"risk_level,omitempty" db:"risk_level"`
	AssignedTo     *uuid.UUID       `json:"assigned_to,omitempty" db:"assigned_to"`
	PhaseStartedAt *time.Time       `json:"phase_started_at,omitempty" db:"phase_started_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Principal represents a natural person connected to the sponsor
// (director, partner, beneficial owner, ...).
type Principal struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OnboardingID uuid.UUID       `json:"onboarding_id" db:"onboarding_id"`
	FullName     string          `json:"full_name" db:"full_name"`
	RoleLabel    string          `json:"role_label" db:"role_label"`
	Role         Role            `json:"role" db:"role"`
	OwnershipPct decimal.Decimal `json:"ownership_pct" db:"ownership_pct"`
	IsUBO        bool            `json:"is_ubo" db:"is_ubo"`
	ScreenedAt   *time.Time      `json:"screened_at,omitempty" db:"screened_at"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// ScreeningResult is one principal's outcome from the external
// sanctions/PEP/adverse-media screening collaborator.
type ScreeningResult struct {
	Name            string `json:"name"`
	HasPEPHit       bool   `json:"has_pep_hit"`
	HasSanctionsHit bool   `json:"has_sanctions_hit"`
	HasAdverseMedia bool   `json:"has_adverse_media"`
	RiskLevel       string `json:"risk_level,omitempty"`
}

// FactorScore is one weighted component of a risk assessment.
type FactorScore struct {
	Score        decimal.Decimal `json:"score"`
	Weight       int             `json:"weight"`
	Contribution decimal.Decimal `json:"contribution"`
	Reason       string          `json:"reason"`
}

// FactorMap is a JSONB-compatible map of factor name to score.
type FactorMap map[string]FactorScore

func (m FactorMap) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *FactorMap) Scan(value interface{}) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &m)
}

// RiskAssessment is the output of one risk-scoring run. The latest
// assessment by AssessedAt is authoritative for an onboarding.
type RiskAssessment struct {
	ID            uuid.UUID       `json:"id" db:"id"`
	OnboardingID  uuid.UUID       `json:"onboarding_id" db:"onboarding_id"`
	Score         decimal.Decimal `json:"score" db:"score"`
	Rating        RiskRating      `json:"rating" db:"rating"`
	Factors       FactorMap       `json:"factors" db:"factors"`
	EDDRequired   bool            `json:"edd_required" db:"edd_required"`
	ApprovalLevel ApprovalLevel   `json:"approval_level" db:"approval_level"`
	AssessedAt    time.Time       `json:"assessed_at" db:"assessed_at"`
}

// DocumentRequirement is one slot on the certified-document checklist.
type DocumentRequirement struct {
	ID               uuid.UUID         `json:"id" db:"id"`
	OnboardingID     uuid.UUID         `json:"onboarding_id" db:"onboarding_id"`
	PersonName       string            `json:"person_name" db:"person_name"`
	PersonRole       Role              `json:"person_role" db:"person_role"`
	DocType          DocType           `json:"doc_type" db:"doc_type"`
	Status           RequirementStatus `json:"status" db:"status"`
	UploadedDocID    *uuid.UUID        `json:"uploaded_doc_id,omitempty" db:"uploaded_doc_id"`
	ManuallyAssigned bool              `json:"manually_assigned" db:"manually_assigned"`
	CreatedAt        time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at" db:"updated_at"`
}

// Certification carries the certification metadata extracted from a
// certified copy.
type Certification struct {
	Wording                string     `json:"wording,omitempty"`
	CertifierName          string     `json:"certifier_name,omitempty"`
	CertifierQualification string     `json:"certifier_qualification,omitempty"`
	CertifiedAt            *time.Time `json:"certified_at,omitempty"`
	Legible                bool       `json:"legible"`
	Complete               bool       `json:"complete"`
}

// DocumentAnalysis is the structured result of analyzing an uploaded
// document, produced by the OCR collaborator or the filename heuristic.
type DocumentAnalysis struct {
	DetectedType  DocType                `json:"detected_type"`
	Confidence    float64                `json:"confidence"`
	Checks        map[string]CheckResult `json:"checks"`
	ExtractedName string                 `json:"extracted_name,omitempty"`
	ExtractedData map[string]string      `json:"extracted_data,omitempty"`
	Certification *Certification         `json:"certification,omitempty"`
	OverallStatus CheckResult            `json:"overall_status"`
}

// Assignment is a suggested link from an uploaded document to a
// checklist target.
type Assignment struct {
	Type       AssignmentType `json:"type"`
	PersonName string         `json:"person_name,omitempty"`
	DocType    DocType        `json:"doc_type"`
	Confidence float64        `json:"confidence"`
}

// DocumentOverride records a senior user forcing a failed or
// review-needed document to pass. Overrides are never discarded.
type DocumentOverride struct {
	Reason       string    `json:"reason"`
	ApprovedBy   string    `json:"approved_by"`
	ApproverRole StaffRole `json:"approver_role"`
	Timestamp    time.Time `json:"timestamp"`
}

// UploadedDocument is a document received for an onboarding, with its
// analysis and any assignment or override applied to it.
type UploadedDocument struct {
	ID                  uuid.UUID         `json:"id" db:"id"`
	OnboardingID        uuid.UUID         `json:"onboarding_id" db:"onboarding_id"`
	Filename            string            `json:"filename" db:"filename"`
	Analysis            *DocumentAnalysis `json:"analysis,omitempty" db:"analysis"`
	SuggestedAssignment *Assignment       `json:"suggested_assignment,omitempty" db:"suggested_assignment"`
	Override            *DocumentOverride `json:"override,omitempty" db:"override"`
	UploadedAt          time.Time         `json:"uploaded_at" db:"uploaded_at"`
}

// EffectiveStatus returns the document's analysis status with any
// override applied.
func (d *UploadedDocument) EffectiveStatus() CheckResult {
	if d.Override != nil {
		return CheckResultPass
	}
	if d.Analysis == nil {
		return CheckResultReviewNeeded
	}
	return d.Analysis.OverallStatus
}

// ApprovalRecord is the authoritative record for one (onboarding, step)
// pair. Later writes replace the record for that step.
type ApprovalRecord struct {
	ID           uuid.UUID      `json:"id" db:"id"`
	OnboardingID uuid.UUID      `json:"onboarding_id" db:"onboarding_id"`
	Step         ApprovalStep   `json:"step" db:"step"`
	Status       ApprovalStatus `json:"status" db:"status"`
	SignedBy     string         `json:"signed_by" db:"signed_by"`
	SignerRole   StaffRole      `json:"signer_role" db:"signer_role"`
	Comments     string         `json:"comments,omitempty" db:"comments"`
	Timestamp    time.Time      `json:"timestamp" db:"timestamp"`
}

// User is an internal staff account able to act on onboardings.
type User struct {
	ID           uuid.UUID  `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FullName     string     `json:"full_name" db:"full_name"`
	Role         StaffRole  `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}
