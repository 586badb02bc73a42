// Package checklist derives the per-principal and per-entity certified
// document requirements for an onboarding and reports completion progress.
package checklist

import (
	"time"

	"onboard/internal/domain"

	"github.com/google/uuid"
)

// SponsorDocuments is the fixed set of entity documents required from the
// sponsor.
var SponsorDocuments = []domain.DocType{
	domain.DocTypeCertIncorporation,
	domain.DocTypeMemArts,
	domain.DocTypeRegisterDirectors,
	domain.DocTypeRegisterMembers,
	domain.DocTypeStructureChart,
}

// EDDDocuments is the additional evidence required when enhanced due
// diligence applies.
var EDDDocuments = []domain.DocType{
	domain.DocTypeSourceOfFunds,
	domain.DocTypeBankReference,
	domain.DocTypeEnhancedBackground,
}

// Generate derives the document requirements for every principal. All
// principals need a certified passport and address proof; principals in an
// ownership role additionally need source-of-wealth evidence. All
// requirements start outstanding.
func Generate(onboardingID uuid.UUID, principals []domain.Principal) []domain.DocumentRequirement {
	now := time.Now().UTC()
	requirements := make([]domain.DocumentRequirement, 0, len(principals)*3)

	for _, p := range principals {
		role := p.Role
		if role == "" {
			role = domain.ParseRole(p.RoleLabel)
		}

		docs := []domain.DocType{domain.DocTypePassport, domain.DocTypeAddressProof}
		if role.RequiresSourceOfWealth() {
			docs = append(docs, domain.DocTypeSourceOfWealth)
		}

		for _, docType := range docs {
			requirements = append(requirements, domain.DocumentRequirement{
				ID:           uuid.New(),
				OnboardingID: onboardingID,
				PersonName:   p.FullName,
				PersonRole:   role,
				DocType:      docType,
				Status:       domain.RequirementStatusOutstanding,
				CreatedAt:    now,
				UpdatedAt:    now,
			})
		}
	}

	return requirements
}

// KeyParty is one principal's section of the checklist.
type KeyParty struct {
	Name      string           `json:"name"`
	Role      domain.Role      `json:"role"`
	Documents []domain.DocType `json:"documents"`
}

// Checklist is the full document checklist for an onboarding.
type Checklist struct {
	SponsorDocuments []domain.DocType `json:"sponsor_documents"`
	KeyParties       []KeyParty       `json:"key_parties"`
	EDDRequired      bool             `json:"edd_required"`
	EDDDocuments     []domain.DocType `json:"edd_documents,omitempty"`
}

// Build assembles the checklist view: sponsor entity documents, one section
// per principal, and the EDD addendum when the latest risk assessment
// requires it. A nil assessment is treated as EDD not required.
func Build(principals []domain.Principal, assessment *domain.RiskAssessment) Checklist {
	cl := Checklist{
		SponsorDocuments: SponsorDocuments,
		KeyParties:       make([]KeyParty, 0, len(principals)),
	}

	for _, p := range principals {
		role := p.Role
		if role == "" {
			role = domain.ParseRole(p.RoleLabel)
		}

		docs := []domain.DocType{domain.DocTypePassport, domain.DocTypeAddressProof}
		if role.RequiresSourceOfWealth() {
			docs = append(docs, domain.DocTypeSourceOfWealth)
		}
		cl.KeyParties = append(cl.KeyParties, KeyParty{Name: p.FullName, Role: role, Documents: docs})
	}

	if assessment != nil && assessment.EDDRequired {
		cl.EDDRequired = true
		cl.EDDDocuments = EDDDocuments
	}

	return cl
}

// Progress summarizes checklist completion for an onboarding.
type Progress struct {
	Total        int     `json:"total"`
	Complete     int     `json:"complete"`
	ReviewNeeded int     `json:"review_needed"`
	Pending      int     `json:"pending"`
	Percentage   float64 `json:"percentage"`
	CanSignOff   bool    `json:"can_sign_off"`
}

// CalculateProgress rolls up requirement states. A requirement counts as
// complete when verified, or when its linked document passed analysis
// (including via override). Submitted requirements whose document needs
// review count as review_needed.
func CalculateProgress(requirements []domain.DocumentRequirement, documents map[uuid.UUID]*domain.UploadedDocument) Progress {
	p := Progress{Total: len(requirements)}

	for _, req := range requirements {
		switch req.Status {
		case domain.RequirementStatusVerified:
			p.Complete++
		case domain.RequirementStatusSubmitted:
			status := domain.CheckResultReviewNeeded
			if req.UploadedDocID != nil {
				if doc, ok := documents[*req.UploadedDocID]; ok && doc != nil {
					status = doc.EffectiveStatus()
				}
			}
			if status == domain.CheckResultPass {
				p.Complete++
			} else {
				p.ReviewNeeded++
			}
		default:
			p.Pending++
		}
	}

	if p.Total > 0 {
		p.Percentage = float64(p.Complete) / float64(p.Total) * 100
	}
	p.CanSignOff = p.Total > 0 && p.Complete == p.Total

	return p
}
