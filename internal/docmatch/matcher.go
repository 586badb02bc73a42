package docmatch

import (
	"strings"
	"time"

	"onboard/internal/domain"
	"onboard/pkg/errors"
	"onboard/pkg/logger"

	"github.com/google/uuid"
)

// AutoLinkThreshold is the minimum assignment confidence for linking a
// document to a requirement without a human in the loop.
const AutoLinkThreshold = 0.85

// MinOverrideJustification is the minimum length of an override reason.
const MinOverrideJustification = 50

// Matcher assigns analyzed documents to checklist slots.
type Matcher struct {
	analyzer Analyzer
	logger   logger.Logger
}

// NewMatcher builds a matcher around an analyzer. Pass
// NewHeuristicAnalyzer() when no OCR collaborator is available.
func NewMatcher(analyzer Analyzer, log logger.Logger) *Matcher {
	return &Matcher{analyzer: analyzer, logger: log}
}

// nameTokens splits a name into lowercase tokens for overlap matching.
func nameTokens(name string) map[string]bool {
	tokens := make(map[string]bool)
	for _, t := range strings.Fields(strings.ToLower(name)) {
		t = strings.Trim(t, ".,()")
		if t != "" {
			tokens[t] = true
		}
	}
	return tokens
}

// MatchName counts shared name tokens between an extracted name and a
// candidate. A match requires at least two shared tokens (first and last
// name). Deliberately simple; swap this function out for a better matcher
// rather than scattering fuzzier logic around call sites.
func MatchName(extracted, candidate string) (int, bool) {
	a := nameTokens(extracted)
	b := nameTokens(candidate)

	shared := 0
	for t := range a {
		if b[t] {
			shared++
		}
	}
	return shared, shared >= 2
}

// AnalyzeBatch analyzes each document and suggests an assignment: personal
// documents with an extracted name are fuzzy-matched to key parties,
// entity documents go to the sponsor, and everything else is left
// unassigned for manual triage.
func (m *Matcher) AnalyzeBatch(docs []*domain.UploadedDocument, keyParties []domain.Principal, sponsorName string, now time.Time) {
	for _, doc := range docs {
		if doc.Analysis == nil {
			analysis, err := m.analyzer.Analyze(doc.Filename)
			if err != nil {
				m.logger.Warn("Document analysis failed", map[string]interface{}{
					"document_id": doc.ID,
					"filename":    doc.Filename,
					"error":       err.Error(),
				})
				continue
			}
			doc.Analysis = analysis
		}

		if doc.Analysis.Certification != nil || len(doc.Analysis.Checks) == 0 {
			checks, overall := CheckCertification(doc.Analysis.Certification, doc.Analysis.DetectedType, now)
			doc.Analysis.Checks = checks
			doc.Analysis.OverallStatus = overall
		}

		doc.SuggestedAssignment = m.suggestAssignment(doc.Analysis, keyParties, sponsorName)
	}
}

func (m *Matcher) suggestAssignment(analysis *domain.DocumentAnalysis, keyParties []domain.Principal, sponsorName string) *domain.Assignment {
	detected := analysis.DetectedType

	if detected.IsPersonal() && analysis.ExtractedName != "" {
		var best *domain.Principal
		bestShared := 0
		for i := range keyParties {
			shared, ok := MatchName(analysis.ExtractedName, keyParties[i].FullName)
			if ok && shared > bestShared {
				best = &keyParties[i]
				bestShared = shared
			}
		}
		if best != nil {
			return &domain.Assignment{
				Type:       domain.AssignmentTypeKeyParty,
				PersonName: best.FullName,
				DocType:    detected,
				Confidence: analysis.Confidence,
			}
		}
		return &domain.Assignment{Type: domain.AssignmentTypeUnassigned, DocType: detected, Confidence: analysis.Confidence}
	}

	if detected != domain.DocTypeUnknown && !detected.IsPersonal() {
		return &domain.Assignment{
			Type:       domain.AssignmentTypeSponsor,
			PersonName: sponsorName,
			DocType:    detected,
			Confidence: analysis.Confidence,
		}
	}

	return &domain.Assignment{Type: domain.AssignmentTypeUnassigned, DocType: detected, Confidence: analysis.Confidence}
}

// LinkEvent records one auto-link performed by SyncToRequirements.
type LinkEvent struct {
	RequirementID uuid.UUID      `json:"requirement_id"`
	DocumentID    uuid.UUID      `json:"document_id"`
	PersonName    string         `json:"person_name"`
	DocType       domain.DocType `json:"doc_type"`
	Confidence    float64        `json:"confidence"`
}

// SyncToRequirements auto-links documents to outstanding requirements.
// A link happens only when the suggested assignment meets the confidence
// threshold and the person name and document type match the slot exactly;
// the requirement then moves to submitted with the document recorded.
func (m *Matcher) SyncToRequirements(docs []*domain.UploadedDocument, requirements []*domain.DocumentRequirement) []LinkEvent {
	var events []LinkEvent

	for _, doc := range docs {
		suggestion := doc.SuggestedAssignment
		if suggestion == nil || suggestion.Type != domain.AssignmentTypeKeyParty {
			continue
		}
		if suggestion.Confidence < AutoLinkThreshold {
			continue
		}

		for _, req := range requirements {
			if req.Status != domain.RequirementStatusOutstanding {
				continue
			}
			if req.PersonName != suggestion.PersonName || req.DocType != suggestion.DocType {
				continue
			}

			docID := doc.ID
			req.Status = domain.RequirementStatusSubmitted
			req.UploadedDocID = &docID
			req.UpdatedAt = time.Now().UTC()

			events = append(events, LinkEvent{
				RequirementID: req.ID,
				DocumentID:    doc.ID,
				PersonName:    req.PersonName,
				DocType:       req.DocType,
				Confidence:    suggestion.Confidence,
			})

			m.logger.Info("Document auto-linked to requirement", map[string]interface{}{
				"requirement_id": req.ID,
				"document_id":    doc.ID,
				"person_name":    req.PersonName,
				"doc_type":       req.DocType,
				"confidence":     suggestion.Confidence,
			})
			break
		}
	}

	return events
}

// Reassign manually links a document to a requirement, skipping the
// confidence gate. The document must still fit the slot: a document whose
// detected type is known and differs from the requirement's type cannot be
// linked, even by hand. Manual assignments are recorded with full
// confidence.
func (m *Matcher) Reassign(doc *domain.UploadedDocument, req *domain.DocumentRequirement) error {
	if doc.Analysis != nil && doc.Analysis.DetectedType != domain.DocTypeUnknown && doc.Analysis.DetectedType != req.DocType {
		return errors.ErrRequirementNotMatching
	}

	docID := doc.ID
	req.Status = domain.RequirementStatusSubmitted
	req.UploadedDocID = &docID
	req.ManuallyAssigned = true
	req.UpdatedAt = time.Now().UTC()

	doc.SuggestedAssignment = &domain.Assignment{
		Type:       domain.AssignmentTypeKeyParty,
		PersonName: req.PersonName,
		DocType:    req.DocType,
		Confidence: 1.0,
	}

	m.logger.Info("Document manually reassigned", map[string]interface{}{
		"requirement_id": req.ID,
		"document_id":    doc.ID,
		"person_name":    req.PersonName,
		"doc_type":       req.DocType,
	})

	return nil
}

// Override forces a failed or review-needed document to pass. Only MLRO or
// compliance may override, and the justification must carry enough detail
// to stand up in an audit. The override is recorded on the document.
func (m *Matcher) Override(doc *domain.UploadedDocument, role domain.StaffRole, approvedBy, reason string, now time.Time) error {
	if role != domain.StaffRoleMLRO && role != domain.StaffRoleCompliance && role != domain.StaffRoleAdmin {
		return errors.ErrOverrideNotPermitted
	}
	if len(strings.TrimSpace(reason)) < MinOverrideJustification {
		return errors.ErrJustificationTooShort
	}

	doc.Override = &domain.DocumentOverride{
		Reason:       strings.TrimSpace(reason),
		ApprovedBy:   approvedBy,
		ApproverRole: role,
		Timestamp:    now,
	}
	if doc.Analysis != nil {
		doc.Analysis.OverallStatus = domain.CheckResultPass
	}

	m.logger.Warn("Document status overridden", map[string]interface{}{
		"document_id": doc.ID,
		"approved_by": approvedBy,
		"role":        role,
	})

	return nil
}
