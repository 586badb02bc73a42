// Package docmatch analyzes uploaded documents, validates their
// certification, and assigns them to checklist slots.
package docmatch

import (
	"strings"
	"time"

	"onboard/internal/domain"
)

// Analyzer produces a structured analysis for an uploaded document. The
// production implementation wraps the external OCR collaborator; the
// filename heuristic below is the fallback when no collaborator is wired.
type Analyzer interface {
	Analyze(filename string) (*domain.DocumentAnalysis, error)
}

// Check names used as keys in the analysis check map.
const (
	CheckWording       = "certification_wording"
	CheckQualification = "certifier_qualification"
	CheckDate          = "certification_date"
	CheckQuality       = "document_quality"
)

// certificationPhrases are the recognized true-copy attestations.
var certificationPhrases = []string{
	"certify this is a true copy",
	"certified true copy",
	"certify that this is a true copy",
	"true copy of the original",
	"certified as a true copy",
}

// acceptedQualifications is the list of certifier professions accepted
// under the JFSC-style certification rules.
var acceptedQualifications = []string{
	"solicitor",
	"advocate",
	"notary",
	"notary public",
	"chartered accountant",
	"accountant",
	"lawyer",
	"barrister",
	"banker",
	"regulated financial services professional",
}

// Certification validity windows by document type.
const (
	addressProofValidity = 3 * 30 * 24 * time.Hour  // 3 months
	identityValidity     = 12 * 30 * 24 * time.Hour // 12 months
)

// CheckCertification runs the fixed certification validity rules for a
// document. Each check yields pass, review_needed or fail; the overall
// status is the worst of the four.
func CheckCertification(cert *domain.Certification, detectedType domain.DocType, now time.Time) (map[string]domain.CheckResult, domain.CheckResult) {
	checks := map[string]domain.CheckResult{
		CheckWording:       checkWording(cert),
		CheckQualification: checkQualification(cert),
		CheckDate:          checkDate(cert, detectedType, now),
		CheckQuality:       checkQuality(cert),
	}

	overall := domain.CheckResultPass
	for _, result := range checks {
		overall = domain.WorstOf(overall, result)
	}
	return checks, overall
}

func checkWording(cert *domain.Certification) domain.CheckResult {
	if cert == nil || strings.TrimSpace(cert.Wording) == "" {
		return domain.CheckResultFail
	}

	wording := strings.ToLower(cert.Wording)
	for _, phrase := range certificationPhrases {
		if strings.Contains(wording, phrase) {
			return domain.CheckResultPass
		}
	}
	// Some attestation text is present but not a recognized phrase.
	if strings.Contains(wording, "certif") || strings.Contains(wording, "true copy") {
		return domain.CheckResultReviewNeeded
	}
	return domain.CheckResultFail
}

func checkQualification(cert *domain.Certification) domain.CheckResult {
	if cert == nil || strings.TrimSpace(cert.CertifierQualification) == "" {
		return domain.CheckResultFail
	}

	qualification := strings.ToLower(cert.CertifierQualification)
	for _, accepted := range acceptedQualifications {
		if strings.Contains(qualification, accepted) {
			return domain.CheckResultPass
		}
	}
	return domain.CheckResultReviewNeeded
}

func checkDate(cert *domain.Certification, detectedType domain.DocType, now time.Time) domain.CheckResult {
	if cert == nil || cert.CertifiedAt == nil {
		return domain.CheckResultReviewNeeded
	}

	validity := identityValidity
	if detectedType == domain.DocTypeAddressProof {
		validity = addressProofValidity
	}

	age := now.Sub(*cert.CertifiedAt)
	if age < 0 {
		// Certification dated in the future.
		return domain.CheckResultReviewNeeded
	}
	if age > validity {
		return domain.CheckResultFail
	}
	return domain.CheckResultPass
}

func checkQuality(cert *domain.Certification) domain.CheckResult {
	if cert == nil {
		return domain.CheckResultFail
	}
	if cert.Legible && cert.Complete {
		return domain.CheckResultPass
	}
	if cert.Legible || cert.Complete {
		return domain.CheckResultReviewNeeded
	}
	return domain.CheckResultFail
}

// ==============================================================================
// FILENAME HEURISTIC ANALYZER
// ==============================================================================

// filenameRules map filename keywords to document types, checked in order
// so the more specific patterns win.
var filenameRules = []struct {
	keywords   []string
	docType    domain.DocType
	confidence float64
}{
	{[]string{"passport"}, domain.DocTypePassport, 0.75},
	{[]string{"address", "utility", "bank_statement", "bank statement"}, domain.DocTypeAddressProof, 0.7},
	{[]string{"wealth", "sow"}, domain.DocTypeSourceOfWealth, 0.65},
	{[]string{"source_of_funds", "funds"}, domain.DocTypeSourceOfFunds, 0.6},
	{[]string{"incorporation", "certificate of inc"}, domain.DocTypeCertIncorporation, 0.7},
	{[]string{"memorandum", "articles", "m&a"}, domain.DocTypeMemArts, 0.65},
	{[]string{"register of directors", "directors_register"}, domain.DocTypeRegisterDirectors, 0.65},
	{[]string{"register of members", "members_register", "shareholder register"}, domain.DocTypeRegisterMembers, 0.65},
	{[]string{"structure", "org chart", "organogram"}, domain.DocTypeStructureChart, 0.6},
	{[]string{"bank_reference", "reference letter"}, domain.DocTypeBankReference, 0.6},
}

// HeuristicAnalyzer infers the document type from filename keywords. It is
// intentionally conservative: anything it cannot classify comes back as
// unknown with zero confidence so it is never auto-linked.
type HeuristicAnalyzer struct{}

// NewHeuristicAnalyzer returns the filename-keyword fallback analyzer.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{}
}

func (a *HeuristicAnalyzer) Analyze(filename string) (*domain.DocumentAnalysis, error) {
	name := strings.ToLower(filename)

	analysis := &domain.DocumentAnalysis{
		DetectedType:  domain.DocTypeUnknown,
		Confidence:    0,
		Checks:        map[string]domain.CheckResult{},
		OverallStatus: domain.CheckResultReviewNeeded,
	}

	for _, rule := range filenameRules {
		for _, keyword := range rule.keywords {
			if strings.Contains(name, keyword) {
				analysis.DetectedType = rule.docType
				analysis.Confidence = rule.confidence
				return analysis, nil
			}
		}
	}

	return analysis, nil
}
