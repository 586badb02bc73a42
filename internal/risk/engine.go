// Package risk implements the weighted risk-scoring model used to classify
// an onboarding and route it to the correct approval level.
package risk

import (
	"fmt"
	"strings"
	"time"

	"onboard/internal/domain"
	"onboard/pkg/config"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Factor names used as keys in the assessment factor map.
const (
	FactorJurisdiction    = "jurisdiction"
	FactorPEP             = "pep_status"
	FactorSanctions       = "sanctions"
	FactorAdverseMedia    = "adverse_media"
	FactorEntityStructure = "entity_structure"
)

// Engine scores onboardings against the configured weighted factor model.
type Engine struct {
	cfg        config.RiskConfig
	logger     logger.Logger
	prohibited map[string]bool
	high       map[string]bool
	medium     map[string]bool
}

// NewEngine builds a risk engine from configuration. Weights are expected
// to sum to 100; the engine does not renormalize.
func NewEngine(cfg config.RiskConfig, log logger.Logger) *Engine {
	return &Engine{
		cfg:        cfg,
		logger:     log,
		prohibited: toSet(cfg.ProhibitedJurisdictions),
		high:       toSet(cfg.HighRiskJurisdictions),
		medium:     toSet(cfg.MediumRiskJurisdictions),
	}
}

func toSet(codes []string) map[string]bool {
	set := make(map[string]bool, len(codes))
	for _, c := range codes {
		set[strings.ToUpper(strings.TrimSpace(c))] = true
	}
	return set
}

// Calculate produces a RiskAssessment for an onboarding from its screening
// results, sponsor jurisdiction, and entity type. Empty screening results
// score as lowest risk for the screening-derived factors; the caller is
// responsible for not skipping screening.
func (e *Engine) Calculate(onboardingID uuid.UUID, screening []domain.ScreeningResult, jurisdiction, entityType string) *domain.RiskAssessment {
	factors := map[string]domain.FactorScore{
		FactorJurisdiction:    e.scoreJurisdiction(jurisdiction),
		FactorPEP:             e.scorePEP(screening),
		FactorSanctions:       e.scoreSanctions(screening),
		FactorAdverseMedia:    e.scoreAdverseMedia(screening),
		FactorEntityStructure: e.scoreEntityStructure(entityType),
	}

	composite := decimal.Zero
	for _, f := range factors {
		composite = composite.Add(f.Contribution)
	}

	rating := e.rate(composite)

	// Prohibited jurisdictions force a high rating regardless of the
	// composite score.
	prohibited := e.prohibited[strings.ToUpper(strings.TrimSpace(jurisdiction))]
	if prohibited {
		rating = domain.RiskRatingHigh
	}

	pepHit := anyPEPHit(screening)
	assessment := &domain.RiskAssessment{
		ID:            uuid.New(),
		OnboardingID:  onboardingID,
		Score:         composite,
		Rating:        rating,
		Factors:       factors,
		EDDRequired:   rating == domain.RiskRatingHigh || pepHit,
		ApprovalLevel: approvalLevelFor(rating),
		AssessedAt:    time.Now().UTC(),
	}

	e.logger.Info("Risk assessment calculated", map[string]interface{}{
		"onboarding_id":  onboardingID,
		"score":          composite.String(),
		"rating":         rating,
		"edd_required":   assessment.EDDRequired,
		"approval_level": assessment.ApprovalLevel,
		"prohibited":     prohibited,
	})

	return assessment
}

// rate classifies a composite score: < medium threshold is low,
// < high threshold is medium, otherwise high.
func (e *Engine) rate(score decimal.Decimal) domain.RiskRating {
	switch {
	case score.LessThan(decimal.NewFromFloat(e.cfg.MediumThreshold)):
		return domain.RiskRatingLow
	case score.LessThan(decimal.NewFromFloat(e.cfg.HighThreshold)):
		return domain.RiskRatingMedium
	default:
		return domain.RiskRatingHigh
	}
}

func approvalLevelFor(rating domain.RiskRating) domain.ApprovalLevel {
	switch rating {
	case domain.RiskRatingHigh:
		return domain.ApprovalLevelBoard
	case domain.RiskRatingMedium:
		return domain.ApprovalLevelMLRO
	default:
		return domain.ApprovalLevelCompliance
	}
}

func anyPEPHit(screening []domain.ScreeningResult) bool {
	for _, r := range screening {
		if r.HasPEPHit {
			return true
		}
	}
	return false
}

func (e *Engine) scoreJurisdiction(jurisdiction string) domain.FactorScore {
	code := strings.ToUpper(strings.TrimSpace(jurisdiction))

	var score int64
	var reason string
	switch {
	case e.prohibited[code]:
		score, reason = 100, fmt.Sprintf("%s is a prohibited jurisdiction", code)
	case e.high[code]:
		score, reason = 90, fmt.Sprintf("%s is a high-risk jurisdiction", code)
	case e.medium[code]:
		score, reason = 50, fmt.Sprintf("%s is a medium-risk jurisdiction", code)
	case code == "":
		score, reason = 50, "jurisdiction not provided"
	default:
		score, reason = 10, fmt.Sprintf("%s is a standard-risk jurisdiction", code)
	}

	return e.factor(score, e.cfg.WeightJurisdiction, reason)
}

func (e *Engine) scorePEP(screening []domain.ScreeningResult) domain.FactorScore {
	hits := 0
	for _, r := range screening {
		if r.HasPEPHit {
			hits++
		}
	}

	if hits == 0 {
		return e.factor(0, e.cfg.WeightPEP, "no PEP matches")
	}
	return e.factor(100, e.cfg.WeightPEP, fmt.Sprintf("%d principal(s) with PEP matches", hits))
}

func (e *Engine) scoreSanctions(screening []domain.ScreeningResult) domain.FactorScore {
	hits := 0
	for _, r := range screening {
		if r.HasSanctionsHit {
			hits++
		}
	}

	if hits == 0 {
		return e.factor(0, e.cfg.WeightSanctions, "no sanctions matches")
	}
	return e.factor(100, e.cfg.WeightSanctions, fmt.Sprintf("%d principal(s) with sanctions matches", hits))
}

func (e *Engine) scoreAdverseMedia(screening []domain.ScreeningResult) domain.FactorScore {
	hits := 0
	for _, r := range screening {
		if r.HasAdverseMedia {
			hits++
		}
	}

	switch {
	case hits == 0:
		return e.factor(0, e.cfg.WeightAdverseMedia, "no adverse media")
	case hits == 1:
		return e.factor(60, e.cfg.WeightAdverseMedia, "one principal with adverse media")
	default:
		return e.factor(100, e.cfg.WeightAdverseMedia, fmt.Sprintf("%d principals with adverse media", hits))
	}
}

func (e *Engine) scoreEntityStructure(entityType string) domain.FactorScore {
	t := strings.ToLower(strings.TrimSpace(entityType))

	var score int64
	var reason string
	switch {
	case strings.Contains(t, "trust") || strings.Contains(t, "nominee"):
		score, reason = 90, "trust or nominee structures obscure ownership"
	case strings.Contains(t, "spv") || strings.Contains(t, "holding"):
		score, reason = 60, "layered holding structure"
	case strings.Contains(t, "listed"):
		score, reason = 10, "listed entity with public ownership"
	case t == "":
		score, reason = 50, "entity type not provided"
	default:
		score, reason = 30, "standard corporate structure"
	}

	return e.factor(score, e.cfg.WeightEntityStructure, reason)
}

// factor builds one weighted factor: contribution = score * weight / 100.
func (e *Engine) factor(score int64, weight int, reason string) domain.FactorScore {
	s := decimal.NewFromInt(score)
	return domain.FactorScore{
		Score:        s,
		Weight:       weight,
		Contribution: s.Mul(decimal.NewFromInt(int64(weight))).Div(decimal.NewFromInt(100)),
		Reason:       reason,
	}
}
