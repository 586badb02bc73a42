package risk

import (
	"testing"

	"onboard/internal/domain"
	"onboard/pkg/config"
	"onboard/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *Engine {
	return NewEngine(config.LoadRiskConfig(), logger.NewNop())
}

func TestCalculate_EmptyScreeningFailsOpen(t *testing.T) {
	engine := newTestEngine()

	assessment := engine.Calculate(uuid.New(), nil, "GB", "limited company")

	require.NotNil(t, assessment)
	assert.Equal(t, domain.RiskRatingLow, assessment.Rating)
	assert.False(t, assessment.EDDRequired)
	assert.Equal(t, domain.ApprovalLevelCompliance, assessment.ApprovalLevel)
	assert.True(t, assessment.Factors[FactorPEP].Score.IsZero())
	assert.True(t, assessment.Factors[FactorSanctions].Score.IsZero())
	assert.True(t, assessment.Factors[FactorAdverseMedia].Score.IsZero())
}

func TestCalculate_PEPHitForcesEDD(t *testing.T) {
	engine := newTestEngine()

	screening := []domain.ScreeningResult{
		{Name: "John Smith", HasPEPHit: true},
		{Name: "Jane Doe"},
	}
	assessment := engine.Calculate(uuid.New(), screening, "GB", "limited company")

	assert.True(t, assessment.EDDRequired, "PEP hit requires EDD even if rating is not high")
	assert.True(t, assessment.Factors[FactorPEP].Score.Equal(decimal.NewFromInt(100)))
}

func TestCalculate_SanctionsDriveHighRating(t *testing.T) {
	engine := newTestEngine()

	screening := []domain.ScreeningResult{
		{Name: "John Smith", HasPEPHit: true, HasSanctionsHit: true, HasAdverseMedia: true},
	}
	assessment := engine.Calculate(uuid.New(), screening, "RU", "trust")

	// jurisdiction 90*0.25 + pep 100*0.25 + sanctions 100*0.30 + media 60*0.10 + structure 90*0.10
	assert.True(t, assessment.Score.GreaterThanOrEqual(decimal.NewFromInt(70)))
	assert.Equal(t, domain.RiskRatingHigh, assessment.Rating)
	assert.Equal(t, domain.ApprovalLevelBoard, assessment.ApprovalLevel)
	assert.True(t, assessment.EDDRequired)
}

func TestCalculate_ProhibitedJurisdictionHardOverride(t *testing.T) {
	engine := newTestEngine()

	// Clean screening: composite stays low, but a prohibited jurisdiction
	// must still force a high rating.
	assessment := engine.Calculate(uuid.New(), []domain.ScreeningResult{{Name: "Jane Doe"}}, "KP", "listed company")

	assert.Equal(t, domain.RiskRatingHigh, assessment.Rating)
	assert.Equal(t, domain.ApprovalLevelBoard, assessment.ApprovalLevel)
	assert.True(t, assessment.EDDRequired)
}

func TestRate_Boundaries(t *testing.T) {
	engine := newTestEngine()

	tests := []struct {
		score  float64
		rating domain.RiskRating
	}{
		{0, domain.RiskRatingLow},
		{39.999, domain.RiskRatingLow},
		{40, domain.RiskRatingMedium},
		{69.999, domain.RiskRatingMedium},
		{70, domain.RiskRatingHigh},
		{100, domain.RiskRatingHigh},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.rating, engine.rate(decimal.NewFromFloat(tt.score)), "score %v", tt.score)
	}
}

func TestCalculate_WeightsSumToComposite(t *testing.T) {
	engine := newTestEngine()

	screening := []domain.ScreeningResult{{Name: "John Smith", HasAdverseMedia: true}}
	assessment := engine.Calculate(uuid.New(), screening, "KY", "spv")

	sum := decimal.Zero
	totalWeight := 0
	for _, f := range assessment.Factors {
		sum = sum.Add(f.Contribution)
		totalWeight += f.Weight
	}
	assert.True(t, assessment.Score.Equal(sum))
	assert.Equal(t, 100, totalWeight)
}

func TestCalculate_ConfigurableThresholds(t *testing.T) {
	cfg := config.LoadRiskConfig()
	cfg.MediumThreshold = 5
	cfg.HighThreshold = 10
	engine := NewEngine(cfg, logger.NewNop())

	assessment := engine.Calculate(uuid.New(), nil, "GB", "listed company")

	// jurisdiction 10*0.25 + structure 10*0.10 = 3.5 -> still low
	assert.Equal(t, domain.RiskRatingLow, assessment.Rating)

	cfg.MediumThreshold = 1
	engine = NewEngine(cfg, logger.NewNop())
	assessment = engine.Calculate(uuid.New(), nil, "GB", "listed company")
	assert.Equal(t, domain.RiskRatingMedium, assessment.Rating)
}
