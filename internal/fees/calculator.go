// Package fees implements the tiered administration fee schedule and the
// per-service fee model used for commercial proposals.
package fees

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Tier is one band of the fund-size fee schedule. A nil Max means the tier
// is unbounded above. Tiers are contiguous: tier.Min <= fundSize < tier.Max.
type Tier struct {
	Name string           `json:"name"`
	Min  decimal.Decimal  `json:"min"`
	Max  *decimal.Decimal `json:"max,omitempty"`
	Bps  int              `json:"bps"`
}

var (
	m100 = decimal.New(100_000_000, 0)
	m250 = decimal.New(250_000_000, 0)
	m500 = decimal.New(500_000_000, 0)
)

// DefaultTiers is the standard administration fee schedule, in basis points
// of fund size.
var DefaultTiers = []Tier{
	{Name: "Tier 1", Min: decimal.Zero, Max: &m100, Bps: 20},
	{Name: "Tier 2", Min: m100, Max: &m250, Bps: 18},
	{Name: "Tier 3", Min: m250, Max: &m500, Bps: 15},
	{Name: "Tier 4", Min: m500, Max: nil, Bps: 12},
}

// Service is one line of the service fee schedule. PerUnit scales the
// annual fee by investor or director count before the complexity
// multiplier is applied.
type Service struct {
	Code    string          `json:"code"`
	Name    string          `json:"name"`
	Annual  decimal.Decimal `json:"annual"`
	Setup   decimal.Decimal `json:"setup"`
	PerUnit string          `json:"per_unit,omitempty"` // "", "investor" or "director"
}

// DefaultServices is the configured service schedule.
var DefaultServices = map[string]Service{
	"nav":        {Code: "nav", Name: "NAV Calculation", Annual: decimal.New(30_000, 0), Setup: decimal.New(10_000, 0)},
	"investor":   {Code: "investor", Name: "Investor Services", Annual: decimal.New(25_000, 0), Setup: decimal.New(5_000, 0)},
	"accounting": {Code: "accounting", Name: "Fund Accounting", Annual: decimal.New(25_000, 0)},
	"ta":         {Code: "ta", Name: "Transfer Agency", Annual: decimal.New(20_000, 0), Setup: decimal.New(5_000, 0)},
	"director":   {Code: "director", Name: "Directorship Services", Annual: decimal.New(15_000, 0), PerUnit: "director"},
	"cosec":      {Code: "cosec", Name: "Company Secretarial", Annual: decimal.New(8_000, 0)},
}

var complexityMultipliers = map[string]decimal.Decimal{
	"low":    decimal.NewFromInt(1),
	"medium": decimal.NewFromFloat(1.15),
	"high":   decimal.NewFromFloat(1.3),
}

// LineItem is one service's contribution to a fee quote.
type LineItem struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// TierResult is the outcome of the fund-size tier lookup.
type TierResult struct {
	Tier string          `json:"tier"`
	Bps  int             `json:"bps"`
	Fee  decimal.Decimal `json:"fee"`
}

// FeeResult is a complete fee quote.
type FeeResult struct {
	Tier             string          `json:"tier"`
	Bps              int             `json:"bps"`
	AnnualTotal      decimal.Decimal `json:"annual_total"`
	SetupTotal       decimal.Decimal `json:"setup_total"`
	Year1Total       decimal.Decimal `json:"year1_total"`
	EffectiveBps     decimal.Decimal `json:"effective_bps"`
	ServiceBreakdown []LineItem      `json:"service_breakdown"`
	SetupBreakdown   []LineItem      `json:"setup_breakdown"`
	Warnings         []string        `json:"warnings,omitempty"`
}

var tenThousand = decimal.NewFromInt(10_000)

// CalculateAdminFee selects the fee tier for a fund size and returns the
// bps-based administration fee.
func CalculateAdminFee(fundSize decimal.Decimal) TierResult {
	tier := tierFor(fundSize)
	fee := fundSize.Mul(decimal.NewFromInt(int64(tier.Bps))).Div(tenThousand)
	return TierResult{Tier: tier.Name, Bps: tier.Bps, Fee: fee}
}

func tierFor(fundSize decimal.Decimal) Tier {
	for _, t := range DefaultTiers {
		if fundSize.GreaterThanOrEqual(t.Min) && (t.Max == nil || fundSize.LessThan(*t.Max)) {
			return t
		}
	}
	// fundSize below zero falls back to the first tier
	return DefaultTiers[0]
}

// CalculateFees builds a full fee quote. Unknown service codes contribute
// zero and are reported in Warnings rather than failing the quote.
func CalculateFees(fundSize decimal.Decimal, services []string, numInvestors, numDirectors int, complexity string, includeSetup bool) FeeResult {
	tier := tierFor(fundSize)

	multiplier, ok := complexityMultipliers[strings.ToLower(complexity)]
	if !ok {
		multiplier = complexityMultipliers["low"]
	}

	result := FeeResult{
		Tier:        tier.Name,
		Bps:         tier.Bps,
		AnnualTotal: decimal.Zero,
		SetupTotal:  decimal.Zero,
	}

	for _, code := range services {
		svc, ok := DefaultServices[strings.ToLower(strings.TrimSpace(code))]
		if !ok {
			result.Warnings = append(result.Warnings, "unknown service: "+code)
			continue
		}

		annual := svc.Annual
		switch svc.PerUnit {
		case "investor":
			annual = annual.Mul(decimal.NewFromInt(int64(numInvestors)))
		case "director":
			annual = annual.Mul(decimal.NewFromInt(int64(numDirectors)))
		}
		annual = annual.Mul(multiplier)

		result.AnnualTotal = result.AnnualTotal.Add(annual)
		result.ServiceBreakdown = append(result.ServiceBreakdown, LineItem{Code: svc.Code, Name: svc.Name, Amount: annual})

		if includeSetup && svc.Setup.IsPositive() {
			result.SetupTotal = result.SetupTotal.Add(svc.Setup)
			result.SetupBreakdown = append(result.SetupBreakdown, LineItem{Code: svc.Code, Name: svc.Name + " Setup", Amount: svc.Setup})
		}
	}

	result.Year1Total = result.AnnualTotal.Add(result.SetupTotal)

	if fundSize.IsPositive() {
		result.EffectiveBps = result.AnnualTotal.Div(fundSize).Mul(tenThousand)
	} else {
		result.EffectiveBps = decimal.Zero
	}

	return result
}
