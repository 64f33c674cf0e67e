/*
quality.go - AS-02: Quality-weighted points

PURPOSE:
  Scales points by content quality for a configured subset of events
  (shared insights, completed course reflections). The quality score in
  [0,1] comes from the upstream scoring service; this strategy only maps
  score to a multiplier tier.

TIERS:
  score >= 0.8        x2.0  (WEIGHTED)
  0.6 <= score < 0.8  x1.0  (ALLOW)
  0.3 <= score < 0.6  x0.5  (WEIGHTED)
  score < 0.3         x0.0  (WEIGHTED)

  The bottom tier zeroes the award but keeps the WEIGHTED verdict instead
  of a rejection verdict. The production system behaves this way; the
  adjusted-points-zero convention is preserved deliberately.

PURITY:
  Stateless: adjusted points are a pure function of (quality_score,
  base_points). Nothing is counted or persisted.
*/
package anticheat

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// QualityWeightStrategy applies tiered quality multipliers (AS-02).
type QualityWeightStrategy struct {
	Rules *Rules
}

func NewQualityWeightStrategy(rules *Rules) *QualityWeightStrategy {
	return &QualityWeightStrategy{Rules: rules}
}

func (s *QualityWeightStrategy) Code() StrategyCode { return CodeQualityWeight }

func (s *QualityWeightStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	if !s.Rules.QualityWeighted(req.EventType) {
		return passThrough(CodeQualityWeight, req.BasePoints), nil
	}

	mult := QualityMultiplier(req.QualityScore)
	adjusted := ApplyMultiplier(req.BasePoints, mult)

	result := StrategyResult{
		StrategyCode:   CodeQualityWeight,
		Verdict:        VerdictWeighted,
		AdjustedPoints: adjusted,
		Multiplier:     mult,
		Reason:         fmt.Sprintf("quality %.2f weighted x%s", req.QualityScore, mult.String()),
		Metadata: map[string]any{
			"quality_score": req.QualityScore,
		},
	}
	if mult.Equal(decimal.NewFromInt(1)) {
		result.Verdict = VerdictAllow
		result.Reason = ""
	}
	return result, nil
}

// QualityMultiplier maps a quality score in [0,1] to its tier multiplier.
// Pure function, exported for the status endpoint and tests.
func QualityMultiplier(score float64) decimal.Decimal {
	switch {
	case score >= 0.8:
		return decimal.NewFromInt(2)
	case score >= 0.6:
		return decimal.NewFromInt(1)
	case score >= 0.3:
		return decimal.NewFromFloat(0.5)
	default:
		return decimal.Zero
	}
}

// ApplyMultiplier scales base points by mult, rounding half away from zero.
// No fractional points are ever persisted.
func ApplyMultiplier(basePoints int, mult decimal.Decimal) int {
	return int(decimal.NewFromInt(int64(basePoints)).Mul(mult).Round(0).IntPart())
}
