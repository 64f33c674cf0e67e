/*
Package anticheat provides the points anti-cheat engine.

PURPOSE:
  This package contains the core types and strategy pipeline that guard
  the points system against farming and abuse. Every points award flows
  through a chain of independent strategies (daily caps, quality weighting,
  repetition decay, cross-verification, growth-track gating, anomaly
  detection) before a single point is credited.

KEY CONCEPTS IN THIS FILE (types.go):
  - AwardRequest: One immutable points-award attempt
  - Verdict: The categorical outcome of one strategy's evaluation
  - StrategyResult: What one strategy decided, never mutated afterwards
  - PipelineResult: The aggregate decision returned to the caller

DESIGN PRINCIPLES:
  1. Immutability: Requests and results are value objects, created per call
  2. Precision: Uses decimal.Decimal for multiplier math (no float drift)
  3. Ownership: Each strategy owns its own counters; the pipeline only
     reads StrategyResult values, never raw counter state
  4. Auditability: Blocking and flagged outcomes produce audit entries

USAGE:
  req := anticheat.AwardRequest{
      UserID:     "user-42",
      EventType:  "daily_checkin",
      BasePoints: 10,
  }
  result, err := pipeline.Process(ctx, req)

SEE ALSO:
  - pipeline.go: Strategy sequencing and short-circuit rules
  - registry.go: Event-type to strategy mapping
  - store.go: Counter persistence interfaces
*/
package anticheat

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STRATEGY CODES
// =============================================================================

// StrategyCode identifies one anti-cheat strategy. Codes are stable and
// appear in API responses and audit records.
type StrategyCode string

const (
	CodeDailyCap      StrategyCode = "AS-01"
	CodeQualityWeight StrategyCode = "AS-02"
	CodeTimeDecay     StrategyCode = "AS-03"
	CodeCrossVerify   StrategyCode = "AS-04"
	CodeGrowthTrack   StrategyCode = "AS-05"
	CodeAnomalyDetect StrategyCode = "AS-06"
)

// CanonicalOrder is the fixed execution order of strategies within the
// pipeline. Strategies not applicable to an event are skipped, but the
// relative order of the ones that run never changes.
var CanonicalOrder = []StrategyCode{
	CodeDailyCap,
	CodeQualityWeight,
	CodeTimeDecay,
	CodeCrossVerify,
	CodeGrowthTrack,
	CodeAnomalyDetect,
}

// =============================================================================
// VERDICTS
// =============================================================================

// Verdict is the categorical outcome of a single strategy evaluation.
type Verdict string

const (
	VerdictAllow    Verdict = "ALLOW"    // No objection, points pass unchanged
	VerdictCapped   Verdict = "CAPPED"   // Daily quota exhausted, blocks award
	VerdictWeighted Verdict = "WEIGHTED" // Points scaled by quality tier
	VerdictDecayed  Verdict = "DECAYED"  // Points scaled down by repetition
	VerdictPending  Verdict = "PENDING"  // Awaiting counterpart confirmation, blocks award
	VerdictFlagged  Verdict = "FLAGGED"  // Burst detected, awarded but queued for review
)

// Blocking reports whether this verdict stops the pipeline and denies the award.
func (v Verdict) Blocking() bool {
	return v == VerdictCapped || v == VerdictPending
}

// =============================================================================
// AWARD REQUEST - One immutable points-award attempt
// =============================================================================

// AwardRequest describes a single attempt to award points for a business
// event. It is created per API call and discarded after evaluation.
type AwardRequest struct {
	UserID         string
	EventType      string
	BasePoints     int
	PointsCategory string

	// QualityScore in [0,1]; only consulted for quality-weighted events.
	QualityScore float64

	// CounterpartUserID is the second party for cross-verified events.
	CounterpartUserID string

	// BehaviorID distinguishes separate occurrences of the same interaction
	// between the same pair of users.
	BehaviorID string

	// Timestamp is optional; zero means "now". Strategies use it for day
	// bucketing and window placement, which keeps evaluations replayable.
	Timestamp time.Time

	Metadata map[string]string
}

// EffectiveAt returns the request timestamp, defaulting to the current time.
func (r AwardRequest) EffectiveAt() time.Time {
	if r.Timestamp.IsZero() {
		return time.Now()
	}
	return r.Timestamp
}

// =============================================================================
// STRATEGY RESULT - Produced fresh per evaluation, never mutated
// =============================================================================

// StrategyResult is one strategy's decision for one request.
type StrategyResult struct {
	StrategyCode StrategyCode `json:"strategy_code"`
	Verdict      Verdict      `json:"verdict"`

	// AdjustedPoints is the strategy's own view of base_points after its
	// multiplier. The pipeline applies Multiplier to the running total
	// instead, so stacked weightings compose.
	AdjustedPoints int `json:"adjusted_points"`

	// Multiplier applied by this strategy (1 for pass-through verdicts).
	Multiplier decimal.Decimal `json:"multiplier"`

	Reason   string         `json:"reason,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

func passThrough(code StrategyCode, basePoints int) StrategyResult {
	return StrategyResult{
		StrategyCode:   code,
		Verdict:        VerdictAllow,
		AdjustedPoints: basePoints,
		Multiplier:     decimal.NewFromInt(1),
	}
}

// =============================================================================
// PIPELINE RESULT - Aggregate decision
// =============================================================================

// VerdictSummary is the aggregate outcome of a pipeline run.
type VerdictSummary string

const (
	SummaryAllowed        VerdictSummary = "allowed"
	SummaryAllowedFlagged VerdictSummary = "allowed_but_flagged"
	SummaryCapped         VerdictSummary = "capped"
	SummaryPending        VerdictSummary = "pending_confirmation"
	SummaryDenied         VerdictSummary = "denied"
)

// PipelineResult is the final decision for one AwardRequest.
type PipelineResult struct {
	FinalPoints    int            `json:"final_points"`
	OriginalPoints int            `json:"original_points"`
	Awarded        bool           `json:"awarded"`
	VerdictSummary VerdictSummary `json:"verdict_summary"`

	// UserMessage is shown to the end user. Flagged outcomes deliberately
	// carry no message so abusers get no feedback signal.
	UserMessage string `json:"user_message,omitempty"`

	FlaggedForReview    bool             `json:"flagged_for_review"`
	PendingConfirmation bool             `json:"pending_confirmation"`
	StrategyResults     []StrategyResult `json:"strategy_results"`
}

// =============================================================================
// USER-FACING MESSAGES
// =============================================================================

// Messages mirror the production platform's wording. FLAGGED outcomes are
// intentionally silent.
const (
	msgDailyCapReached = "今日该项积分已达上限，明天继续加油"
	msgAwaitingConfirm = "等待对方确认中"
	msgNoCounterpart   = "无法确认互动对象，请选择伙伴后重新提交"
	msgDecayNudge      = "重复行为积分递减，尝试不同行为可获得更多积分"
	msgDecayNotice     = "重复行为积分递减"
)

// Strategy is the contract every anti-cheat strategy implements. Evaluate
// must be side-effect free except for the strategy's own counters.
type Strategy interface {
	Code() StrategyCode
	Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error)
}
