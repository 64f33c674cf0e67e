/*
pipeline.go - Strategy sequencing and aggregate decision

PURPOSE:
  Runs the strategies applicable to a request's event type, in canonical
  order (AS-01 .. AS-06), and folds their verdicts into one PipelineResult.

SHORT-CIRCUIT RULE:
  The first CAPPED or PENDING verdict stops the pipeline immediately:
  awarded=false, final_points=0, and strategies after the blocking one do
  not run, so their counters are NOT incremented. The blocking strategy's
  own counter update already happened inside its evaluate call, which is
  correct: the capped call consumed quota.

ACCUMULATION:
  When nothing blocks, points compose multiplicatively: the running total
  starts at base_points and each WEIGHTED/DECAYED strategy multiplies the
  RUNNING total by its own multiplier, not the original base. FLAGGED
  leaves points untouched but marks the result for review.

FAIL-CLOSED:
  A strategy error denies the award. An anti-cheat layer that fails open
  is worse than none; the caller gets the error and zero points.

SEE ALSO:
  - types.go: Result shapes
  - registry.go: Which strategies apply per event
*/
package anticheat

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Pipeline sequences anti-cheat strategies for award requests.
type Pipeline struct {
	rules      *Rules
	strategies map[StrategyCode]Strategy
	audit      AuditLog
	log        *zap.Logger
}

// NewPipeline wires the pipeline. Strategies are indexed by code; the
// registry decides which subset runs per event.
func NewPipeline(rules *Rules, audit AuditLog, log *zap.Logger, strategies ...Strategy) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	idx := make(map[StrategyCode]Strategy, len(strategies))
	for _, s := range strategies {
		idx[s.Code()] = s
	}
	return &Pipeline{rules: rules, strategies: idx, audit: audit, log: log}
}

// Rules exposes the rule set for status endpoints.
func (p *Pipeline) Rules() *Rules { return p.rules }

// Strategy returns the evaluator registered for code, if any.
func (p *Pipeline) Strategy(code StrategyCode) (Strategy, bool) {
	s, ok := p.strategies[code]
	return s, ok
}

// Process evaluates one award request. On error the award is denied
// (fail-closed); the returned result reflects the denial and err carries
// the cause.
func (p *Pipeline) Process(ctx context.Context, req AwardRequest) (*PipelineResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	result := &PipelineResult{
		OriginalPoints: req.BasePoints,
		VerdictSummary: SummaryAllowed,
	}

	codes := p.rules.StrategiesFor(req.EventType)
	if len(codes) == 0 {
		// No scrutiny configured: immediate allow.
		result.FinalPoints = req.BasePoints
		result.Awarded = req.BasePoints > 0
		return result, nil
	}

	running := decimal.NewFromInt(int64(req.BasePoints))
	decayFloor := false

	for _, code := range codes {
		strat, ok := p.strategies[code]
		if !ok {
			return p.deny(result), fmt.Errorf("%w: %s", ErrUnknownStrategy, code)
		}

		sr, err := strat.Evaluate(ctx, req)
		if err != nil {
			p.log.Error("strategy failed, denying award",
				zap.String("strategy", string(code)),
				zap.String("user_id", req.UserID),
				zap.String("event_type", req.EventType),
				zap.Error(err))
			return p.deny(result), &StrategyError{
				StrategyCode: code,
				UserID:       req.UserID,
				EventType:    req.EventType,
				Err:          err,
			}
		}
		result.StrategyResults = append(result.StrategyResults, sr)

		switch sr.Verdict {
		case VerdictCapped:
			result.FinalPoints = 0
			result.Awarded = false
			result.VerdictSummary = SummaryCapped
			result.UserMessage = sr.Reason
			p.auditBlock(ctx, req, sr, AuditCapped)
			return result, nil

		case VerdictPending:
			result.FinalPoints = 0
			result.Awarded = false
			result.VerdictSummary = SummaryPending
			result.PendingConfirmation = true
			result.UserMessage = sr.Reason
			p.auditBlock(ctx, req, sr, AuditPendingVerify)
			return result, nil

		case VerdictWeighted, VerdictDecayed:
			running = running.Mul(sr.Multiplier)
			if sr.Reason != "" {
				result.UserMessage = sr.Reason
			}
			if sr.Metadata != nil {
				if f, ok := sr.Metadata["floored"].(bool); ok && f {
					decayFloor = true
				}
			}

		case VerdictFlagged:
			result.FlaggedForReview = true
		}
	}

	final := int(running.Round(0).IntPart())
	// The decay floor only rescues totals that rounding pushed to zero. A
	// total already zeroed by an x0 multiplier stays rejected.
	if final == 0 && decayFloor && running.IsPositive() {
		final = 1
	}

	result.FinalPoints = final
	result.Awarded = final > 0
	if result.FlaggedForReview {
		result.VerdictSummary = SummaryAllowedFlagged
	}
	return result, nil
}

func (p *Pipeline) deny(result *PipelineResult) *PipelineResult {
	result.FinalPoints = 0
	result.Awarded = false
	result.VerdictSummary = SummaryDenied
	return result
}

func (p *Pipeline) auditBlock(ctx context.Context, req AwardRequest, sr StrategyResult, action AuditAction) {
	if p.audit == nil {
		return
	}
	err := p.audit.Append(ctx, AuditEntry{
		OccurredAt:   req.EffectiveAt(),
		UserID:       req.UserID,
		EventType:    req.EventType,
		StrategyCode: sr.StrategyCode,
		Action:       action,
		Payload: map[string]any{
			"base_points": req.BasePoints,
			"reason":      sr.Reason,
		},
	})
	if err != nil {
		p.log.Warn("failed to persist audit entry",
			zap.String("action", string(action)),
			zap.String("user_id", req.UserID),
			zap.Error(err))
	}
}

func validateRequest(req AwardRequest) error {
	switch {
	case req.UserID == "":
		return fmt.Errorf("%w: user_id required", ErrInvalidRequest)
	case req.EventType == "":
		return fmt.Errorf("%w: event_type required", ErrInvalidRequest)
	case req.BasePoints < 0:
		return fmt.Errorf("%w: base_points must be >= 0", ErrInvalidRequest)
	case req.QualityScore < 0 || req.QualityScore > 1:
		return fmt.Errorf("%w: quality_score must be in [0,1]", ErrInvalidRequest)
	}
	return nil
}
