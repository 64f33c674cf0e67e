/*
decay.go - AS-03: Repetition time decay

PURPOSE:
  Discourages grinding the same event type by decaying points as the
  lifetime attempt count grows. The counter is cumulative per
  (user, event_type) and is NOT reset daily.

TIERS (attempt count after increment):
  1-5    x1.0  (ALLOW)
  6-10   x0.8  (DECAYED)
  11-20  x0.5  (DECAYED)
  >=21   x0.2  (DECAYED), floored at 1 point when base_points > 0

  At the deepest tier the user message nudges toward varying behavior
  rather than explaining the decay mechanics.

COUNTING:
  The counter increments on EVERY evaluation call, regardless of what
  other strategies decide afterwards. Decay measures call frequency, not
  award success.
*/
package anticheat

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Decay tier boundaries (attempt counts).
const (
	decayTier1Max = 5
	decayTier2Max = 10
	decayTier3Max = 20
)

// TimeDecayStrategy scales points down by lifetime repetition (AS-03).
type TimeDecayStrategy struct {
	Counters CounterStore
}

func NewTimeDecayStrategy(counters CounterStore) *TimeDecayStrategy {
	return &TimeDecayStrategy{Counters: counters}
}

func (s *TimeDecayStrategy) Code() StrategyCode { return CodeTimeDecay }

func (s *TimeDecayStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	// Empty bucket: lifetime counter, never rolled over.
	key := CounterKey{UserID: req.UserID, EventType: req.EventType}
	attempts, err := s.Counters.Increment(ctx, key)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("decay counter: %w", err)
	}

	mult, deepest := DecayMultiplier(attempts)
	adjusted := ApplyMultiplier(req.BasePoints, mult)

	floored := false
	if deepest && req.BasePoints > 0 && adjusted == 0 {
		adjusted = 1
		floored = true
	}

	result := StrategyResult{
		StrategyCode:   CodeTimeDecay,
		Verdict:        VerdictDecayed,
		AdjustedPoints: adjusted,
		Multiplier:     mult,
		Metadata: map[string]any{
			"attempts": attempts,
		},
	}
	if floored {
		result.Metadata["floored"] = true
	}

	switch {
	case mult.Equal(decimal.NewFromInt(1)):
		result.Verdict = VerdictAllow
	case deepest:
		result.Reason = msgDecayNudge
	default:
		result.Reason = msgDecayNotice
	}
	return result, nil
}

// DecayMultiplier maps a lifetime attempt count to its decay multiplier.
// deepest reports whether the count sits in the final tier, where the
// one-point floor applies.
func DecayMultiplier(attempts int) (mult decimal.Decimal, deepest bool) {
	switch {
	case attempts <= decayTier1Max:
		return decimal.NewFromInt(1), false
	case attempts <= decayTier2Max:
		return decimal.NewFromFloat(0.8), false
	case attempts <= decayTier3Max:
		return decimal.NewFromFloat(0.5), false
	default:
		return decimal.NewFromFloat(0.2), true
	}
}
