/*
dailycap.go - AS-01: Per-day award caps

PURPOSE:
  Limits how many times per calendar day a user can earn points for a
  capped event type. The first C awards of the day pass, the (C+1)th and
  later are CAPPED with zero points.

QUOTA SEMANTICS:
  The counter is incremented BEFORE the decision: every evaluation call
  consumes one unit of quota, including the one that gets capped. The
  first-ever call for a (user, event) pair therefore starts at count 1,
  which still passes as long as 1 <= cap.

DAY BOUNDARY:
  Local calendar date of the request timestamp. No timezone handling
  beyond the process-local date; rollover happens at local midnight.

SEE ALSO:
  - registry.go: Cap configuration per event
  - store.go: CounterStore atomicity contract
*/
package anticheat

import (
	"context"
	"fmt"
)

// DailyCapStrategy enforces per-day award caps (AS-01).
type DailyCapStrategy struct {
	Rules    *Rules
	Counters CounterStore
}

func NewDailyCapStrategy(rules *Rules, counters CounterStore) *DailyCapStrategy {
	return &DailyCapStrategy{Rules: rules, Counters: counters}
}

func (s *DailyCapStrategy) Code() StrategyCode { return CodeDailyCap }

func (s *DailyCapStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	limit := s.Rules.DailyCap(req.EventType)
	if limit <= 0 {
		return passThrough(CodeDailyCap, req.BasePoints), nil
	}

	key := CounterKey{
		UserID:    req.UserID,
		EventType: req.EventType,
		Bucket:    DayBucket(req.EffectiveAt()),
	}
	count, err := s.Counters.Increment(ctx, key)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("daily cap counter: %w", err)
	}

	if count > limit {
		result := passThrough(CodeDailyCap, 0)
		result.Verdict = VerdictCapped
		result.AdjustedPoints = 0
		result.Reason = msgDailyCapReached
		result.Metadata = map[string]any{
			"cap":  limit,
			"used": count,
		}
		return result, nil
	}

	result := passThrough(CodeDailyCap, req.BasePoints)
	result.Metadata = map[string]any{
		"cap":       limit,
		"used":      count,
		"remaining": limit - count,
	}
	return result, nil
}

// Usage returns today's consumed quota for (userID, eventType), for the
// daily-status endpoint. Read-only.
func (s *DailyCapStrategy) Usage(ctx context.Context, userID, eventType, day string) (int, error) {
	return s.Counters.Get(ctx, CounterKey{UserID: userID, EventType: eventType, Bucket: day})
}
