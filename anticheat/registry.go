/*
registry.go - Event-type to strategy mapping and per-event rules

PURPOSE:
  The registry answers one question for the pipeline: which strategies
  scrutinize a given business event? It also carries the per-event knobs
  those strategies consult (daily caps, quality weighting, verification
  requirements).

UNKNOWN EVENTS:
  An event type with no rule gets an EMPTY strategy list, meaning no
  anti-cheat scrutiny applies and the pipeline allows the award
  immediately. Unknown events are a configuration gap, not an error.

CONFIGURATION:
  DefaultRules() mirrors the production platform defaults. Ops can add or
  replace rules at runtime via the factory package (JSON definitions) and
  the admin API; Rules is safe for concurrent read/update.

SEE ALSO:
  - pipeline.go: Sole consumer of StrategiesFor
  - factory/rules.go: JSON rule definitions
*/
package anticheat

import "sync"

// =============================================================================
// EVENT RULE - Per-event configuration
// =============================================================================

// EventRule is the complete anti-cheat configuration for one event type.
type EventRule struct {
	EventType  string
	Strategies []StrategyCode

	// DailyCap is the max awards per user per calendar day. 0 means the
	// event has no configured cap and AS-01 passes it through.
	DailyCap int

	// QualityWeighted marks events subject to AS-02 tiered multipliers.
	QualityWeighted bool

	// RequiresVerification marks events that need a counterpart
	// confirmation (AS-04) before points are finalized.
	RequiresVerification bool
}

// =============================================================================
// RULES - Concurrent-safe rule set
// =============================================================================

// Rules holds all event rules. Reads vastly outnumber writes (admin rule
// updates), hence the RWMutex.
type Rules struct {
	mu    sync.RWMutex
	rules map[string]EventRule
}

// NewRules creates an empty rule set.
func NewRules() *Rules {
	return &Rules{rules: make(map[string]EventRule)}
}

// StrategiesFor returns the strategy codes applicable to eventType, in
// canonical order. Unknown event types return nil: no scrutiny applies.
func (r *Rules) StrategiesFor(eventType string) []StrategyCode {
	r.mu.RLock()
	rule, ok := r.rules[eventType]
	r.mu.RUnlock()
	if !ok {
		return nil
	}

	// Normalize to canonical order regardless of how the rule was written.
	want := make(map[StrategyCode]bool, len(rule.Strategies))
	for _, c := range rule.Strategies {
		want[c] = true
	}
	ordered := make([]StrategyCode, 0, len(rule.Strategies))
	for _, c := range CanonicalOrder {
		if want[c] {
			ordered = append(ordered, c)
		}
	}
	return ordered
}

// Rule returns the rule for eventType.
func (r *Rules) Rule(eventType string) (EventRule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rule, ok := r.rules[eventType]
	return rule, ok
}

// Upsert adds or replaces a rule.
func (r *Rules) Upsert(rule EventRule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.EventType] = rule
}

// All returns a copy of every rule, for status endpoints.
func (r *Rules) All() []EventRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EventRule, 0, len(r.rules))
	for _, rule := range r.rules {
		out = append(out, rule)
	}
	return out
}

// DailyCap returns the configured cap for eventType (0 = uncapped).
func (r *Rules) DailyCap(eventType string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[eventType].DailyCap
}

// QualityWeighted reports whether AS-02 tiers apply to eventType.
func (r *Rules) QualityWeighted(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[eventType].QualityWeighted
}

// RequiresVerification reports whether eventType needs a counterpart
// confirmation.
func (r *Rules) RequiresVerification(eventType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.rules[eventType].RequiresVerification
}

// CappedEvents returns the rules that carry a daily cap, for the
// daily-status endpoint.
func (r *Rules) CappedEvents() []EventRule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []EventRule
	for _, rule := range r.rules {
		if rule.DailyCap > 0 {
			out = append(out, rule)
		}
	}
	return out
}

// =============================================================================
// DEFAULT RULES - Production platform defaults
// =============================================================================

// DefaultRules returns the built-in event rules for the coaching platform.
func DefaultRules() *Rules {
	r := NewRules()
	for _, rule := range []EventRule{
		{
			EventType:  "daily_checkin",
			Strategies: []StrategyCode{CodeDailyCap, CodeAnomalyDetect},
			DailyCap:   1,
		},
		{
			EventType:  "mood_log",
			Strategies: []StrategyCode{CodeDailyCap, CodeTimeDecay, CodeAnomalyDetect},
			DailyCap:   3,
		},
		{
			EventType:  "habit_clockin",
			Strategies: []StrategyCode{CodeDailyCap, CodeTimeDecay, CodeGrowthTrack, CodeAnomalyDetect},
			DailyCap:   5,
		},
		{
			EventType:       "insight_share",
			Strategies:      []StrategyCode{CodeQualityWeight, CodeTimeDecay, CodeAnomalyDetect},
			QualityWeighted: true,
		},
		{
			EventType:       "course_complete",
			Strategies:      []StrategyCode{CodeDailyCap, CodeQualityWeight, CodeGrowthTrack},
			DailyCap:        2,
			QualityWeighted: true,
		},
		{
			EventType:            "peer_support",
			Strategies:           []StrategyCode{CodeDailyCap, CodeCrossVerify, CodeGrowthTrack, CodeAnomalyDetect},
			DailyCap:             3,
			RequiresVerification: true,
		},
		{
			EventType:            "buddy_checkin",
			Strategies:           []StrategyCode{CodeCrossVerify, CodeAnomalyDetect},
			RequiresVerification: true,
		},
		{
			EventType:  "growth_milestone",
			Strategies: []StrategyCode{CodeGrowthTrack},
		},
	} {
		r.Upsert(rule)
	}
	return r
}
