/*
Package factory provides JSON to Go event-rule conversion.

PURPOSE:
  Converts JSON event-rule definitions into anticheat.EventRule values.
  This enables anti-cheat tuning without code changes - ops can adjust
  caps and strategy assignments in JSON, and the factory creates the
  proper Go structs.

WHY JSON?
  - Non-developers can tune caps and strategy chains
  - Easy integration with the admin API
  - Version control for rule definitions
  - Database storage of rule configs

JSON SCHEMA:
  {
    "event_type": "daily_checkin",
    "strategies": ["AS-01", "AS-06"],
    "daily_cap": 1,
    "quality_weighted": false,
    "requires_verification": false
  }

KEY FEATURES:
  - Validates strategy codes and cross-field consistency
  - Infers missing strategy entries from the flags (a daily_cap implies
    AS-01, quality_weighted implies AS-02, requires_verification AS-04)

USAGE:
  f := factory.NewRuleFactory()
  rule, err := f.ParseRule(jsonString)
  rules.Upsert(rule)

SEE ALSO:
  - anticheat/registry.go: EventRule and Rules definitions
  - store/sqlite/sqlite.go: Rule persistence
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// RuleJSON is the JSON representation of an event rule.
type RuleJSON struct {
	EventType            string   `json:"event_type"`
	Strategies           []string `json:"strategies"`
	DailyCap             int      `json:"daily_cap,omitempty"`
	QualityWeighted      bool     `json:"quality_weighted,omitempty"`
	RequiresVerification bool     `json:"requires_verification,omitempty"`
}

// =============================================================================
// RULE FACTORY
// =============================================================================

// RuleFactory converts JSON rule definitions to anticheat.EventRule.
type RuleFactory struct{}

func NewRuleFactory() *RuleFactory {
	return &RuleFactory{}
}

var validCodes = map[anticheat.StrategyCode]bool{
	anticheat.CodeDailyCap:      true,
	anticheat.CodeQualityWeight: true,
	anticheat.CodeTimeDecay:     true,
	anticheat.CodeCrossVerify:   true,
	anticheat.CodeGrowthTrack:   true,
	anticheat.CodeAnomalyDetect: true,
}

// ParseRule converts a JSON string to an EventRule.
func (f *RuleFactory) ParseRule(jsonStr string) (anticheat.EventRule, error) {
	var rj RuleJSON
	if err := json.Unmarshal([]byte(jsonStr), &rj); err != nil {
		return anticheat.EventRule{}, fmt.Errorf("invalid rule JSON: %w", err)
	}
	return f.FromJSON(rj)
}

// FromJSON validates and converts a decoded RuleJSON.
func (f *RuleFactory) FromJSON(rj RuleJSON) (anticheat.EventRule, error) {
	if rj.EventType == "" {
		return anticheat.EventRule{}, fmt.Errorf("event_type is required")
	}
	if rj.DailyCap < 0 {
		return anticheat.EventRule{}, fmt.Errorf("daily_cap must be >= 0")
	}

	codes := make([]anticheat.StrategyCode, 0, len(rj.Strategies))
	seen := make(map[anticheat.StrategyCode]bool)
	for _, raw := range rj.Strategies {
		code := anticheat.StrategyCode(raw)
		if !validCodes[code] {
			return anticheat.EventRule{}, fmt.Errorf("unknown strategy code %q", raw)
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	// Flags imply their strategies; a cap without AS-01 would never fire.
	implied := map[anticheat.StrategyCode]bool{
		anticheat.CodeDailyCap:      rj.DailyCap > 0,
		anticheat.CodeQualityWeight: rj.QualityWeighted,
		anticheat.CodeCrossVerify:   rj.RequiresVerification,
	}
	for code, want := range implied {
		if want && !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}

	return anticheat.EventRule{
		EventType:            rj.EventType,
		Strategies:           codes,
		DailyCap:             rj.DailyCap,
		QualityWeighted:      rj.QualityWeighted,
		RequiresVerification: rj.RequiresVerification,
	}, nil
}

// ToJSON renders a rule back to its JSON definition (for persistence and
// the admin API).
func (f *RuleFactory) ToJSON(rule anticheat.EventRule) (string, error) {
	strategies := make([]string, len(rule.Strategies))
	for i, c := range rule.Strategies {
		strategies[i] = string(c)
	}
	raw, err := json.Marshal(RuleJSON{
		EventType:            rule.EventType,
		Strategies:           strategies,
		DailyCap:             rule.DailyCap,
		QualityWeighted:      rule.QualityWeighted,
		RequiresVerification: rule.RequiresVerification,
	})
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// LoadAll parses a map of event_type -> JSON definitions (as returned by
// the store) into rules, skipping invalid entries and reporting them.
func (f *RuleFactory) LoadAll(defs map[string]string) (rules []anticheat.EventRule, invalid []string) {
	for eventType, jsonStr := range defs {
		rule, err := f.ParseRule(jsonStr)
		if err != nil {
			invalid = append(invalid, eventType)
			continue
		}
		rules = append(rules, rule)
	}
	return rules, invalid
}
