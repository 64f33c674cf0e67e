package anticheat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestRules_StrategiesAreCanonicallyOrdered(t *testing.T) {
	// GIVEN: A rule listing strategies out of order
	// WHEN: Asking for the event's strategies
	// THEN: They come back in canonical order

	rules := anticheat.NewRules()
	rules.Upsert(anticheat.EventRule{
		EventType: "insight_share",
		Strategies: []anticheat.StrategyCode{
			anticheat.CodeAnomalyDetect,
			anticheat.CodeDailyCap,
			anticheat.CodeQualityWeight,
		},
	})

	got := rules.StrategiesFor("insight_share")
	assert.Equal(t, []anticheat.StrategyCode{
		anticheat.CodeDailyCap,
		anticheat.CodeQualityWeight,
		anticheat.CodeAnomalyDetect,
	}, got)
}

func TestRules_UnknownEventHasNoStrategies(t *testing.T) {
	// GIVEN: No rule for the event type
	// WHEN: Asking for strategies
	// THEN: nil (no scrutiny)

	rules := anticheat.NewRules()
	assert.Nil(t, rules.StrategiesFor("never_configured"))
}

func TestRules_UpsertReplaces(t *testing.T) {
	// GIVEN: An existing rule
	// WHEN: Upserting the same event type with a new cap
	// THEN: The new rule wins

	rules := anticheat.NewRules()
	rules.Upsert(anticheat.EventRule{EventType: "mood_log", DailyCap: 3})
	rules.Upsert(anticheat.EventRule{EventType: "mood_log", DailyCap: 5})

	assert.Equal(t, 5, rules.DailyCap("mood_log"))
}

func TestRules_CappedEvents(t *testing.T) {
	// GIVEN: A mix of capped and uncapped rules
	// WHEN: Listing capped events
	// THEN: Only the capped ones appear

	rules := anticheat.NewRules()
	rules.Upsert(anticheat.EventRule{EventType: "daily_checkin", DailyCap: 1})
	rules.Upsert(anticheat.EventRule{EventType: "insight_share"})

	capped := rules.CappedEvents()
	assert.Len(t, capped, 1)
	assert.Equal(t, "daily_checkin", capped[0].EventType)
}

func TestDefaultRules_CoverPlatformEvents(t *testing.T) {
	// GIVEN: The built-in defaults
	// WHEN: Inspecting key events
	// THEN: Caps and flags match the platform configuration

	rules := anticheat.DefaultRules()

	assert.Equal(t, 1, rules.DailyCap("daily_checkin"))
	assert.Equal(t, 5, rules.DailyCap("habit_clockin"))
	assert.True(t, rules.QualityWeighted("insight_share"))
	assert.True(t, rules.RequiresVerification("buddy_checkin"))
	assert.False(t, rules.RequiresVerification("daily_checkin"))
}
