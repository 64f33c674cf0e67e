package anticheat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// CROSS-VERIFICATION TESTS
// =============================================================================

func verifyRules() *anticheat.Rules {
	rules := anticheat.NewRules()
	rules.Upsert(anticheat.EventRule{EventType: "buddy_checkin", RequiresVerification: true})
	return rules
}

func buddyRequest() anticheat.AwardRequest {
	req := request("u1", "buddy_checkin", 15)
	req.CounterpartUserID = "u2"
	req.BehaviorID = "walk-20260314"
	return req
}

func TestCrossVerify_MissingCounterpartIsRejected(t *testing.T) {
	// GIVEN: A verified event with no counterpart named
	// WHEN: Evaluating
	// THEN: PENDING with the "pick a partner" message, nothing stored

	strat, _ := newVerifyStrategy(verifyRules())

	req := request("u1", "buddy_checkin", 15)
	result, err := strat.Evaluate(ctx(), req)
	require.NoError(t, err)
	assert.Equal(t, anticheat.VerdictPending, result.Verdict)
	assert.Equal(t, "无法确认互动对象，请选择伙伴后重新提交", result.Reason)

	// A later confirm attempt finds nothing to confirm.
	ok, err := strat.Confirm(ctx(), "u2", "u1", "buddy_checkin", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossVerify_FirstSubmissionGoesPending(t *testing.T) {
	// GIVEN: No prior record for the pair
	// WHEN: Evaluating
	// THEN: PENDING, zero points, awaiting-confirmation message

	strat, _ := newVerifyStrategy(verifyRules())

	result, err := strat.Evaluate(ctx(), buddyRequest())
	require.NoError(t, err)
	assert.Equal(t, anticheat.VerdictPending, result.Verdict)
	assert.Equal(t, 0, result.AdjustedPoints)
	assert.Equal(t, "等待对方确认中", result.Reason)
}

func TestCrossVerify_ConfirmThenResubmitAwards(t *testing.T) {
	// GIVEN: A pending record confirmed by the counterpart
	// WHEN: The original user resubmits the same behavior
	// THEN: ALLOW with full points

	strat, _ := newVerifyStrategy(verifyRules())
	req := buddyRequest()

	_, err := strat.Evaluate(ctx(), req)
	require.NoError(t, err)

	ok, err := strat.Confirm(ctx(), "u2", "u1", "buddy_checkin", "walk-20260314")
	require.NoError(t, err)
	assert.True(t, ok)

	result, err := strat.Evaluate(ctx(), req)
	require.NoError(t, err)
	assert.Equal(t, anticheat.VerdictAllow, result.Verdict)
	assert.Equal(t, 15, result.AdjustedPoints)
}

func TestCrossVerify_ConfirmIsIdempotent(t *testing.T) {
	// GIVEN: An already-confirmed record
	// WHEN: The counterpart confirms again
	// THEN: Success both times, exactly one audit entry

	strat, audit := newVerifyStrategy(verifyRules())

	_, err := strat.Evaluate(ctx(), buddyRequest())
	require.NoError(t, err)

	ok, err := strat.Confirm(ctx(), "u2", "u1", "buddy_checkin", "walk-20260314")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = strat.Confirm(ctx(), "u2", "u1", "buddy_checkin", "walk-20260314")
	require.NoError(t, err)
	assert.True(t, ok)

	entries, err := audit.Query(ctx(), anticheat.AuditFilter{
		Actions: []anticheat.AuditAction{anticheat.AuditConfirmed},
	})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCrossVerify_WrongConfirmerIsRejected(t *testing.T) {
	// GIVEN: A pending record naming u2 as counterpart
	// WHEN: u3 tries to confirm
	// THEN: No confirmation happens

	strat, _ := newVerifyStrategy(verifyRules())

	_, err := strat.Evaluate(ctx(), buddyRequest())
	require.NoError(t, err)

	ok, err := strat.Confirm(ctx(), "u3", "u1", "buddy_checkin", "walk-20260314")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCrossVerify_DistinctBehaviorsAreIndependent(t *testing.T) {
	// GIVEN: One behavior confirmed between a pair
	// WHEN: The same pair submits a different behavior_id
	// THEN: The new behavior starts PENDING

	strat, _ := newVerifyStrategy(verifyRules())
	req := buddyRequest()

	_, err := strat.Evaluate(ctx(), req)
	require.NoError(t, err)
	_, err = strat.Confirm(ctx(), "u2", "u1", "buddy_checkin", "walk-20260314")
	require.NoError(t, err)

	other := req
	other.BehaviorID = "walk-20260315"
	result, err := strat.Evaluate(ctx(), other)
	require.NoError(t, err)
	assert.Equal(t, anticheat.VerdictPending, result.Verdict)
}

func TestCrossVerify_UnverifiedEventPassesThrough(t *testing.T) {
	// GIVEN: An event without the verification requirement
	// WHEN: Evaluating
	// THEN: Pass-through, no record created

	rules := anticheat.NewRules()
	rules.Upsert(anticheat.EventRule{EventType: "mood_log"})
	strat, _ := newVerifyStrategy(rules)

	result, err := strat.Evaluate(ctx(), request("u1", "mood_log", 5))
	require.NoError(t, err)
	assert.Equal(t, anticheat.VerdictAllow, result.Verdict)
	assert.Equal(t, 5, result.AdjustedPoints)
}
