package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/anticheat"
	"github.com/warp/points-engine/store/sqlite"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func ts(sec int) time.Time {
	return time.Date(2026, time.March, 14, 10, 0, sec, 0, time.UTC)
}

func pendingKey() anticheat.PendingKey {
	return anticheat.PendingKey{
		UserID:        "u1",
		CounterpartID: "u2",
		EventType:     "buddy_checkin",
		BehaviorID:    "b-1",
	}
}

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestSQLiteCounters_IncrementIsSequential(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-14"}

	for want := 1; want <= 5; want++ {
		got, err := store.Increment(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 5, got)
}

func TestSQLiteCounters_GetMissingIsZero(t *testing.T) {
	store := newTestStore(t)

	got, err := store.Get(context.Background(),
		anticheat.CounterKey{UserID: "nobody", EventType: "mood_log", Bucket: "2026-03-14"})
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestSQLiteCounters_LifetimeAndDailyBucketsCoexist(t *testing.T) {
	// GIVEN: The same (user, event) with a daily bucket and an empty
	//        lifetime bucket
	// WHEN: Incrementing each
	// THEN: They count independently

	store := newTestStore(t)
	ctx := context.Background()

	daily := anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-14"}
	lifetime := anticheat.CounterKey{UserID: "u1", EventType: "mood_log"}

	_, err := store.Increment(ctx, daily)
	require.NoError(t, err)
	_, err = store.Increment(ctx, lifetime)
	require.NoError(t, err)
	n, err := store.Increment(ctx, lifetime)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Get(ctx, daily)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestSQLiteCounters_Reset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-14"}

	_, err := store.Increment(ctx, key)
	require.NoError(t, err)
	require.NoError(t, store.Reset(ctx, key))

	got, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, got)
}

// =============================================================================
// PENDING TESTS
// =============================================================================

func TestSQLitePending_ConfirmLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key:       pendingKey(),
		State:     anticheat.StatePending,
		CreatedAt: ts(0),
	}))

	ok, err := store.Confirm(ctx, pendingKey(), "u2", ts(30))
	require.NoError(t, err)
	assert.True(t, ok)

	rec, found, err := store.Find(ctx, pendingKey())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, anticheat.StateConfirmed, rec.State)
	assert.True(t, rec.ConfirmedAt.Equal(ts(30)))
}

func TestSQLitePending_ConfirmTwiceStaysTrue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(0),
	}))

	ok, err := store.Confirm(ctx, pendingKey(), "u2", ts(10))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Confirm(ctx, pendingKey(), "u2", ts(20))
	require.NoError(t, err)
	assert.True(t, ok, "second confirm is an idempotent success")

	// The first confirmation timestamp survives.
	rec, _, err := store.Find(ctx, pendingKey())
	require.NoError(t, err)
	assert.True(t, rec.ConfirmedAt.Equal(ts(10)))
}

func TestSQLitePending_ConfirmMissingIsFalse(t *testing.T) {
	store := newTestStore(t)

	ok, err := store.Confirm(context.Background(), pendingKey(), "u2", ts(0))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLitePending_PutIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(0),
	}))
	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(99),
	}))

	rec, _, err := store.Find(ctx, pendingKey())
	require.NoError(t, err)
	assert.True(t, rec.CreatedAt.Equal(ts(0)), "first record wins")
}

func TestSQLitePending_DeleteExpired(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	old := pendingKey()
	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key: old, State: anticheat.StatePending, CreatedAt: ts(0),
	}))

	fresh := pendingKey()
	fresh.BehaviorID = "b-2"
	require.NoError(t, store.Put(ctx, anticheat.PendingRecord{
		Key: fresh, State: anticheat.StatePending, CreatedAt: ts(50),
	}))

	removed, err := store.DeleteExpired(ctx, ts(30))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := store.Find(ctx, fresh)
	require.NoError(t, err)
	assert.True(t, found)
}

// =============================================================================
// WINDOW TESTS
// =============================================================================

func TestSQLiteWindows_ObserveCountsAndPrunes(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	key := anticheat.WindowKey{UserID: "u1", EventType: "habit_clockin"}

	for i := 0; i < 4; i++ {
		count, err := store.Observe(ctx, key, ts(i), ts(i).Add(-60*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}

	// Two minutes later only the new observation is inside the window.
	late := ts(0).Add(120 * time.Second)
	count, err := store.Observe(ctx, key, late, late.Add(-60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestSQLiteWindows_GlobalPrune(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		key := anticheat.WindowKey{UserID: "u1", EventType: "habit_clockin"}
		_, err := store.Observe(ctx, key, ts(i), ts(i).Add(-60*time.Second))
		require.NoError(t, err)
	}

	pruned, err := store.Prune(ctx, ts(10))
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)
}

// =============================================================================
// AUDIT TESTS
// =============================================================================

func TestSQLiteAudit_AppendAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, anticheat.AuditEntry{
		OccurredAt:   ts(0),
		UserID:       "u1",
		EventType:    "daily_checkin",
		StrategyCode: anticheat.CodeDailyCap,
		Action:       anticheat.AuditCapped,
		Payload:      map[string]any{"base_points": 10},
	}))
	require.NoError(t, store.Append(ctx, anticheat.AuditEntry{
		OccurredAt:   ts(5),
		UserID:       "u1",
		EventType:    "habit_clockin",
		StrategyCode: anticheat.CodeAnomalyDetect,
		Action:       anticheat.AuditFlagged,
	}))

	got, err := store.Query(ctx, anticheat.AuditFilter{
		Actions: []anticheat.AuditAction{anticheat.AuditFlagged},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "habit_clockin", got[0].EventType)
	assert.NotEmpty(t, got[0].ID)

	all, err := store.Query(ctx, anticheat.AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.True(t, all[0].OccurredAt.After(all[1].OccurredAt), "newest first")
	assert.EqualValues(t, 10, all[1].Payload["base_points"])
}

func TestSQLiteAudit_QueryLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Append(ctx, anticheat.AuditEntry{
			OccurredAt: ts(i), UserID: "u1", Action: anticheat.AuditFlagged,
		}))
	}

	got, err := store.Query(ctx, anticheat.AuditFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

// =============================================================================
// EVENT RULE TESTS
// =============================================================================

func TestSQLiteEventRules_SaveAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEventRule(ctx, "mood_log", `{"event_type":"mood_log","daily_cap":3}`))
	require.NoError(t, store.SaveEventRule(ctx, "mood_log", `{"event_type":"mood_log","daily_cap":5}`))

	rules, err := store.ListEventRules(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Contains(t, rules["mood_log"], `"daily_cap":5`)
}
