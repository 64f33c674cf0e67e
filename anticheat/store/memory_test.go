package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/points-engine/anticheat"
	"github.com/warp/points-engine/anticheat/store"
)

func ts(sec int) time.Time {
	return time.Date(2026, time.March, 14, 10, 0, sec, 0, time.UTC)
}

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestMemoryCounters_IncrementAndReset(t *testing.T) {
	ctx := context.Background()
	counters := store.NewMemoryCounters()
	key := anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-14"}

	for want := 1; want <= 3; want++ {
		got, err := counters.Increment(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, counters.Reset(ctx, key))
	got, err := counters.Get(ctx, key)
	require.NoError(t, err)
	assert.Zero(t, got)
}

func TestMemoryCounters_KeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	counters := store.NewMemoryCounters()

	_, err := counters.Increment(ctx, anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-14"})
	require.NoError(t, err)

	other, err := counters.Get(ctx, anticheat.CounterKey{UserID: "u1", EventType: "mood_log", Bucket: "2026-03-15"})
	require.NoError(t, err)
	assert.Zero(t, other)
}

// =============================================================================
// PENDING TESTS
// =============================================================================

func pendingKey() anticheat.PendingKey {
	return anticheat.PendingKey{
		UserID:        "u1",
		CounterpartID: "u2",
		EventType:     "buddy_checkin",
		BehaviorID:    "b-1",
	}
}

func TestMemoryPending_Lifecycle(t *testing.T) {
	// GIVEN: A pending record
	// WHEN: The counterpart confirms
	// THEN: State is CONFIRMED and a resubmitted Find sees it

	ctx := context.Background()
	pending := store.NewMemoryPending()

	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{
		Key:       pendingKey(),
		State:     anticheat.StatePending,
		CreatedAt: ts(0),
	}))

	ok, err := pending.Confirm(ctx, pendingKey(), "u2", ts(30))
	require.NoError(t, err)
	assert.True(t, ok)

	rec, found, err := pending.Find(ctx, pendingKey())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, anticheat.StateConfirmed, rec.State)
	assert.Equal(t, ts(30), rec.ConfirmedAt)
}

func TestMemoryPending_PutDoesNotOverwrite(t *testing.T) {
	// GIVEN: A confirmed record
	// WHEN: Put is called again for the same key
	// THEN: The confirmed record survives

	ctx := context.Background()
	pending := store.NewMemoryPending()

	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(0)}))
	_, err := pending.Confirm(ctx, pendingKey(), "u2", ts(10))
	require.NoError(t, err)

	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(20)}))

	rec, _, err := pending.Find(ctx, pendingKey())
	require.NoError(t, err)
	assert.Equal(t, anticheat.StateConfirmed, rec.State)
}

func TestMemoryPending_ConfirmRequiresCounterpart(t *testing.T) {
	ctx := context.Background()
	pending := store.NewMemoryPending()

	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{Key: pendingKey(), State: anticheat.StatePending, CreatedAt: ts(0)}))

	ok, err := pending.Confirm(ctx, pendingKey(), "u3", ts(10))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryPending_DeleteExpiredKeepsConfirmed(t *testing.T) {
	// GIVEN: One stale pending record and one confirmed record
	// WHEN: Sweeping with a cutoff after both
	// THEN: Only the pending one is removed

	ctx := context.Background()
	pending := store.NewMemoryPending()

	stale := pendingKey()
	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{Key: stale, State: anticheat.StatePending, CreatedAt: ts(0)}))

	confirmed := pendingKey()
	confirmed.BehaviorID = "b-2"
	require.NoError(t, pending.Put(ctx, anticheat.PendingRecord{Key: confirmed, State: anticheat.StatePending, CreatedAt: ts(0)}))
	_, err := pending.Confirm(ctx, confirmed, "u2", ts(5))
	require.NoError(t, err)

	removed, err := pending.DeleteExpired(ctx, ts(59))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, found, err := pending.Find(ctx, stale)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = pending.Find(ctx, confirmed)
	require.NoError(t, err)
	assert.True(t, found)
}

// =============================================================================
// WINDOW TESTS
// =============================================================================

func TestMemoryWindows_ObserveCountsInWindow(t *testing.T) {
	ctx := context.Background()
	windows := store.NewMemoryWindows()
	key := anticheat.WindowKey{UserID: "u1", EventType: "habit_clockin"}

	for i := 0; i < 5; i++ {
		count, err := windows.Observe(ctx, key, ts(i), ts(i).Add(-60*time.Second))
		require.NoError(t, err)
		assert.Equal(t, i+1, count)
	}

	// 120s later the earlier observations fall out of the window.
	count, err := windows.Observe(ctx, key, ts(0).Add(120*time.Second), ts(0).Add(60*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestMemoryWindows_Prune(t *testing.T) {
	ctx := context.Background()
	windows := store.NewMemoryWindows()
	key := anticheat.WindowKey{UserID: "u1", EventType: "habit_clockin"}

	for i := 0; i < 3; i++ {
		_, err := windows.Observe(ctx, key, ts(i), ts(i).Add(-60*time.Second))
		require.NoError(t, err)
	}

	pruned, err := windows.Prune(ctx, ts(10))
	require.NoError(t, err)
	assert.Equal(t, 3, pruned)
}

// =============================================================================
// AUDIT TESTS
// =============================================================================

func TestMemoryAudit_QueryFilters(t *testing.T) {
	ctx := context.Background()
	audit := store.NewMemoryAudit()

	entries := []anticheat.AuditEntry{
		{OccurredAt: ts(0), UserID: "u1", EventType: "daily_checkin", Action: anticheat.AuditCapped},
		{OccurredAt: ts(1), UserID: "u2", EventType: "habit_clockin", Action: anticheat.AuditFlagged},
		{OccurredAt: ts(2), UserID: "u1", EventType: "habit_clockin", Action: anticheat.AuditFlagged},
	}
	for _, e := range entries {
		require.NoError(t, audit.Append(ctx, e))
	}

	u1 := "u1"
	got, err := audit.Query(ctx, anticheat.AuditFilter{
		UserID:  &u1,
		Actions: []anticheat.AuditAction{anticheat.AuditFlagged},
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "habit_clockin", got[0].EventType)
	assert.NotEmpty(t, got[0].ID, "append assigns an ID when missing")
}

func TestMemoryAudit_QueryOrdersNewestFirst(t *testing.T) {
	ctx := context.Background()
	audit := store.NewMemoryAudit()

	for i := 0; i < 3; i++ {
		require.NoError(t, audit.Append(ctx, anticheat.AuditEntry{
			OccurredAt: ts(i), UserID: "u1", Action: anticheat.AuditFlagged,
		}))
	}

	got, err := audit.Query(ctx, anticheat.AuditFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ts(2), got[0].OccurredAt)
	assert.Equal(t, ts(1), got[1].OccurredAt)
}
