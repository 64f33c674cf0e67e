/*
store.go - Persistence interfaces for strategy state

PURPOSE:
  Defines the interfaces between the strategies and their backing stores.
  In production the stores are database-backed; tests and dev mode use the
  in-memory implementations in anticheat/store.

KEY INTERFACES:
  CounterStore: Atomic integer counters (daily caps, decay attempt counts)
  PendingStore: Cross-verification state machine records
  WindowStore:  Sliding-window timestamps for burst detection
  AuditLog:     Append-only record of blocked and flagged evaluations

OWNERSHIP CONTRACT:
  Only the owning strategy mutates its own keys:
  - DailyCap owns counters with a day bucket
  - TimeDecay owns counters with an empty bucket
  - CrossVerify owns pending records
  - AnomalyDetect owns windows
  The pipeline and other strategies never touch raw counter state.

ATOMICITY:
  Increment must return the post-increment value atomically: two concurrent
  same-day requests for a capped event must not both observe a count below
  the cap. Confirm is an atomic read-then-transition for the same reason.

IMPLEMENTATIONS:
  - anticheat/store/memory.go: In-memory (tests, dev)
  - store/sqlite/sqlite.go:    SQLite with WAL (production)

SEE ALSO:
  - dailycap.go, decay.go, crossverify.go, anomaly.go: Consumers
*/
package anticheat

import (
	"context"
	"time"
)

// =============================================================================
// COUNTER STORE - Atomic integer counters
// =============================================================================

// CounterKey identifies one counter. Bucket is a calendar day ("2006-01-02")
// for daily-cap counters and empty for lifetime decay counters.
type CounterKey struct {
	UserID    string
	EventType string
	Bucket    string
}

// DayBucket formats a timestamp as a counter day bucket using the process
// local calendar date.
func DayBucket(at time.Time) string {
	return at.Format("2006-01-02")
}

// CounterStore persists monotonically non-decreasing counters. Counters only
// go down via Reset (daily rollover sweeps, admin intervention).
type CounterStore interface {
	// Increment atomically adds one and returns the new value.
	Increment(ctx context.Context, key CounterKey) (int, error)

	// Get returns the current value (0 if the counter does not exist).
	Get(ctx context.Context, key CounterKey) (int, error)

	// Reset removes a counter.
	Reset(ctx context.Context, key CounterKey) error
}

// =============================================================================
// PENDING STORE - Cross-verification records
// =============================================================================

// PendingState is the cross-verification state machine: records are created
// PENDING and transition once to CONFIRMED. There is no reverse edge.
type PendingState string

const (
	StatePending   PendingState = "pending"
	StateConfirmed PendingState = "confirmed"
)

// PendingKey identifies one cross-verification interaction.
type PendingKey struct {
	UserID        string
	CounterpartID string
	EventType     string
	BehaviorID    string
}

// PendingRecord is one cross-verification record.
type PendingRecord struct {
	Key         PendingKey
	State       PendingState
	CreatedAt   time.Time
	ConfirmedAt time.Time
}

// PendingStore persists cross-verification records.
type PendingStore interface {
	// Find returns the record for key, with found=false when none exists.
	Find(ctx context.Context, key PendingKey) (PendingRecord, bool, error)

	// Put creates a record if absent. Existing records are left untouched,
	// so repeated evaluations of the same interaction are idempotent.
	Put(ctx context.Context, rec PendingRecord) error

	// Confirm atomically transitions key to CONFIRMED if the stored
	// counterpart matches confirmerID. Returns true when the record is
	// confirmed after the call (including the already-confirmed no-op),
	// false when no matching record exists.
	Confirm(ctx context.Context, key PendingKey, confirmerID string, at time.Time) (bool, error)

	// DeleteExpired removes PENDING records created before cutoff and
	// returns how many were removed. CONFIRMED records are kept for audit.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)
}

// =============================================================================
// WINDOW STORE - Sliding-window timestamps
// =============================================================================

// WindowKey identifies one burst-detection window.
type WindowKey struct {
	UserID    string
	EventType string
}

// WindowStore persists sliding-window event timestamps.
type WindowStore interface {
	// Observe appends at to the window, drops entries at or before cutoff,
	// and returns the resulting count (including the appended entry).
	Observe(ctx context.Context, key WindowKey, at, cutoff time.Time) (int, error)

	// Prune drops entries at or before cutoff across all windows.
	Prune(ctx context.Context, cutoff time.Time) (int, error)
}

// =============================================================================
// AUDIT LOG - Append-only, tracks blocked and flagged evaluations
// =============================================================================

type AuditAction string

const (
	AuditCapped        AuditAction = "award_capped"
	AuditPendingVerify AuditAction = "award_pending_verification"
	AuditFlagged       AuditAction = "award_flagged_for_review"
	AuditConfirmed     AuditAction = "verification_confirmed"
)

// AuditEntry records one notable pipeline outcome.
type AuditEntry struct {
	ID           string
	OccurredAt   time.Time
	UserID       string
	EventType    string
	StrategyCode StrategyCode
	Action       AuditAction
	Payload      map[string]any
}

// AuditLog stores audit entries. Append-only.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	Query(ctx context.Context, filter AuditFilter) ([]AuditEntry, error)
}

// AuditFilter narrows an audit query. Nil fields match everything.
type AuditFilter struct {
	UserID    *string
	EventType *string
	Actions   []AuditAction
	From      *time.Time
	To        *time.Time
	Limit     int
}
