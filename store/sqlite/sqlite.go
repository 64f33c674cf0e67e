/*
Package sqlite provides a SQLite-backed implementation of the anticheat
storage interfaces.

PURPOSE:
  Implements CounterStore, PendingStore, WindowStore and AuditLog using
  SQLite. In production the same patterns apply to PostgreSQL - only minor
  SQL dialect differences.

KEY TABLES:
  counters:              (user, event, bucket) -> count. Daily-cap rows use
                         a date bucket, decay rows an empty bucket.
  pending_verifications: Cross-verification state machine records
  anomaly_events:        Sliding-window timestamps for burst detection
  audit_entries:         Append-only record of blocked/flagged evaluations
  event_rules:           JSON event-rule definitions (admin-managed)

ATOMICITY:
  Counter increments use INSERT .. ON CONFLICT DO UPDATE under the store
  mutex, so two concurrent requests cannot both read a pre-cap value.
  Confirm transitions use a single conditional UPDATE for the same reason.

WAL MODE:
  SQLite is opened with WAL for better read concurrency and crash
  recovery.

USAGE:
  st, err := sqlite.New("./data/anticheat.db")
  if err != nil {
      log.Fatal(err)
  }
  defer st.Close()

SEE ALSO:
  - anticheat/store.go: Interface definitions
  - anticheat/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/warp/points-engine/anticheat"
)

// Store implements all anticheat storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var (
	_ anticheat.CounterStore = (*Store)(nil)
	_ anticheat.PendingStore = (*Store)(nil)
	_ anticheat.WindowStore  = (*Store)(nil)
	_ anticheat.AuditLog     = (*Store)(nil)
)

// New creates a SQLite store at dbPath. Use ":memory:" for an in-memory
// database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps the in-memory database stable and
	// serializes writers, which SQLite wants anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS counters (
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		bucket TEXT NOT NULL DEFAULT '',
		count INTEGER NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (user_id, event_type, bucket)
	);

	CREATE TABLE IF NOT EXISTS pending_verifications (
		user_id TEXT NOT NULL,
		counterpart_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		behavior_id TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at TEXT NOT NULL,
		confirmed_at TEXT,
		PRIMARY KEY (user_id, counterpart_id, event_type, behavior_id)
	);

	CREATE INDEX IF NOT EXISTS idx_pending_state_created
		ON pending_verifications(state, created_at);

	CREATE TABLE IF NOT EXISTS anomaly_events (
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		observed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_anomaly_key_time
		ON anomaly_events(user_id, event_type, observed_at);

	CREATE TABLE IF NOT EXISTS audit_entries (
		id TEXT PRIMARY KEY,
		occurred_at TEXT NOT NULL,
		user_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		strategy_code TEXT NOT NULL,
		action TEXT NOT NULL,
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_user_time
		ON audit_entries(user_id, occurred_at DESC);
	CREATE INDEX IF NOT EXISTS idx_audit_action_time
		ON audit_entries(action, occurred_at DESC);

	CREATE TABLE IF NOT EXISTS event_rules (
		event_type TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COUNTER STORE
// =============================================================================

// Increment atomically adds one and returns the new value.
func (s *Store) Increment(ctx context.Context, key anticheat.CounterKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO counters (user_id, event_type, bucket, count, updated_at)
		VALUES (?, ?, ?, 1, ?)
		ON CONFLICT(user_id, event_type, bucket)
		DO UPDATE SET count = count + 1, updated_at = excluded.updated_at`,
		key.UserID, key.EventType, key.Bucket, timeString(time.Now()))
	if err != nil {
		return 0, storeErr("increment counter", err)
	}
	return s.counterLocked(ctx, key)
}

// Get returns the current counter value (0 if absent).
func (s *Store) Get(ctx context.Context, key anticheat.CounterKey) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counterLocked(ctx, key)
}

func (s *Store) counterLocked(ctx context.Context, key anticheat.CounterKey) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count FROM counters WHERE user_id = ? AND event_type = ? AND bucket = ?`,
		key.UserID, key.EventType, key.Bucket).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, storeErr("read counter", err)
	}
	return count, nil
}

// Reset removes a counter.
func (s *Store) Reset(ctx context.Context, key anticheat.CounterKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM counters WHERE user_id = ? AND event_type = ? AND bucket = ?`,
		key.UserID, key.EventType, key.Bucket)
	if err != nil {
		return storeErr("reset counter", err)
	}
	return nil
}

// =============================================================================
// PENDING STORE
// =============================================================================

func (s *Store) Find(ctx context.Context, key anticheat.PendingKey) (anticheat.PendingRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		rec         anticheat.PendingRecord
		state       string
		createdAt   string
		confirmedAt sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT state, created_at, confirmed_at FROM pending_verifications
		WHERE user_id = ? AND counterpart_id = ? AND event_type = ? AND behavior_id = ?`,
		key.UserID, key.CounterpartID, key.EventType, key.BehaviorID).
		Scan(&state, &createdAt, &confirmedAt)
	if err == sql.ErrNoRows {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, storeErr("read pending record", err)
	}

	rec.Key = key
	rec.State = anticheat.PendingState(state)
	rec.CreatedAt = parseTime(createdAt)
	if confirmedAt.Valid {
		rec.ConfirmedAt = parseTime(confirmedAt.String)
	}
	return rec, true, nil
}

func (s *Store) Put(ctx context.Context, rec anticheat.PendingRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// INSERT OR IGNORE keeps repeated evaluations idempotent: the first
	// pending record for an interaction wins.
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO pending_verifications
			(user_id, counterpart_id, event_type, behavior_id, state, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Key.UserID, rec.Key.CounterpartID, rec.Key.EventType, rec.Key.BehaviorID,
		string(rec.State), timeString(rec.CreatedAt))
	if err != nil {
		return storeErr("create pending record", err)
	}
	return nil
}

// Confirm transitions the record to confirmed with a single conditional
// UPDATE, then re-reads to distinguish "already confirmed" from "no match".
func (s *Store) Confirm(ctx context.Context, key anticheat.PendingKey, confirmerID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if key.CounterpartID != confirmerID {
		return false, nil
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_verifications
		SET state = ?, confirmed_at = ?
		WHERE user_id = ? AND counterpart_id = ? AND event_type = ? AND behavior_id = ?
		  AND state = ?`,
		string(anticheat.StateConfirmed), timeString(at),
		key.UserID, key.CounterpartID, key.EventType, key.BehaviorID,
		string(anticheat.StatePending))
	if err != nil {
		return false, storeErr("confirm pending record", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return true, nil
	}

	// Nothing transitioned: either already confirmed (idempotent success)
	// or no such record.
	var state string
	err = s.db.QueryRowContext(ctx, `
		SELECT state FROM pending_verifications
		WHERE user_id = ? AND counterpart_id = ? AND event_type = ? AND behavior_id = ?`,
		key.UserID, key.CounterpartID, key.EventType, key.BehaviorID).Scan(&state)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, storeErr("confirm re-read", err)
	}
	return anticheat.PendingState(state) == anticheat.StateConfirmed, nil
}

func (s *Store) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM pending_verifications WHERE state = ? AND created_at < ?`,
		string(anticheat.StatePending), timeString(cutoff))
	if err != nil {
		return 0, storeErr("delete expired pending", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// WINDOW STORE
// =============================================================================

func (s *Store) Observe(ctx context.Context, key anticheat.WindowKey, at, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO anomaly_events (user_id, event_type, observed_at) VALUES (?, ?, ?)`,
		key.UserID, key.EventType, timeString(at)); err != nil {
		return 0, storeErr("record window event", err)
	}

	if _, err := s.db.ExecContext(ctx, `
		DELETE FROM anomaly_events
		WHERE user_id = ? AND event_type = ? AND observed_at <= ?`,
		key.UserID, key.EventType, timeString(cutoff)); err != nil {
		return 0, storeErr("prune window", err)
	}

	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM anomaly_events WHERE user_id = ? AND event_type = ?`,
		key.UserID, key.EventType).Scan(&count)
	if err != nil {
		return 0, storeErr("count window", err)
	}
	return count, nil
}

func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM anomaly_events WHERE observed_at <= ?`, timeString(cutoff))
	if err != nil {
		return 0, storeErr("prune windows", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// =============================================================================
// AUDIT LOG
// =============================================================================

func (s *Store) Append(ctx context.Context, entry anticheat.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	payload, err := json.Marshal(entry.Payload)
	if err != nil {
		return storeErr("marshal audit payload", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_entries
			(id, occurred_at, user_id, event_type, strategy_code, action, payload_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, timeString(entry.OccurredAt), entry.UserID, entry.EventType,
		string(entry.StrategyCode), string(entry.Action), string(payload))
	if err != nil {
		return storeErr("append audit entry", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, filter anticheat.AuditFilter) ([]anticheat.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `SELECT id, occurred_at, user_id, event_type, strategy_code, action, payload_json
		FROM audit_entries WHERE 1=1`
	var args []any

	if filter.UserID != nil {
		query += ` AND user_id = ?`
		args = append(args, *filter.UserID)
	}
	if filter.EventType != nil {
		query += ` AND event_type = ?`
		args = append(args, *filter.EventType)
	}
	if len(filter.Actions) > 0 {
		query += ` AND action IN (?` + strings.Repeat(",?", len(filter.Actions)-1) + `)`
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}
	if filter.From != nil {
		query += ` AND occurred_at >= ?`
		args = append(args, timeString(*filter.From))
	}
	if filter.To != nil {
		query += ` AND occurred_at <= ?`
		args = append(args, timeString(*filter.To))
	}
	query += ` ORDER BY occurred_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query audit entries", err)
	}
	defer rows.Close()

	var out []anticheat.AuditEntry
	for rows.Next() {
		var (
			e           anticheat.AuditEntry
			occurredAt  string
			strategy    string
			action      string
			payloadJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &occurredAt, &e.UserID, &e.EventType, &strategy, &action, &payloadJSON); err != nil {
			return nil, storeErr("scan audit entry", err)
		}
		e.OccurredAt = parseTime(occurredAt)
		e.StrategyCode = anticheat.StrategyCode(strategy)
		e.Action = anticheat.AuditAction(action)
		if payloadJSON.Valid && payloadJSON.String != "" {
			_ = json.Unmarshal([]byte(payloadJSON.String), &e.Payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// =============================================================================
// EVENT RULES
// =============================================================================

// SaveEventRule persists a JSON event-rule definition.
func (s *Store) SaveEventRule(ctx context.Context, eventType, configJSON string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO event_rules (event_type, config_json, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(event_type) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at = excluded.updated_at`,
		eventType, configJSON, timeString(time.Now()))
	if err != nil {
		return storeErr("save event rule", err)
	}
	return nil
}

// ListEventRules returns all persisted rule definitions as JSON strings.
func (s *Store) ListEventRules(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT event_type, config_json FROM event_rules`)
	if err != nil {
		return nil, storeErr("list event rules", err)
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var eventType, configJSON string
		if err := rows.Scan(&eventType, &configJSON); err != nil {
			return nil, storeErr("scan event rule", err)
		}
		out[eventType] = configJSON
	}
	return out, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

// timeLayout is fixed-width (no trimmed fractional zeros) so stored
// timestamps compare correctly as strings in SQL.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func timeString(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %v", op, anticheat.ErrStoreUnavailable, err)
}
