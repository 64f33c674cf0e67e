/*
scheduler.go - Background janitor for expired verification and window state

PURPOSE:
  Periodically removes stale state that the request path never revisits:
  - Pending cross-verification records older than the confirmation TTL.
  - Anomaly window observations older than the detection window.

KEY CONCEPTS:
  Pending TTL: a peer event that nobody confirms stays PENDING forever
  from the counterpart's point of view. The janitor expires those records
  so a user can resubmit with a different partner after the TTL passes.

  Window pruning: Observe() already prunes per key on the hot path; the
  janitor clears keys that stopped receiving events entirely.

USAGE:
  janitor := api.NewJanitor(pending, windows, 24*time.Hour, log)
  janitor.Start()
  defer janitor.Stop()
*/
package api

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// JANITOR
// =============================================================================

// Janitor sweeps expired pending verifications and stale anomaly windows.
type Janitor struct {
	pending    anticheat.PendingStore
	windows    anticheat.WindowStore
	pendingTTL time.Duration
	log        *zap.Logger
	cron       *cron.Cron
}

// NewJanitor creates a janitor. pendingTTL bounds how long an unconfirmed
// verification record survives.
func NewJanitor(pending anticheat.PendingStore, windows anticheat.WindowStore, pendingTTL time.Duration, log *zap.Logger) *Janitor {
	if log == nil {
		log = zap.NewNop()
	}
	return &Janitor{
		pending:    pending,
		windows:    windows,
		pendingTTL: pendingTTL,
		log:        log,
		cron:       cron.New(),
	}
}

// Start schedules the hourly sweep. Safe to call once.
func (j *Janitor) Start() error {
	_, err := j.cron.AddFunc("@hourly", func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		j.Sweep(ctx)
	})
	if err != nil {
		return err
	}
	j.cron.Start()
	j.log.Info("janitor started", zap.Duration("pending_ttl", j.pendingTTL))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep to finish.
func (j *Janitor) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
	j.log.Info("janitor stopped")
}

// Sweep runs one pass immediately. Returns the number of expired pending
// records and pruned window observations. Errors are logged, not fatal:
// the next sweep retries.
func (j *Janitor) Sweep(ctx context.Context) (expired, pruned int) {
	now := time.Now()

	if j.pending != nil {
		n, err := j.pending.DeleteExpired(ctx, now.Add(-j.pendingTTL))
		if err != nil {
			j.log.Warn("pending sweep failed", zap.Error(err))
		} else {
			expired = n
		}
	}

	if j.windows != nil {
		n, err := j.windows.Prune(ctx, now.Add(-anticheat.AnomalyWindow))
		if err != nil {
			j.log.Warn("window prune failed", zap.Error(err))
		} else {
			pruned = n
		}
	}

	if expired > 0 || pruned > 0 {
		j.log.Info("janitor sweep complete",
			zap.Int("expired_pending", expired),
			zap.Int("pruned_window", pruned))
	}
	return expired, pruned
}
