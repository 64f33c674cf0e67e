/*
crossverify.go - AS-04: Two-party cross-verification

PURPOSE:
  Peer events (buddy check-ins, peer support) hand out points for an
  interaction between two users. Self-reported interactions are cheap to
  fake, so the award stays PENDING until the counterpart confirms it.

STATE MACHINE (per user, counterpart, event_type, behavior_id):
  NONE --evaluate--> PENDING --confirm--> CONFIRMED (terminal)

  - evaluate with no counterpart: PENDING, nothing stored ("无法确认")
  - evaluate, no prior record:    creates PENDING, blocks award
  - confirm by the counterpart:   PENDING -> CONFIRMED, idempotent
  - evaluate after confirmation:  ALLOW, full points

EXPIRY:
  Pending records that are never confirmed expire after a TTL, enforced by
  the janitor sweep rather than at evaluate time. Confirmed records are
  kept; they are the proof the interaction happened.

SEE ALSO:
  - store.go: PendingStore atomicity contract
  - api/scheduler.go: TTL sweep
*/
package anticheat

import (
	"context"
	"fmt"
	"time"
)

// CrossVerifyStrategy blocks peer-event awards until the counterpart
// confirms the interaction (AS-04).
type CrossVerifyStrategy struct {
	Rules   *Rules
	Pending PendingStore
	Audit   AuditLog
}

func NewCrossVerifyStrategy(rules *Rules, pending PendingStore, audit AuditLog) *CrossVerifyStrategy {
	return &CrossVerifyStrategy{Rules: rules, Pending: pending, Audit: audit}
}

func (s *CrossVerifyStrategy) Code() StrategyCode { return CodeCrossVerify }

func (s *CrossVerifyStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	if !s.Rules.RequiresVerification(req.EventType) {
		return passThrough(CodeCrossVerify, req.BasePoints), nil
	}

	if req.CounterpartUserID == "" {
		result := passThrough(CodeCrossVerify, 0)
		result.Verdict = VerdictPending
		result.AdjustedPoints = 0
		result.Reason = msgNoCounterpart
		return result, nil
	}

	key := PendingKey{
		UserID:        req.UserID,
		CounterpartID: req.CounterpartUserID,
		EventType:     req.EventType,
		BehaviorID:    req.BehaviorID,
	}

	rec, found, err := s.Pending.Find(ctx, key)
	if err != nil {
		return StrategyResult{}, fmt.Errorf("pending lookup: %w", err)
	}

	if found && rec.State == StateConfirmed {
		result := passThrough(CodeCrossVerify, req.BasePoints)
		result.Metadata = map[string]any{
			"confirmed_at": rec.ConfirmedAt,
			"confirmed_by": rec.Key.CounterpartID,
		}
		return result, nil
	}

	if !found {
		err := s.Pending.Put(ctx, PendingRecord{
			Key:       key,
			State:     StatePending,
			CreatedAt: req.EffectiveAt(),
		})
		if err != nil {
			return StrategyResult{}, fmt.Errorf("pending create: %w", err)
		}
	}

	result := passThrough(CodeCrossVerify, 0)
	result.Verdict = VerdictPending
	result.AdjustedPoints = 0
	result.Reason = msgAwaitingConfirm
	result.Metadata = map[string]any{
		"counterpart_user_id": req.CounterpartUserID,
		"behavior_id":         req.BehaviorID,
	}
	return result, nil
}

// Confirm transitions a pending record to CONFIRMED on behalf of the
// counterpart. Returns true when the record is confirmed after the call;
// confirming twice is a no-op success. Returns false when no matching
// pending record exists or the confirmer is not the expected counterpart.
func (s *CrossVerifyStrategy) Confirm(ctx context.Context, confirmerID, originalUserID, eventType, behaviorID string) (bool, error) {
	key := PendingKey{
		UserID:        originalUserID,
		CounterpartID: confirmerID,
		EventType:     eventType,
		BehaviorID:    behaviorID,
	}
	now := time.Now()

	ok, err := s.Pending.Confirm(ctx, key, confirmerID, now)
	if err != nil {
		return false, fmt.Errorf("pending confirm: %w", err)
	}
	if ok && s.Audit != nil {
		_ = s.Audit.Append(ctx, AuditEntry{
			OccurredAt:   now,
			UserID:       originalUserID,
			EventType:    eventType,
			StrategyCode: CodeCrossVerify,
			Action:       AuditConfirmed,
			Payload: map[string]any{
				"confirmer_user_id": confirmerID,
				"behavior_id":       behaviorID,
			},
		})
	}
	return ok, nil
}
