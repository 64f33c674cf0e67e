/*
anomaly.go - AS-06: Sliding-window burst detection

PURPOSE:
  Catches scripted bursts: many awards for the same (user, event_type)
  inside a short window. Each evaluation records its timestamp in a 60s
  sliding window; once more than 8 prior events sit inside the window the
  request is FLAGGED.

SILENT FLAGGING:
  Flagged requests are still awarded in full and the user sees NO message.
  Telling an abuser they tripped a detector teaches them the threshold;
  instead a review record is written for the ops team and the account is
  handled out of band.

THRESHOLD:
  8 events within 60 seconds. Seven rapid calls pass clean; the burst is
  flagged from the ninth call inside the window onward (the ninth is the
  first whose window already holds eight).
*/
package anticheat

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// AnomalyWindow is the sliding-window width. Exported so the janitor
	// prunes with the same cutoff the detector uses.
	AnomalyWindow = 60 * time.Second

	// anomalyThreshold is the number of prior in-window events that marks
	// a burst.
	anomalyThreshold = 8
)

// AnomalyDetectStrategy flags burst activity for review (AS-06).
type AnomalyDetectStrategy struct {
	Windows WindowStore
	Audit   AuditLog
	Log     *zap.Logger
}

func NewAnomalyDetectStrategy(windows WindowStore, audit AuditLog, log *zap.Logger) *AnomalyDetectStrategy {
	if log == nil {
		log = zap.NewNop()
	}
	return &AnomalyDetectStrategy{Windows: windows, Audit: audit, Log: log}
}

func (s *AnomalyDetectStrategy) Code() StrategyCode { return CodeAnomalyDetect }

func (s *AnomalyDetectStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	at := req.EffectiveAt()
	key := WindowKey{UserID: req.UserID, EventType: req.EventType}

	count, err := s.Windows.Observe(ctx, key, at, at.Add(-AnomalyWindow))
	if err != nil {
		return StrategyResult{}, fmt.Errorf("anomaly window: %w", err)
	}

	// count includes the current event; flag once the prior window already
	// held the threshold.
	if count-1 < anomalyThreshold {
		return passThrough(CodeAnomalyDetect, req.BasePoints), nil
	}

	reviewID := uuid.NewString()
	result := passThrough(CodeAnomalyDetect, req.BasePoints)
	result.Verdict = VerdictFlagged
	// No Reason: flagging is invisible to the user.
	result.Metadata = map[string]any{
		"review_submitted": true,
		"review_id":        reviewID,
		"window_count":     count,
		"window_seconds":   int(AnomalyWindow.Seconds()),
	}

	if s.Audit != nil {
		err := s.Audit.Append(ctx, AuditEntry{
			ID:           reviewID,
			OccurredAt:   at,
			UserID:       req.UserID,
			EventType:    req.EventType,
			StrategyCode: CodeAnomalyDetect,
			Action:       AuditFlagged,
			Payload: map[string]any{
				"window_count": count,
				"base_points":  req.BasePoints,
			},
		})
		if err != nil {
			// Points are already committed to flow; losing one review
			// record is logged, not fatal.
			s.Log.Warn("failed to persist review record",
				zap.String("user_id", req.UserID),
				zap.String("event_type", req.EventType),
				zap.Error(err))
		}
	}

	s.Log.Info("burst flagged for review",
		zap.String("user_id", req.UserID),
		zap.String("event_type", req.EventType),
		zap.Int("window_count", count))

	return result, nil
}
