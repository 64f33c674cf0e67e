package anticheat_test

import (
	"context"
	"time"

	"github.com/warp/points-engine/anticheat"
	"github.com/warp/points-engine/anticheat/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func ctx() context.Context { return context.Background() }

func at(hour, min, sec int) time.Time {
	return time.Date(2026, time.March, 14, hour, min, sec, 0, time.UTC)
}

func request(userID, eventType string, base int) anticheat.AwardRequest {
	return anticheat.AwardRequest{
		UserID:     userID,
		EventType:  eventType,
		BasePoints: base,
		Timestamp:  at(10, 0, 0),
	}
}

func newCapStrategy(rules *anticheat.Rules) (*anticheat.DailyCapStrategy, *store.MemoryCounters) {
	counters := store.NewMemoryCounters()
	return anticheat.NewDailyCapStrategy(rules, counters), counters
}

func newDecayStrategy() *anticheat.TimeDecayStrategy {
	return anticheat.NewTimeDecayStrategy(store.NewMemoryCounters())
}

func newVerifyStrategy(rules *anticheat.Rules) (*anticheat.CrossVerifyStrategy, *store.MemoryAudit) {
	audit := store.NewMemoryAudit()
	return anticheat.NewCrossVerifyStrategy(rules, store.NewMemoryPending(), audit), audit
}

func newAnomalyStrategy() (*anticheat.AnomalyDetectStrategy, *store.MemoryAudit) {
	audit := store.NewMemoryAudit()
	return anticheat.NewAnomalyDetectStrategy(store.NewMemoryWindows(), audit, nil), audit
}
