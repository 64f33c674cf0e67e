/*
Package promotion implements the promotion-track orchestrator consumed by
the growth-track strategy (AS-05).

PURPOSE:
  Users on the coaching platform climb a growth track (L1 companion up to
  L5 mentor). Promotion is gated on criteria BEYOND points: completed
  behaviors and coaching sessions. This package answers "is this user
  eligible for the next level, and if not, what is missing?".

DESIGN:
  The track is data: an ordered list of LevelRequirement values. The
  orchestrator pulls the user's progress through a ProgressSource
  interface so the backing system (user service, database) stays
  swappable; tests use a map-backed source.

USAGE:
  orch := promotion.NewOrchestrator(promotion.DefaultTrack(), source)
  status, err := orch.Eligibility(ctx, "user-42")
*/
package promotion

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// TRACK DEFINITION
// =============================================================================

// LevelRequirement is the full gate for one track level.
type LevelRequirement struct {
	Level        int
	Name         string
	MinPoints    int
	MinBehaviors int
	MinSessions  int
}

// DefaultTrack returns the platform's five-level growth track.
func DefaultTrack() []LevelRequirement {
	return []LevelRequirement{
		{Level: 1, Name: "同行者", MinPoints: 0, MinBehaviors: 0, MinSessions: 0},
		{Level: 2, Name: "行动者", MinPoints: 200, MinBehaviors: 10, MinSessions: 1},
		{Level: 3, Name: "坚持者", MinPoints: 800, MinBehaviors: 40, MinSessions: 4},
		{Level: 4, Name: "引路人", MinPoints: 2500, MinBehaviors: 120, MinSessions: 12},
		{Level: 5, Name: "导师", MinPoints: 6000, MinBehaviors: 300, MinSessions: 30},
	}
}

// =============================================================================
// PROGRESS SOURCE
// =============================================================================

// Progress is a user's accumulated track inputs.
type Progress struct {
	Points    int
	Behaviors int
	Sessions  int
}

// ProgressSource supplies user progress. Backed by the user service in
// production, a map in tests.
type ProgressSource interface {
	Progress(ctx context.Context, userID string) (Progress, error)
}

// MapSource is a ProgressSource backed by an in-memory map.
type MapSource struct {
	mu   sync.RWMutex
	data map[string]Progress
}

func NewMapSource() *MapSource {
	return &MapSource{data: make(map[string]Progress)}
}

func (m *MapSource) Set(userID string, p Progress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = p
}

func (m *MapSource) Progress(_ context.Context, userID string) (Progress, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[userID], nil
}

// =============================================================================
// ORCHESTRATOR
// =============================================================================

// Orchestrator evaluates promotion eligibility against a track.
// Implements anticheat.PromotionAdvisor.
type Orchestrator struct {
	track  []LevelRequirement
	source ProgressSource
}

var _ anticheat.PromotionAdvisor = (*Orchestrator)(nil)

// NewOrchestrator creates an orchestrator. The track is sorted by level.
func NewOrchestrator(track []LevelRequirement, source ProgressSource) *Orchestrator {
	sorted := append([]LevelRequirement(nil), track...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Level < sorted[j].Level })
	return &Orchestrator{track: sorted, source: source}
}

// Eligibility returns the user's current level and whether the next level's
// gate is already satisfied, with guidance on what is missing.
func (o *Orchestrator) Eligibility(ctx context.Context, userID string) (anticheat.PromotionStatus, error) {
	progress, err := o.source.Progress(ctx, userID)
	if err != nil {
		return anticheat.PromotionStatus{}, fmt.Errorf("promotion progress lookup: %w", err)
	}

	current := o.currentLevel(progress)
	status := anticheat.PromotionStatus{CurrentLevel: current, TargetLevel: current}

	next, ok := o.requirement(current + 1)
	if !ok {
		// Top of the track.
		return status, nil
	}

	status.TargetLevel = next.Level
	status.Eligible = meets(progress, next)
	if !status.Eligible {
		status.Guidance = guidance(progress, next)
	}
	return status, nil
}

func (o *Orchestrator) currentLevel(p Progress) int {
	level := 0
	for _, req := range o.track {
		if meets(p, req) {
			level = req.Level
		}
	}
	return level
}

func (o *Orchestrator) requirement(level int) (LevelRequirement, bool) {
	for _, req := range o.track {
		if req.Level == level {
			return req, true
		}
	}
	return LevelRequirement{}, false
}

func meets(p Progress, req LevelRequirement) bool {
	return p.Points >= req.MinPoints &&
		p.Behaviors >= req.MinBehaviors &&
		p.Sessions >= req.MinSessions
}

func guidance(p Progress, req LevelRequirement) string {
	switch {
	case p.Points < req.MinPoints:
		return fmt.Sprintf("距离%s还需%d积分", req.Name, req.MinPoints-p.Points)
	case p.Behaviors < req.MinBehaviors:
		return fmt.Sprintf("距离%s还需完成%d个行为", req.Name, req.MinBehaviors-p.Behaviors)
	default:
		return fmt.Sprintf("距离%s还需完成%d次辅导", req.Name, req.MinSessions-p.Sessions)
	}
}
