/*
growthtrack.go - AS-05: Growth-track gating (informational)

PURPOSE:
  Bridges the points system to the promotion track. Points alone do not
  promote a user; separate non-point criteria (completed behaviors,
  coaching sessions) gate each level. This strategy NEVER blocks or
  adjusts an award. It only attaches the user's current promotion
  eligibility to the result so the client can render progress alongside
  the points toast.

COLLABORATOR:
  The promotion orchestrator is optional. When absent (nil), or when the
  lookup fails, the strategy is a silent pass-through: promotion data is
  nice-to-have, points flow must not depend on it.
*/
package anticheat

import "context"

// PromotionStatus is the promotion-track snapshot attached to results.
type PromotionStatus struct {
	CurrentLevel int    `json:"current_level"`
	TargetLevel  int    `json:"target_level"`
	Eligible     bool   `json:"eligible"`
	Guidance     string `json:"guidance,omitempty"`
}

// PromotionAdvisor is the promotion-orchestrator collaborator consumed by
// AS-05. Implemented by the promotion package.
type PromotionAdvisor interface {
	// Eligibility returns the user's promotion state toward the next level.
	Eligibility(ctx context.Context, userID string) (PromotionStatus, error)
}

// GrowthTrackStrategy attaches promotion-track state to results (AS-05).
// Always ALLOW with unchanged points.
type GrowthTrackStrategy struct {
	Advisor PromotionAdvisor // may be nil
}

func NewGrowthTrackStrategy(advisor PromotionAdvisor) *GrowthTrackStrategy {
	return &GrowthTrackStrategy{Advisor: advisor}
}

func (s *GrowthTrackStrategy) Code() StrategyCode { return CodeGrowthTrack }

func (s *GrowthTrackStrategy) Evaluate(ctx context.Context, req AwardRequest) (StrategyResult, error) {
	result := passThrough(CodeGrowthTrack, req.BasePoints)
	if s.Advisor == nil {
		return result, nil
	}

	status, err := s.Advisor.Eligibility(ctx, req.UserID)
	if err != nil {
		// Informational lookup only; a broken orchestrator must not take
		// the points path down with it.
		return result, nil
	}

	result.Metadata = map[string]any{
		"promotion": status,
	}
	if status.Guidance != "" {
		result.Metadata["guidance"] = status.Guidance
	}
	return result, nil
}
