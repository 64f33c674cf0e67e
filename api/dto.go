/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation via struct tags
  - Version evolution

NAMING CONVENTION:
  - *Request: Request body types from clients
  - *DTO / *Response: Types returned to clients

VALIDATION:
  Struct tags drive go-playground/validator; handlers validate request
  bodies before touching domain logic, so malformed input never reaches
  the pipeline.

SEE ALSO:
  - handlers.go: Uses these types
  - anticheat/types.go: Domain equivalents
*/
package api

import (
	"time"

	"github.com/warp/points-engine/anticheat"
)

// =============================================================================
// EVALUATE
// =============================================================================

// EvaluateRequest is the request body for POST /api/anti-cheat/evaluate.
type EvaluateRequest struct {
	UserID            string            `json:"user_id" validate:"required"`
	EventType         string            `json:"event_type" validate:"required"`
	BasePoints        int               `json:"base_points" validate:"gte=0"`
	PointsCategory    string            `json:"points_category,omitempty"`
	QualityScore      float64           `json:"quality_score" validate:"gte=0,lte=1"`
	CounterpartUserID string            `json:"counterpart_user_id,omitempty"`
	BehaviorID        string            `json:"behavior_id,omitempty"`
	Timestamp         *time.Time        `json:"timestamp,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
}

// toDomain converts the DTO to the immutable domain request.
func (r EvaluateRequest) toDomain() anticheat.AwardRequest {
	req := anticheat.AwardRequest{
		UserID:            r.UserID,
		EventType:         r.EventType,
		BasePoints:        r.BasePoints,
		PointsCategory:    r.PointsCategory,
		QualityScore:      r.QualityScore,
		CounterpartUserID: r.CounterpartUserID,
		BehaviorID:        r.BehaviorID,
		Metadata:          r.Metadata,
	}
	if r.Timestamp != nil {
		req.Timestamp = *r.Timestamp
	}
	return req
}

// =============================================================================
// CONFIRM
// =============================================================================

// ConfirmRequest is the request body for POST /api/anti-cheat/confirm.
type ConfirmRequest struct {
	ConfirmerUserID string `json:"confirmer_user_id" validate:"required"`
	OriginalUserID  string `json:"original_user_id" validate:"required"`
	EventType       string `json:"event_type" validate:"required"`
	BehaviorID      string `json:"behavior_id,omitempty"`
}

// ConfirmResponse reports whether a matching pending record was confirmed.
type ConfirmResponse struct {
	Confirmed bool `json:"confirmed"`
}

// =============================================================================
// DAILY STATUS
// =============================================================================

// DailyStatusDTO is one event's cap usage for a user.
type DailyStatusDTO struct {
	EventType string `json:"event_type"`
	Cap       int    `json:"cap"`
	Used      int    `json:"used"`
	Remaining int    `json:"remaining"`
}

// DailyStatusResponse wraps the per-event usage list.
type DailyStatusResponse struct {
	UserID string           `json:"user_id"`
	Date   string           `json:"date"`
	Events []DailyStatusDTO `json:"events"`
}

// =============================================================================
// STRATEGY MAP / EVENT RULES
// =============================================================================

// StrategyMapResponse lists the strategy codes applied to one event type.
type StrategyMapResponse struct {
	EventType  string   `json:"event_type"`
	Strategies []string `json:"strategies"`
}

// EventRuleDTO mirrors an EventRule for status and admin responses.
type EventRuleDTO struct {
	EventType            string   `json:"event_type"`
	Strategies           []string `json:"strategies"`
	DailyCap             int      `json:"daily_cap,omitempty"`
	QualityWeighted      bool     `json:"quality_weighted,omitempty"`
	RequiresVerification bool     `json:"requires_verification,omitempty"`
}

func ruleDTO(rule anticheat.EventRule) EventRuleDTO {
	strategies := make([]string, len(rule.Strategies))
	for i, c := range rule.Strategies {
		strategies[i] = string(c)
	}
	return EventRuleDTO{
		EventType:            rule.EventType,
		Strategies:           strategies,
		DailyCap:             rule.DailyCap,
		QualityWeighted:      rule.QualityWeighted,
		RequiresVerification: rule.RequiresVerification,
	}
}

// =============================================================================
// REVIEWS
// =============================================================================

// ReviewDTO is one flagged/blocked evaluation from the audit log.
type ReviewDTO struct {
	ID           string         `json:"id"`
	OccurredAt   string         `json:"occurred_at"`
	UserID       string         `json:"user_id"`
	EventType    string         `json:"event_type"`
	StrategyCode string         `json:"strategy_code"`
	Action       string         `json:"action"`
	Payload      map[string]any `json:"payload,omitempty"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
