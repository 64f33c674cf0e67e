/*
handlers.go - HTTP API handlers for the anti-cheat engine

PURPOSE:
  Exposes the anti-cheat pipeline via REST. Handles HTTP request/response,
  JSON serialization and validation, and delegates to domain logic.

ENDPOINTS:
  Anti-cheat:
    POST /api/anti-cheat/evaluate            Evaluate a points award
    POST /api/anti-cheat/confirm             Confirm a cross-verified event
    GET  /api/anti-cheat/daily-status        Per-event cap usage for a user
    GET  /api/anti-cheat/strategy-map/{event_type}  Strategies for an event
    GET  /api/anti-cheat/reviews             Flagged/blocked evaluations
    GET  /api/anti-cheat/events              Configured event rules

  Admin:
    POST /api/admin/events                   Upsert an event rule from JSON
    POST /api/admin/sweep                    Run the janitor sweep now

  Ops:
    GET  /api/healthz                        Liveness

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Unknown event type where one is required
  - 500: Strategy/store failures (award denied, fail-closed)

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/points-engine/anticheat"
	"github.com/warp/points-engine/factory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// RuleSaver persists JSON rule definitions. Implemented by the sqlite
// store; nil when running purely in memory.
type RuleSaver interface {
	SaveEventRule(ctx context.Context, eventType, configJSON string) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Pipeline    *anticheat.Pipeline
	CrossVerify *anticheat.CrossVerifyStrategy
	DailyCap    *anticheat.DailyCapStrategy
	Audit       anticheat.AuditLog
	RuleFactory *factory.RuleFactory
	RuleSaver   RuleSaver
	Janitor     *Janitor
	Log         *zap.Logger

	validate *validator.Validate
}

// NewHandler creates a handler wired to the pipeline and its strategies.
func NewHandler(pipeline *anticheat.Pipeline, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Handler{
		Pipeline:    pipeline,
		RuleFactory: factory.NewRuleFactory(),
		Log:         log,
		validate:    validator.New(),
	}
	if s, ok := pipeline.Strategy(anticheat.CodeCrossVerify); ok {
		h.CrossVerify, _ = s.(*anticheat.CrossVerifyStrategy)
	}
	if s, ok := pipeline.Strategy(anticheat.CodeDailyCap); ok {
		h.DailyCap, _ = s.(*anticheat.DailyCapStrategy)
	}
	return h
}

// =============================================================================
// EVALUATE
// =============================================================================

// Evaluate runs a points award through the pipeline.
func (h *Handler) Evaluate(w http.ResponseWriter, r *http.Request) {
	var req EvaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	result, err := h.Pipeline.Process(r.Context(), req.toDomain())
	if err != nil {
		if anticheat.IsClientError(err) {
			writeError(w, http.StatusBadRequest, "Invalid award request", err)
			return
		}
		// Fail-closed: the award was denied, tell the caller why.
		writeError(w, http.StatusInternalServerError, "Evaluation failed, award denied", err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// CONFIRM
// =============================================================================

// Confirm transitions a pending cross-verification record.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if h.CrossVerify == nil {
		writeError(w, http.StatusInternalServerError, "Cross-verification not configured", nil)
		return
	}

	ok, err := h.CrossVerify.Confirm(r.Context(),
		req.ConfirmerUserID, req.OriginalUserID, req.EventType, req.BehaviorID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Confirmation failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ConfirmResponse{Confirmed: ok})
}

// =============================================================================
// DAILY STATUS
// =============================================================================

// DailyStatus returns today's cap usage per capped event for a user.
func (h *Handler) DailyStatus(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user_id query parameter required", nil)
		return
	}
	if h.DailyCap == nil {
		writeError(w, http.StatusInternalServerError, "Daily caps not configured", nil)
		return
	}

	day := anticheat.DayBucket(time.Now())
	resp := DailyStatusResponse{UserID: userID, Date: day}

	for _, rule := range h.Pipeline.Rules().CappedEvents() {
		used, err := h.DailyCap.Usage(r.Context(), userID, rule.EventType, day)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to read cap usage", err)
			return
		}
		remaining := rule.DailyCap - used
		if remaining < 0 {
			remaining = 0
		}
		resp.Events = append(resp.Events, DailyStatusDTO{
			EventType: rule.EventType,
			Cap:       rule.DailyCap,
			Used:      used,
			Remaining: remaining,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// STRATEGY MAP / EVENT RULES
// =============================================================================

// StrategyMap returns the strategy codes applied to an event type. Unknown
// events return an empty list: no scrutiny applies.
func (h *Handler) StrategyMap(w http.ResponseWriter, r *http.Request) {
	eventType := chi.URLParam(r, "event_type")

	codes := h.Pipeline.Rules().StrategiesFor(eventType)
	strategies := make([]string, len(codes))
	for i, c := range codes {
		strategies[i] = string(c)
	}

	writeJSON(w, http.StatusOK, StrategyMapResponse{
		EventType:  eventType,
		Strategies: strategies,
	})
}

// ListEvents returns every configured event rule.
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	rules := h.Pipeline.Rules().All()
	dtos := make([]EventRuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = ruleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// UpsertEvent adds or replaces an event rule from its JSON definition.
func (h *Handler) UpsertEvent(w http.ResponseWriter, r *http.Request) {
	var rj factory.RuleJSON
	if err := json.NewDecoder(r.Body).Decode(&rj); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	rule, err := h.RuleFactory.FromJSON(rj)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event rule", err)
		return
	}

	if h.RuleSaver != nil {
		configJSON, err := h.RuleFactory.ToJSON(rule)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to serialize rule", err)
			return
		}
		if err := h.RuleSaver.SaveEventRule(r.Context(), rule.EventType, configJSON); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to persist rule", err)
			return
		}
	}

	h.Pipeline.Rules().Upsert(rule)
	h.Log.Info("event rule updated", zap.String("event_type", rule.EventType))
	writeJSON(w, http.StatusOK, ruleDTO(rule))
}

// =============================================================================
// REVIEWS
// =============================================================================

// ListReviews returns flagged and blocked evaluations for the ops team.
func (h *Handler) ListReviews(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeJSON(w, http.StatusOK, []ReviewDTO{})
		return
	}

	filter := anticheat.AuditFilter{Limit: 100}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		filter.UserID = &userID
	}
	if action := r.URL.Query().Get("action"); action != "" {
		filter.Actions = []anticheat.AuditAction{anticheat.AuditAction(action)}
	} else {
		filter.Actions = []anticheat.AuditAction{anticheat.AuditFlagged}
	}

	entries, err := h.Audit.Query(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to query reviews", err)
		return
	}

	dtos := make([]ReviewDTO, len(entries))
	for i, e := range entries {
		dtos[i] = ReviewDTO{
			ID:           e.ID,
			OccurredAt:   e.OccurredAt.Format(time.RFC3339),
			UserID:       e.UserID,
			EventType:    e.EventType,
			StrategyCode: string(e.StrategyCode),
			Action:       string(e.Action),
			Payload:      e.Payload,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// OPS
// =============================================================================

// TriggerSweep runs the janitor sweep immediately.
func (h *Handler) TriggerSweep(w http.ResponseWriter, r *http.Request) {
	if h.Janitor == nil {
		writeError(w, http.StatusInternalServerError, "Janitor not configured", nil)
		return
	}
	expired, pruned := h.Janitor.Sweep(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{
		"expired_pending": expired,
		"pruned_window":   pruned,
	})
}

// Health is the liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
