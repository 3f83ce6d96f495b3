package allocation

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/quantfolio/allocator/internal/domain"
)

// Handler handles allocation HTTP requests
type Handler struct {
	engine   *Engine
	validate *validator.Validate
	log      zerolog.Logger
}

// NewHandler creates a new allocation handler
func NewHandler(engine *Engine, log zerolog.Logger) *Handler {
	return &Handler{
		engine:   engine,
		validate: validator.New(),
		log:      log.With().Str("handler", "allocation").Logger(),
	}
}

// previewHolding is one override holding row in a preview request
type previewHolding struct {
	AccountID    int64   `json:"account_id" validate:"required"`
	AssetClassID int64   `json:"asset_class_id" validate:"required"`
	Value        float64 `json:"value" validate:"gte=0"`
}

// previewTarget is one override policy target in a preview request
type previewTarget struct {
	ScopeType    string  `json:"scope_type" validate:"required,oneof=type account"`
	ScopeID      int64   `json:"scope_id" validate:"required"`
	AssetClassID int64   `json:"asset_class_id" validate:"required"`
	TargetPct    float64 `json:"target_pct" validate:"gte=0,lte=100"`
}

// previewRequest carries what-if overrides. A field left out of the payload
// keeps the stored table; an empty array replaces it with nothing.
type previewRequest struct {
	Holdings      []previewHolding `json:"holdings" validate:"omitempty,dive"`
	PolicyTargets []previewTarget  `json:"policy_targets" validate:"omitempty,dive"`
}

// HandleGetAllocation returns the full allocation table for one user
func (h *Handler) HandleGetAllocation(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	rows, err := h.engine.Compute(userID, nil)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows})
}

// HandlePreview recomputes the allocation with transient overrides applied.
// Nothing is persisted.
func (h *Handler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req previewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ov := &Overrides{}
	if req.Holdings != nil {
		ov.Holdings = make([]HoldingRow, 0, len(req.Holdings))
		for _, p := range req.Holdings {
			ov.Holdings = append(ov.Holdings, HoldingRow{
				AccountID:    p.AccountID,
				AssetClassID: p.AssetClassID,
				Value:        decimal.NewFromFloat(p.Value),
			})
		}
	}
	if req.PolicyTargets != nil {
		ov.PolicyTargets = make([]PolicyTargetRow, 0, len(req.PolicyTargets))
		for _, p := range req.PolicyTargets {
			ov.PolicyTargets = append(ov.PolicyTargets, PolicyTargetRow{
				Scope:        domain.ScopeType(p.ScopeType),
				ScopeID:      p.ScopeID,
				AssetClassID: p.AssetClassID,
				TargetPct:    p.TargetPct,
			})
		}
	}

	rows, err := h.engine.Compute(userID, ov)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{"rows": rows, "preview": true})
}

// HandleGetSummary returns per-account totals grouped by account type
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.userID(w, r)
	if !ok {
		return
	}

	summary, err := h.engine.Summary(userID)
	if err != nil {
		h.writeComputeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// writeComputeError maps engine errors to status codes: inconsistent policy
// data is the caller's problem (422), anything else is ours (500).
func (h *Handler) writeComputeError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		h.writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":    vErr.Reason,
			"scope":    string(vErr.Scope),
			"scope_id": vErr.ScopeID,
		})
		return
	}

	h.log.Error().Err(err).Msg("Allocation computation failed")
	h.writeError(w, http.StatusInternalServerError, err.Error())
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		h.writeError(w, http.StatusBadRequest, "user_id is required")
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid user_id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
