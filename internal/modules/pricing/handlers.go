package pricing

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"
)

// Handler handles pricing HTTP requests
type Handler struct {
	service *RevaluationService
	log     zerolog.Logger
}

// NewHandler creates a new pricing handler
func NewHandler(service *RevaluationService, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "pricing").Logger(),
	}
}

// HandleRevalue runs a revaluation immediately
func (h *Handler) HandleRevalue(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.RevalueHoldings()
	if err != nil {
		h.log.Error().Err(err).Msg("Revaluation failed")
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, result)
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
