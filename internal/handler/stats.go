package handler

import (
	"net/http"

	"github.com/tablestakes/tracker/internal/domain"
	"github.com/tablestakes/tracker/internal/service"
)

// StatsHandler serves cross-session statistics and the settlement plan.
type StatsHandler struct {
	tracker *service.Tracker
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(tracker *service.Tracker) *StatsHandler {
	return &StatsHandler{tracker: tracker}
}

// PlayerStats handles GET /stats/players.
func (h *StatsHandler) PlayerStats(w http.ResponseWriter, r *http.Request) {
	report, err := h.tracker.PlayerStats(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, report)
}

// Settlements handles GET /settlements.
func (h *StatsHandler) Settlements(w http.ResponseWriter, r *http.Request) {
	states, err := h.tracker.Settlements(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, states)
}

// SetSettlementStatus handles PUT /settlements/status.
func (h *StatsHandler) SetSettlementStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Debtor   string                  `json:"debtor"`
		Creditor string                  `json:"creditor"`
		Status   domain.SettlementStatus `json:"status"`
	}
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid settlement status body"))
		return
	}

	rec, err := h.tracker.SetSettlementStatus(r.Context(), req.Debtor, req.Creditor, req.Status)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, rec)
}

// SyncMirror handles POST /sync/mirror.
func (h *StatsHandler) SyncMirror(w http.ResponseWriter, r *http.Request) {
	result, err := h.tracker.SyncToMirror(r.Context())
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, result)
}
