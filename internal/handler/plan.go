package handler

import (
	"log/slog"
	"net/http"

	"sitesmith/internal/domain/models"
	versioningSvc "sitesmith/internal/domain/services/versioning"
	"sitesmith/internal/httputil"
)

// PlanHandler receives generation-plan completion signals from the
// orchestrator.
type PlanHandler struct {
	listener versioningSvc.PlanListener
	logger   *slog.Logger
}

// NewPlanHandler creates a new plan completion handler
func NewPlanHandler(listener versioningSvc.PlanListener, logger *slog.Logger) *PlanHandler {
	return &PlanHandler{
		listener: listener,
		logger:   logger,
	}
}

// PlanCompleted handles a plan completion signal, taking an automatic
// snapshot when every page task succeeded. Safe to deliver more than once.
// POST /api/plans/completed
func (h *PlanHandler) PlanCompleted(w http.ResponseWriter, r *http.Request) {
	var result models.PlanResult
	if err := httputil.ParseJSON(w, r, &result); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.listener.PlanCompleted(r.Context(), &result)
	if err != nil {
		handleError(w, err)
		return
	}

	if snap == nil {
		httputil.RespondJSON(w, http.StatusOK, planCompletedResponse{Skipped: true})
		return
	}

	summary := toSnapshotSummary(snap)
	httputil.RespondJSON(w, http.StatusCreated, planCompletedResponse{Snapshot: &summary})
}
