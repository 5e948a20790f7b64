package handler

import (
	"log/slog"
	"net/http"

	versioningSvc "sitesmith/internal/domain/services/versioning"
	"sitesmith/internal/httputil"
)

// SnapshotHandler handles session snapshot HTTP requests
type SnapshotHandler struct {
	snapshots versioningSvc.SnapshotService
	rollback  versioningSvc.RollbackService
	logger    *slog.Logger
}

// NewSnapshotHandler creates a new snapshot handler
func NewSnapshotHandler(snapshots versioningSvc.SnapshotService, rollback versioningSvc.RollbackService, logger *slog.Logger) *SnapshotHandler {
	return &SnapshotHandler{
		snapshots: snapshots,
		rollback:  rollback,
		logger:    logger,
	}
}

// ListSnapshots lists a session's snapshots, newest first
// GET /api/sessions/{id}/snapshots?include_released=true
func (h *SnapshotHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID is required")
		return
	}
	includeReleased := r.URL.Query().Get("include_released") == "true"

	snaps, err := h.snapshots.ListSnapshots(r.Context(), sessionID, includeReleased)
	if err != nil {
		handleError(w, err)
		return
	}

	summaries := make([]snapshotSummary, 0, len(snaps))
	for i := range snaps {
		summaries = append(summaries, toSnapshotSummary(&snaps[i]))
	}
	httputil.RespondJSON(w, http.StatusOK, snapshotListResponse{
		Snapshots: summaries,
		Total:     len(summaries),
	})
}

// CreateSnapshot takes a manual snapshot of the session
// POST /api/sessions/{id}/snapshots
func (h *SnapshotHandler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")
	if sessionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID is required")
		return
	}

	var req versioningSvc.CreateSnapshotRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.SessionID = sessionID
	if req.Source == "" {
		// Snapshots requested over the API are user checkpoints.
		req.Source = "manual"
	}

	snap, err := h.snapshots.CreateSnapshot(r.Context(), &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusCreated, snap)
}

// GetSnapshot returns one snapshot with its frozen content
// GET /api/sessions/{id}/snapshots/{snapshotID}
func (h *SnapshotHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, snapshotID := r.PathValue("id"), r.PathValue("snapshotID")
	if sessionID == "" || snapshotID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID and snapshot ID are required")
		return
	}

	snap, err := h.snapshots.GetSnapshot(r.Context(), sessionID, snapshotID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, snap)
}

// Rollback restores the session to the snapshot's captured state
// POST /api/sessions/{id}/snapshots/{snapshotID}/rollback
func (h *SnapshotHandler) Rollback(w http.ResponseWriter, r *http.Request) {
	sessionID, snapshotID := r.PathValue("id"), r.PathValue("snapshotID")
	if sessionID == "" || snapshotID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID and snapshot ID are required")
		return
	}

	result, err := h.rollback.Rollback(r.Context(), sessionID, snapshotID)
	if err != nil {
		handleError(w, err)
		return
	}

	h.logger.Info("rollback served",
		"session_id", sessionID,
		"snapshot_id", snapshotID,
		"user_id", httputil.GetUserID(r),
	)

	httputil.RespondJSON(w, http.StatusOK, rollbackResponse{
		Message:       "session restored",
		NewSnapshot:   toSnapshotSummary(result.NewSnapshot),
		RestoredPages: result.RestoredPages,
	})
}

// PinSnapshot exempts a snapshot from age-based release
// POST /api/sessions/{id}/snapshots/{snapshotID}/pin
func (h *SnapshotHandler) PinSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, snapshotID := r.PathValue("id"), r.PathValue("snapshotID")
	if sessionID == "" || snapshotID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID and snapshot ID are required")
		return
	}

	snap, err := h.snapshots.PinSnapshot(r.Context(), sessionID, snapshotID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toSnapshotSummary(snap))
}

// UnpinSnapshot clears the pinned flag and re-applies retention
// POST /api/sessions/{id}/snapshots/{snapshotID}/unpin
func (h *SnapshotHandler) UnpinSnapshot(w http.ResponseWriter, r *http.Request) {
	sessionID, snapshotID := r.PathValue("id"), r.PathValue("snapshotID")
	if sessionID == "" || snapshotID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "session ID and snapshot ID are required")
		return
	}

	snap, err := h.snapshots.UnpinSnapshot(r.Context(), sessionID, snapshotID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, toSnapshotSummary(snap))
}
