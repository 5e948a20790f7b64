package handler

import (
	"log/slog"
	"net/http"

	versioningSvc "sitesmith/internal/domain/services/versioning"
	"sitesmith/internal/httputil"
)

// HistoryHandler handles product-doc mutation and version HTTP requests
type HistoryHandler struct {
	history versioningSvc.DocHistoryService
	logger  *slog.Logger
}

// NewHistoryHandler creates a new doc history handler
func NewHistoryHandler(history versioningSvc.DocHistoryService, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{
		history: history,
		logger:  logger,
	}
}

// UpdateDoc applies new content to the doc and records a history version
// PATCH /api/doc/{id}
func (h *HistoryHandler) UpdateDoc(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "doc ID is required")
		return
	}

	var req versioningSvc.UpdateDocRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	hist, err := h.history.UpdateDoc(r.Context(), docID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, hist)
}

// ListHistory lists the doc's versions, newest first
// GET /api/doc/{id}/history?include_released=true
func (h *HistoryHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("id")
	if docID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "doc ID is required")
		return
	}
	includeReleased := r.URL.Query().Get("include_released") == "true"

	history, err := h.history.ListHistory(r.Context(), docID, includeReleased)
	if err != nil {
		handleError(w, err)
		return
	}

	pinned := 0
	for _, v := range history {
		if v.Pinned {
			pinned++
		}
	}
	httputil.RespondJSON(w, http.StatusOK, historyListResponse{
		History:     history,
		Total:       len(history),
		PinnedCount: pinned,
	})
}

// GetVersion returns one history version with full content
// GET /api/doc/{id}/history/{versionID}
func (h *HistoryHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	docID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if docID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "doc ID and version ID are required")
		return
	}

	hist, err := h.history.GetVersion(r.Context(), docID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, hist)
}

// PinVersion exempts a history version from age-based release
// POST /api/doc/{id}/history/{versionID}/pin
func (h *HistoryHandler) PinVersion(w http.ResponseWriter, r *http.Request) {
	docID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if docID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "doc ID and version ID are required")
		return
	}

	hist, err := h.history.PinVersion(r.Context(), docID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, hist)
}

// UnpinVersion clears the pinned flag and re-applies retention
// POST /api/doc/{id}/history/{versionID}/unpin
func (h *HistoryHandler) UnpinVersion(w http.ResponseWriter, r *http.Request) {
	docID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if docID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "doc ID and version ID are required")
		return
	}

	hist, err := h.history.UnpinVersion(r.Context(), docID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, hist)
}
