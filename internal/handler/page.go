package handler

import (
	"log/slog"
	"net/http"

	versioningSvc "sitesmith/internal/domain/services/versioning"
	"sitesmith/internal/httputil"
)

// PageHandler handles page mutation and version HTTP requests
type PageHandler struct {
	pages  versioningSvc.PageVersionService
	logger *slog.Logger
}

// NewPageHandler creates a new page handler
func NewPageHandler(pages versioningSvc.PageVersionService, logger *slog.Logger) *PageHandler {
	return &PageHandler{
		pages:  pages,
		logger: logger,
	}
}

// UpdatePage applies new html to the page and records a version
// PATCH /api/pages/{id}
func (h *PageHandler) UpdatePage(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("id")
	if pageID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "page ID is required")
		return
	}

	var req versioningSvc.UpdatePageRequest
	if err := httputil.ParseJSON(w, r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	ver, err := h.pages.UpdatePage(r.Context(), pageID, &req)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ver)
}

// ListVersions lists the page's versions, newest first
// GET /api/pages/{id}/versions?include_released=true
func (h *PageHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	pageID := r.PathValue("id")
	if pageID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "page ID is required")
		return
	}
	includeReleased := r.URL.Query().Get("include_released") == "true"

	versions, err := h.pages.ListVersions(r.Context(), pageID, includeReleased)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, pageVersionListResponse{
		Versions: versions,
		Total:    len(versions),
	})
}

// GetVersion returns one page version with its html
// GET /api/pages/{id}/versions/{versionID}
func (h *PageHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	pageID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if pageID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "page ID and version ID are required")
		return
	}

	ver, err := h.pages.GetVersion(r.Context(), pageID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ver)
}

// PinVersion exempts a page version from age-based release
// POST /api/pages/{id}/versions/{versionID}/pin
func (h *PageHandler) PinVersion(w http.ResponseWriter, r *http.Request) {
	pageID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if pageID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "page ID and version ID are required")
		return
	}

	ver, err := h.pages.PinVersion(r.Context(), pageID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ver)
}

// UnpinVersion clears the pinned flag and re-applies retention
// POST /api/pages/{id}/versions/{versionID}/unpin
func (h *PageHandler) UnpinVersion(w http.ResponseWriter, r *http.Request) {
	pageID, versionID := r.PathValue("id"), r.PathValue("versionID")
	if pageID == "" || versionID == "" {
		httputil.RespondError(w, http.StatusBadRequest, "page ID and version ID are required")
		return
	}

	ver, err := h.pages.UnpinVersion(r.Context(), pageID, versionID)
	if err != nil {
		handleError(w, err)
		return
	}

	httputil.RespondJSON(w, http.StatusOK, ver)
}
