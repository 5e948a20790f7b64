package handler

import (
	"errors"
	"net/http"

	"sitesmith/internal/domain"
	"sitesmith/internal/httputil"
)

// handleError converts domain errors to HTTP responses
func handleError(w http.ResponseWriter, err error) {
	var pinErr *domain.PinLimitError

	switch {
	case errors.As(err, &pinErr):
		// The pinned ids let the client render an "unpin one of these
		// first" prompt.
		httputil.RespondErrorWithExtras(w, http.StatusConflict, pinErr.Error(), map[string]any{
			"error":          "pinned_limit_exceeded",
			"limit":          pinErr.Limit,
			"current_pinned": pinErr.CurrentPinned,
		})
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		httputil.RespondError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		var httpErr domain.HTTPError
		if errors.As(err, &httpErr) {
			httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
			return
		}
		httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
	}
}
