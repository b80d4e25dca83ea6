package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"posterlab/internal/domain"
	"posterlab/internal/httputil"
)

// handleError maps domain errors to HTTP responses. Errors implementing
// domain.HTTPError carry their own status; sentinels cover wrapped
// errors; everything else is a 500 with the detail withheld.
func handleError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var httpErr domain.HTTPError
	if errors.As(err, &httpErr) {
		httputil.RespondError(w, httpErr.StatusCode(), httpErr.Error())
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		httputil.RespondError(w, http.StatusNotFound, "Resource not found")
	case errors.Is(err, domain.ErrValidation):
		httputil.RespondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrConflict):
		httputil.RespondError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("unhandled error", "error", err)
		httputil.RespondError(w, http.StatusInternalServerError, "Internal server error")
	}
}
