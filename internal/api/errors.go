package api

import (
	"net/http"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// writeErr maps a service error to the HTTP boundary: semantic kinds become
// status codes with a {error, hint} body, everything else is a 500 that
// never leaks internals.
func writeErr(w http.ResponseWriter, log *logger.Logger, err error) {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindNotFound:
		httputil.JSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case domain.KindInvalidInput:
		httputil.JSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	case domain.KindInvalidTransition:
		httputil.JSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error: err.Error(),
			Hint:  "the current state does not allow this operation",
		})
	case domain.KindRateLimited:
		httputil.JSON(w, http.StatusTooManyRequests, httputil.ErrorResponse{
			Error: err.Error(),
			Hint:  "sending budget exhausted, retry after the window resets",
		})
	case domain.KindSuppressed:
		httputil.JSON(w, http.StatusConflict, httputil.ErrorResponse{
			Error: err.Error(),
			Hint:  "the recipient is on a suppression list",
		})
	case domain.KindUpstreamUnavailable:
		httputil.JSON(w, http.StatusBadGateway, httputil.ErrorResponse{Error: err.Error()})
	default:
		log.Error("request failed", "error", err.Error())
		httputil.JSON(w, http.StatusInternalServerError,
			httputil.ErrorResponse{Error: "internal server error"})
	}
}
