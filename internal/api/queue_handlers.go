package api

import (
	"net/http"

	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
)

// QueueDepths returns the count of claimable jobs per queue.
func (h *Handlers) QueueDepths(w http.ResponseWriter, r *http.Request) {
	depths, err := h.queue.Depths(r.Context())
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, depths)
}

// QueueRedrive moves failed jobs back to their origin queues.
func (h *Handlers) QueueRedrive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Limit int `json:"limit,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.Limit <= 0 {
		body.Limit = 100
	}

	moved, err := h.queue.Redrive(r.Context(), body.Limit)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Moved int `json:"moved"`
	}{moved})
}
