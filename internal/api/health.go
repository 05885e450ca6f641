package api

import (
	"net/http"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
	"github.com/mesour/brick-offers-sub004/internal/worker"
)

// Health reports liveness plus the workers seen in the last two minutes.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	var workers []worker.Heartbeat
	if h.workers != nil {
		live, err := h.workers.LiveWorkers(r.Context(), 2*time.Minute)
		if err != nil {
			h.log.Warn("worker status read failed", "error", err.Error())
		} else {
			workers = live
		}
	}
	httputil.OK(w, struct {
		Status  string             `json:"status"`
		Workers []worker.Heartbeat `json:"workers"`
	}{"ok", workers})
}
