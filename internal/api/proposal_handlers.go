package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
)

// ProposalRecyclable reports whether a recyclable proposal exists for the
// industry and type.
func (h *Handlers) ProposalRecyclable(w http.ResponseWriter, r *http.Request) {
	industry := strings.TrimSpace(r.URL.Query().Get("industry"))
	proposalType := strings.TrimSpace(r.URL.Query().Get("type"))
	if industry == "" || proposalType == "" {
		httputil.BadRequest(w, "industry and type are required")
		return
	}

	available, err := h.offers.RecyclableAvailable(r.Context(), industry, proposalType)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Industry            string `json:"industry"`
		Type                string `json:"type"`
		RecyclableAvailable bool   `json:"recyclableAvailable"`
	}{industry, proposalType, available})
}

// ProposalRecycle moves a recyclable proposal to another tenant, resetting
// it to draft. 409 when the proposal does not qualify.
func (h *Handlers) ProposalRecycle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserCode string `json:"userCode"`
		LeadID   string `json:"leadId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.UserCode == "" {
		httputil.BadRequest(w, "userCode is required")
		return
	}

	p, err := h.offers.Recycle(r.Context(), chi.URLParam(r, "id"), body.UserCode, body.LeadID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, p)
}
