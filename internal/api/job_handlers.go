package api

import (
	"net/http"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/discovery"
	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
)

// wantsAsync reads the dispatch mode; jobs default to async.
func wantsAsync(r *http.Request) bool {
	return r.URL.Query().Get("async") != "false"
}

func (h *Handlers) enqueued(w http.ResponseWriter, r *http.Request, kind domain.JobKind, payload interface{}) {
	id, err := h.queue.EnqueueDefault(r.Context(), kind, payload)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.JSON(w, http.StatusAccepted, struct {
		JobID int64  `json:"jobId"`
		Kind  string `json:"kind"`
	}{id, string(kind)})
}

// JobAnalyzeLead runs or enqueues one analysis pass.
func (h *Handlers) JobAnalyzeLead(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LeadID    string `json:"leadId"`
		Industry  string `json:"industry,omitempty"`
		ProfileID string `json:"profileId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.LeadID == "" {
		httputil.BadRequest(w, "leadId is required")
		return
	}

	if wantsAsync(r) {
		h.enqueued(w, r, domain.JobAnalyzeLead, map[string]string{
			"lead_id":    body.LeadID,
			"industry":   body.Industry,
			"profile_id": body.ProfileID,
		})
		return
	}
	a, err := h.pipeline.Run(r.Context(), body.LeadID, analysis.RunOptions{
		Industry:  body.Industry,
		ProfileID: body.ProfileID,
	})
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, a)
}

// JobDiscoverLeads runs or enqueues a discovery batch.
func (h *Handlers) JobDiscoverLeads(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Source    string   `json:"source"`
		Queries   []string `json:"queries"`
		TenantID  string   `json:"tenantId"`
		Limit     int      `json:"limit,omitempty"`
		ProfileID string   `json:"profileId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	req := discovery.Request{
		Source:    body.Source,
		Queries:   body.Queries,
		TenantID:  body.TenantID,
		Limit:     body.Limit,
		ProfileID: body.ProfileID,
	}

	if wantsAsync(r) {
		h.enqueued(w, r, domain.JobDiscoverLeads, req)
		return
	}
	report, err := h.discovery.Run(r.Context(), req)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, report)
}

// JobGenerateProposal runs or enqueues proposal generation.
func (h *Handlers) JobGenerateProposal(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LeadID     string `json:"leadId"`
		TenantID   string `json:"tenantId,omitempty"`
		Type       string `json:"type"`
		AnalysisID string `json:"analysisId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.LeadID == "" || body.Type == "" {
		httputil.BadRequest(w, "leadId and type are required")
		return
	}

	if wantsAsync(r) {
		h.enqueued(w, r, domain.JobGenerateProposal, map[string]string{
			"lead_id":     body.LeadID,
			"tenant_id":   body.TenantID,
			"type":        body.Type,
			"analysis_id": body.AnalysisID,
		})
		return
	}
	p, err := h.offers.GenerateProposal(r.Context(), body.LeadID, body.TenantID, body.Type, body.AnalysisID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, p)
}

// JobGenerateOffer runs or enqueues offer composition.
func (h *Handlers) JobGenerateOffer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LeadID     string `json:"leadId"`
		ProposalID string `json:"proposalId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if body.LeadID == "" {
		httputil.BadRequest(w, "leadId is required")
		return
	}

	if wantsAsync(r) {
		h.enqueued(w, r, domain.JobGenerateOffer, map[string]string{
			"lead_id":     body.LeadID,
			"proposal_id": body.ProposalID,
		})
		return
	}
	o, err := h.offers.Generate(r.Context(), body.LeadID, body.ProposalID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// JobSyncCompanyByICO runs or enqueues a business-register sync.
func (h *Handlers) JobSyncCompanyByICO(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ICOs []string `json:"icos"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	if len(body.ICOs) == 0 {
		httputil.BadRequest(w, "icos is required")
		return
	}

	if wantsAsync(r) {
		h.enqueued(w, r, domain.JobSyncCompanyByICO, map[string][]string{"icos": body.ICOs})
		return
	}
	report, err := h.ares.SyncByICO(r.Context(), body.ICOs)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, report)
}
