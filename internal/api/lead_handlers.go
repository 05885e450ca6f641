package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
)

// LeadAnalyses lists a lead's analyses newest first. limit is clamped to
// [1,100] with a default of 20.
func (h *Handlers) LeadAnalyses(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	if _, err := h.analyses.GetLead(r.Context(), leadID); err != nil {
		writeErr(w, h.log, err)
		return
	}
	analyses, total, err := h.analyses.ListAnalyses(r.Context(), leadID, limit, offset)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Analyses []domain.Analysis `json:"analyses"`
		Total    int               `json:"total"`
		Limit    int               `json:"limit"`
		Offset   int               `json:"offset"`
	}{analyses, total, limit, offset})
}

// LeadTrend returns a lead's snapshot history for one period type.
func (h *Handlers) LeadTrend(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	period := domain.PeriodType(r.URL.Query().Get("period"))
	limit := queryInt(r, "limit", 20)

	snapshots, err := h.snapshots.Trend(r.Context(), leadID, period, limit)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Snapshots []domain.Snapshot `json:"snapshots"`
	}{snapshots})
}

// LeadBenchmark returns the lead, its latest analysis and the industry
// benchmark. 404 without an analysis, 400 without an industry.
func (h *Handlers) LeadBenchmark(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "id")
	lead, err := h.analyses.GetLead(r.Context(), leadID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	analysis, err := h.analyses.LatestAnalysis(r.Context(), leadID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	if analysis == nil {
		httputil.NotFound(w, "lead has no analysis yet")
		return
	}
	if lead.Industry == "" {
		httputil.BadRequest(w, "lead has no industry set")
		return
	}

	benchmark, err := h.snapshots.LatestBenchmark(r.Context(), lead.TenantID, lead.Industry)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Lead      *domain.Lead      `json:"lead"`
		Analysis  *domain.Analysis  `json:"analysis"`
		Benchmark *domain.Benchmark `json:"benchmark"`
	}{lead, analysis, benchmark})
}

// IssueCodes returns the issue code registry loaded at startup.
func (h *Handlers) IssueCodes(w http.ResponseWriter, _ *http.Request) {
	httputil.OK(w, struct {
		Codes []domain.IssueCode `json:"codes"`
	}{h.issueCodes.List()})
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
