package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
	"github.com/mesour/brick-offers-sub004/internal/service/ratelimit"
)

// OfferSubmit moves a draft offer into approval.
func (h *Handlers) OfferSubmit(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// OfferApprove approves a pending offer for sending.
func (h *Handlers) OfferApprove(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// OfferReject rejects a pending offer with a reason.
func (h *Handlers) OfferReject(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Reason string `json:"reason"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	o, err := h.offers.Reject(r.Context(), chi.URLParam(r, "id"), body.Reason)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// OfferResponded records a reply from the recipient.
func (h *Handlers) OfferResponded(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.MarkResponded(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// OfferConverted records a closed deal.
func (h *Handlers) OfferConverted(w http.ResponseWriter, r *http.Request) {
	o, err := h.offers.MarkConverted(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, o)
}

// OfferPreview returns the composed content without sending.
func (h *Handlers) OfferPreview(w http.ResponseWriter, r *http.Request) {
	p, err := h.offers.Preview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, p)
}

// RateLimits evaluates the sending budget for a tenant, optionally against
// one recipient domain.
func (h *Handlers) RateLimits(w http.ResponseWriter, r *http.Request) {
	userCode := strings.TrimSpace(r.URL.Query().Get("userCode"))
	if userCode == "" {
		httputil.BadRequest(w, "userCode is required")
		return
	}
	recipientDomain := strings.TrimSpace(r.URL.Query().Get("domain"))

	tenant, err := h.offerRepo.GetTenantByUserCode(r.Context(), userCode)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	decision, err := h.rateLimits.Evaluate(r.Context(), tenant, recipientDomain)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}

	resp := struct {
		User      string              `json:"user"`
		Domain    string              `json:"domain,omitempty"`
		Limits    domain.RateLimits   `json:"limits"`
		Usage     ratelimit.Usage     `json:"usage"`
		Remaining ratelimit.Remaining `json:"remaining"`
	}{
		User:      tenant.UserCode,
		Domain:    recipientDomain,
		Limits:    decision.Limits,
		Usage:     decision.Usage,
		Remaining: decision.Remaining,
	}
	httputil.OK(w, resp)
}
