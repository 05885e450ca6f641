package api

import (
	"net/http"
	"strings"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httputil"
)

// SuppressionList returns suppression entries: global ones by default, a
// tenant's unsubscribes when tenantId is given.
func (h *Handlers) SuppressionList(w http.ResponseWriter, r *http.Request) {
	tenantID := strings.TrimSpace(r.URL.Query().Get("tenantId"))
	limit := queryInt(r, "limit", 100)

	var (
		entries []domain.SuppressionEntry
		err     error
	)
	if tenantID != "" {
		entries, err = h.suppression.ListUnsubscribes(r.Context(), tenantID, limit)
	} else {
		entries, err = h.suppression.ListGlobal(r.Context(), limit)
	}
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.OK(w, struct {
		Entries []domain.SuppressionEntry `json:"entries"`
	}{entries})
}

// SuppressionAdd blocks an address, globally or for one tenant.
func (h *Handlers) SuppressionAdd(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		Reason   string `json:"reason,omitempty"`
		TenantID string `json:"tenantId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}
	reason := domain.SuppressionReason(body.Reason)
	if reason == "" {
		reason = domain.ReasonManual
	}

	entry, err := h.suppression.Add(r.Context(), body.Email, reason, body.TenantID, "api")
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	httputil.Created(w, entry)
}

// SuppressionRemove lifts a block. 404 when no entry matches.
func (h *Handlers) SuppressionRemove(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email    string `json:"email"`
		TenantID string `json:"tenantId,omitempty"`
	}
	if !httputil.Decode(w, r, &body) {
		return
	}

	removed, err := h.suppression.Remove(r.Context(), body.Email, body.TenantID)
	if err != nil {
		writeErr(w, h.log, err)
		return
	}
	if !removed {
		httputil.NotFound(w, "no suppression entry for this address")
		return
	}
	httputil.NoContent(w)
}
