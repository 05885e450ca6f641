package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/logger"
)

// transparentGIF is a 1x1 transparent GIF, served on every pixel fetch.
var transparentGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Enqueuer dispatches tracking events onto the job transport so the HTTP
// surface never blocks on offer updates.
type Enqueuer interface {
	EnqueueDefault(ctx context.Context, kind domain.JobKind, payload interface{}) (int64, error)
}

// Handlers exposes the public tracking endpoints. Open and click respond
// immediately and defer processing to the high-priority queue; unsubscribe
// is processed inline because the user is waiting for the confirmation.
type Handlers struct {
	svc    *Service
	queue  Enqueuer
	client *http.Client
	log    *logger.Logger
}

// NewHandlers wires the tracking HTTP surface.
func NewHandlers(svc *Service, queue Enqueuer) *Handlers {
	return &Handlers{
		svc:    svc,
		queue:  queue,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger.With("tracking_http"),
	}
}

// Mount attaches the tracking routes to a router.
func (h *Handlers) Mount(r chi.Router) {
	r.Get("/api/track/open/{token}", h.Open)
	r.Get("/api/track/click/{token}", h.Click)
	r.Post("/api/webhooks/email-events", h.ProviderCallback)
	r.Get("/unsubscribe/{token}", h.UnsubscribeForm)
	r.Post("/unsubscribe/{token}", h.UnsubscribeConfirm)
}

// Open serves the tracking pixel. Invalid tokens still get the GIF so the
// endpoint leaks nothing about which tokens exist.
func (h *Handlers) Open(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	h.enqueue(r.Context(), &Event{Kind: EventOpen, Token: token})

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(transparentGIF)
}

// Click validates the target URL and redirects. Only http and https schemes
// pass; anything else is a 400. Invalid tokens still redirect.
func (h *Handlers) Click(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	target := r.URL.Query().Get("url")

	parsed, err := url.Parse(target)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		http.Error(w, "invalid redirect url", http.StatusBadRequest)
		return
	}

	h.enqueue(r.Context(), &Event{Kind: EventClick, Token: token})
	http.Redirect(w, r, target, http.StatusFound)
}

// ProviderCallback ingests provider webhook notifications. Always answers
// 200 for well-formed envelopes; unknown types are reported as ignored.
func (h *Handlers) ProviderCallback(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	result, events, err := ParseProviderCallback(body)
	if err != nil {
		http.Error(w, "malformed callback", http.StatusBadRequest)
		return
	}
	if result == ResultSubscriptionConfirmed {
		h.confirmSubscription(r.Context(), body)
	}
	for _, ev := range events {
		h.enqueue(r.Context(), ev)
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status":%q}`, result)
}

// confirmSubscription completes the provider's topic handshake by fetching
// the envelope's SubscribeURL. Failures are logged, never surfaced; the
// provider re-delivers the confirmation until it succeeds.
func (h *Handlers) confirmSubscription(ctx context.Context, body []byte) {
	var env struct {
		SubscribeURL string `json:"SubscribeURL"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.SubscribeURL == "" {
		h.log.Warn("subscription confirmation without subscribe url")
		return
	}
	if err := validateSubscribeURL(env.SubscribeURL); err != nil {
		h.log.Warn("subscription confirmation with suspicious subscribe url", "error", err.Error())
		return
	}
	if err := fetchConfirmation(ctx, h.client, env.SubscribeURL); err != nil {
		h.log.Error("subscription confirmation fetch failed", "error", err.Error())
		return
	}
	h.log.Info("provider subscription confirmed")
}

// validateSubscribeURL accepts only HTTPS URLs on SNS endpoint hosts, so a
// forged callback cannot make the server fetch an arbitrary URL.
func validateSubscribeURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return domain.Wrap(domain.KindInvalidInput, "parse subscribe url", err)
	}
	host := strings.ToLower(u.Hostname())
	if u.Scheme != "https" || !strings.HasPrefix(host, "sns.") || !strings.HasSuffix(host, ".amazonaws.com") {
		return domain.Ef(domain.KindInvalidInput, "subscribe url host %q is not a provider endpoint", host)
	}
	return nil
}

func fetchConfirmation(ctx context.Context, client *http.Client, rawURL string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return domain.Ef(domain.KindUpstreamUnavailable, "confirm subscription: status %d", resp.StatusCode)
	}
	return nil
}

func (h *Handlers) enqueue(ctx context.Context, ev *Event) {
	if _, err := h.queue.EnqueueDefault(ctx, domain.JobProcessTrackingEvent, ev); err != nil {
		// Losing a tracking event is preferable to failing the public endpoint.
		h.log.Error("enqueue tracking event failed", "kind", ev.Kind, "error", err.Error())
	}
}

// UnsubscribeForm renders the confirmation form.
func (h *Handlers) UnsubscribeForm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, unsubscribeFormHTML, html.EscapeString(token))
}

// UnsubscribeConfirm processes the unsubscribe. Repeated submissions are
// idempotent.
func (h *Handlers) UnsubscribeConfirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.svc.Unsubscribe(r.Context(), token); err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, unsubscribeUnknownHTML)
			return
		}
		h.log.Error("unsubscribe failed", "error", err.Error())
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, unsubscribeErrorHTML)
		return
	}
	io.WriteString(w, unsubscribeDoneHTML)
}

const unsubscribeFormHTML = `<!DOCTYPE html>
<html lang="cs"><head><meta charset="utf-8"><title>Odhlášení odběru</title></head>
<body>
<h1>Odhlášení odběru</h1>
<p>Opravdu se chcete odhlásit z dalších nabídek?</p>
<form method="post" action="/unsubscribe/%s">
  <button type="submit">Odhlásit</button>
</form>
</body></html>`

const unsubscribeDoneHTML = `<!DOCTYPE html>
<html lang="cs"><head><meta charset="utf-8"><title>Odhlášeno</title></head>
<body><h1>Hotovo</h1><p>Byli jste odhlášeni. Další nabídky vám už nepošleme.</p></body></html>`

const unsubscribeUnknownHTML = `<!DOCTYPE html>
<html lang="cs"><head><meta charset="utf-8"><title>Neznámý odkaz</title></head>
<body><h1>Neznámý odkaz</h1><p>Tento odhlašovací odkaz není platný.</p></body></html>`

const unsubscribeErrorHTML = `<!DOCTYPE html>
<html lang="cs"><head><meta charset="utf-8"><title>Chyba</title></head>
<body><h1>Chyba</h1><p>Odhlášení se nepodařilo, zkuste to prosím později.</p></body></html>`
