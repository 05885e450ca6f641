package tracking

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

type captureEnqueuer struct {
	events []*Event
}

func (c *captureEnqueuer) EnqueueDefault(_ context.Context, kind domain.JobKind, payload interface{}) (int64, error) {
	if kind != domain.JobProcessTrackingEvent {
		panic("unexpected job kind " + string(kind))
	}
	c.events = append(c.events, payload.(*Event))
	return int64(len(c.events)), nil
}

func handlerFixture(t *testing.T) (*chi.Mux, *fixture, *captureEnqueuer) {
	t.Helper()
	f := newFixture()
	q := &captureEnqueuer{}
	r := chi.NewRouter()
	NewHandlers(f.svc, q).Mount(r)
	return r, f, q
}

func TestOpenPixelResponse(t *testing.T) {
	r, _, q := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/track/open/tok1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/gif", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache, no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, transparentGIF, rec.Body.Bytes())
	require.Len(t, q.events, 1)
	assert.Equal(t, EventOpen, q.events[0].Kind)
	assert.Equal(t, "tok1", q.events[0].Token)
}

func TestOpenPixelUnknownTokenStillServesGIF(t *testing.T) {
	r, _, _ := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/track/open/does-not-exist", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, transparentGIF, rec.Body.Bytes())
}

func TestClickRedirects(t *testing.T) {
	r, _, q := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/track/click/tok1?url=https%3A%2F%2Ffirma.cz%2Fpage", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://firma.cz/page", rec.Header().Get("Location"))
	require.Len(t, q.events, 1)
	assert.Equal(t, EventClick, q.events[0].Kind)
}

func TestClickRejectsBadSchemes(t *testing.T) {
	r, _, q := handlerFixture(t)

	for _, target := range []string{
		"javascript%3Aalert(1)",
		"data%3Atext%2Fhtml%3Bbase64%2Cx",
		"ftp%3A%2F%2Ffirma.cz",
		"",
	} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
			"/api/track/click/tok1?url="+target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %q must be rejected", target)
	}
	assert.Empty(t, q.events, "rejected clicks record nothing")
}

func TestClickUnknownTokenStillRedirects(t *testing.T) {
	r, _, _ := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet,
		"/api/track/click/does-not-exist?url=https%3A%2F%2Ffirma.cz", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://firma.cz", rec.Header().Get("Location"))
}

func TestProviderCallbackEndpoint(t *testing.T) {
	r, _, q := handlerFixture(t)

	body := `{"Type":"Notification","Message":"{\"notificationType\":\"Delivery\",\"mail\":{\"messageId\":\"msg1\"}}"}`
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/webhooks/email-events", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"handled"}`, rec.Body.String())
	require.Len(t, q.events, 1)
	assert.Equal(t, EventDelivery, q.events[0].Kind)
}

func TestProviderCallbackSubscriptionConfirmation(t *testing.T) {
	r, _, q := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/webhooks/email-events", strings.NewReader(`{"Type":"SubscriptionConfirmation"}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"subscription_confirmed"}`, rec.Body.String())
	assert.Empty(t, q.events)
}

func TestValidateSubscribeURL(t *testing.T) {
	assert.NoError(t, validateSubscribeURL(
		"https://sns.eu-west-1.amazonaws.com/?Action=ConfirmSubscription&Token=abc"))

	for _, raw := range []string{
		"http://sns.eu-west-1.amazonaws.com/?Action=ConfirmSubscription",
		"https://evil.example.com/confirm",
		"https://sns.eu-west-1.amazonaws.com.evil.example.com/confirm",
		"https://notsns.amazonaws.com/confirm",
		"::bad::url",
	} {
		assert.Error(t, validateSubscribeURL(raw), "url %q must be rejected", raw)
	}
}

func TestFetchConfirmationHitsSubscribeURL(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/confirm", r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, fetchConfirmation(context.Background(), srv.Client(), srv.URL+"/confirm"))
	assert.Equal(t, 1, hits)
}

func TestFetchConfirmationReportsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	err := fetchConfirmation(context.Background(), srv.Client(), srv.URL)
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
}

func TestSubscriptionConfirmationRejectsForeignHost(t *testing.T) {
	// A SubscribeURL outside the provider's endpoints must never be fetched.
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("confirmation fetched a non-provider url")
	}))
	defer srv.Close()

	r, _, _ := handlerFixture(t)
	body := fmt.Sprintf(`{"Type":"SubscriptionConfirmation","SubscribeURL":%q}`, srv.URL)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost,
		"/api/webhooks/email-events", strings.NewReader(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnsubscribeFlow(t *testing.T) {
	r, f, _ := handlerFixture(t)
	f.sentOffer("O1", "tok1", "msg1")

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/unsubscribe/tok1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `action="/unsubscribe/tok1"`)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/unsubscribe/tok1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	_, ok := f.suppression.entries[suppressionKey("info@firma.cz", "T1")]
	assert.True(t, ok)
}

func TestUnsubscribeUnknownTokenIs404(t *testing.T) {
	r, _, _ := handlerFixture(t)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/unsubscribe/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
