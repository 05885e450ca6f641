package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const catalogPage = `<html><body>
<div class="company-item" data-ico="25596641">
  <a class="company-url" href="https://www.firma.cz/?utm_source=katalog">Firma</a>
  <span class="company-name">Firma s.r.o.</span>
  <a href="mailto:info@firma.cz">mail</a>
</div>
<div class="company-item">
  <a class="company-url" href="https://bistro.example.cz/">Bistro</a>
  <span class="company-name">Bistro u Karla</span>
</div>
<div class="company-item">
  <span class="company-name">listing without a link</span>
</div>
</body></html>`

func TestCatalogSourceParsesListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "restaurace praha", r.URL.Query().Get("q"))
		w.Write([]byte(catalogPage))
	}))
	defer srv.Close()

	src := NewCatalogSource("catalog", srv.URL, srv.Client())
	results, err := src.Discover(context.Background(), "restaurace praha", 10)

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "https://www.firma.cz/?utm_source=katalog", results[0].URL)
	assert.Equal(t, "Firma s.r.o.", results[0].CompanyName)
	assert.Equal(t, "25596641", results[0].ICO)
	assert.Equal(t, "info@firma.cz", results[0].ContactEmail)
	assert.Empty(t, results[1].ICO)
}

func TestCatalogSourceHonorsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(catalogPage))
	}))
	defer srv.Close()

	src := NewCatalogSource("catalog", srv.URL, srv.Client())
	results, err := src.Discover(context.Background(), "x", 1)

	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestCatalogSourceOutageIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	src := NewCatalogSource("catalog", srv.URL, srv.Client())
	_, err := src.Discover(context.Background(), "x", 10)

	require.Error(t, err)
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
}
