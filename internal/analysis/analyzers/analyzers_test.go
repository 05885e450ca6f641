package analyzers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

func serve(t *testing.T, html string, headers map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func leadFor(srv *httptest.Server) *domain.Lead {
	return &domain.Lead{ID: "L1", URL: srv.URL}
}

func issueCodes(result *analysis.Result) []string {
	codes := make([]string, 0, len(result.Issues))
	for _, is := range result.Issues {
		codes = append(codes, is.Code)
	}
	return codes
}

func TestSEOAnalyzerFindsMissingElements(t *testing.T) {
	srv := serve(t, `<html><head></head><body><p>no structure</p><img src="a.png"></body></html>`, nil)
	a := NewSEOAnalyzer(NewFetcher(5 * time.Second))

	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)
	require.True(t, result.Success)

	codes := issueCodes(result)
	assert.Contains(t, codes, "MISSING_TITLE")
	assert.Contains(t, codes, "MISSING_META_DESCRIPTION")
	assert.Contains(t, codes, "MISSING_H1")
	assert.Contains(t, codes, "IMAGES_MISSING_ALT")
	assert.Less(t, result.Score, seoMaxScore)
}

func TestSEOAnalyzerCleanPage(t *testing.T) {
	srv := serve(t, `<html><head>
		<title>Short title</title>
		<meta name="description" content="A fine page">
		<link rel="canonical" href="https://example.com/">
	</head><body><h1>One heading</h1><img src="a.png" alt="a"></body></html>`, nil)
	a := NewSEOAnalyzer(NewFetcher(5 * time.Second))

	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)
	assert.Empty(t, result.Issues)
	assert.Equal(t, seoMaxScore, result.Score)
}

func TestSEOAnalyzerNoindex(t *testing.T) {
	srv := serve(t, `<html><head><title>t</title><meta name="robots" content="noindex,nofollow"></head><body><h1>x</h1></body></html>`, nil)
	a := NewSEOAnalyzer(NewFetcher(5 * time.Second))

	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)
	assert.Contains(t, issueCodes(result), "NOINDEX_SET")
}

func TestSecurityAnalyzerPlainHTTP(t *testing.T) {
	srv := serve(t, `<html><body>hi</body></html>`, nil)
	a := NewSecurityAnalyzer(NewFetcher(5 * time.Second))

	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)

	codes := issueCodes(result)
	assert.Contains(t, codes, "NO_HTTPS")
	assert.Contains(t, codes, "MISSING_CSP")
	assert.NotContains(t, codes, "MISSING_HSTS", "HSTS only applies to HTTPS sites")
}

func TestMobileAnalyzerViewport(t *testing.T) {
	a := NewMobileAnalyzer(NewFetcher(5 * time.Second))

	srv := serve(t, `<html><head></head><body></body></html>`, nil)
	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)
	assert.Contains(t, issueCodes(result), "NO_VIEWPORT_META")

	srv2 := serve(t, `<html><head><meta name="viewport" content="width=device-width"></head><body></body></html>`, nil)
	result, err = a.Analyze(context.Background(), leadFor(srv2))
	require.NoError(t, err)
	assert.Empty(t, result.Issues)
	assert.Equal(t, mobileMaxScore, result.Score)
}

func TestEshopDetectorSetsRawData(t *testing.T) {
	a := NewEshopDetector(NewFetcher(5 * time.Second))

	shop := serve(t, `<html><body><a href="/cart">Cart</a></body></html>`, nil)
	result, err := a.Analyze(context.Background(), leadFor(shop))
	require.NoError(t, err)
	assert.Equal(t, true, result.RawData[analysis.RawKeyIsEshop])

	plain := serve(t, `<html><body><p>Just a blog</p></body></html>`, nil)
	result, err = a.Analyze(context.Background(), leadFor(plain))
	require.NoError(t, err)
	assert.Equal(t, false, result.RawData[analysis.RawKeyIsEshop])
}

func TestEshopAnalyzerChecksShopCompleteness(t *testing.T) {
	srv := serve(t, `<html><body><p>Gallery of paintings</p></body></html>`, nil)
	a := NewEshopAnalyzer(NewFetcher(5 * time.Second))

	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)

	codes := issueCodes(result)
	assert.Contains(t, codes, "ESHOP_NO_CART")
	assert.Contains(t, codes, "ESHOP_NO_PAYMENT_INFO")
	assert.Contains(t, codes, "ESHOP_NO_RETURN_POLICY")
}

func TestContentAnalyzerContactInfo(t *testing.T) {
	a := NewContentAnalyzer(NewFetcher(5 * time.Second))

	srv := serve(t, `<html><body><p>Nothing here</p></body></html>`, nil)
	result, err := a.Analyze(context.Background(), leadFor(srv))
	require.NoError(t, err)
	assert.Contains(t, issueCodes(result), "MISSING_CONTACT_INFO")

	srv2 := serve(t, `<html><body><p>Write us: info@example.com</p>
		<script type="application/ld+json">{}</script></body></html>`, nil)
	result, err = a.Analyze(context.Background(), leadFor(srv2))
	require.NoError(t, err)
	assert.NotContains(t, issueCodes(result), "MISSING_CONTACT_INFO")
	assert.NotContains(t, issueCodes(result), "NO_STRUCTURED_DATA")
}

func TestFetcherUnreachableHost(t *testing.T) {
	f := NewFetcher(500 * time.Millisecond)
	_, err := f.Fetch(context.Background(), "http://127.0.0.1:1")
	require.Error(t, err)
	assert.Equal(t, domain.KindUpstreamUnavailable, domain.KindOf(err))
}

func TestRegisterAllSelectsByIndustry(t *testing.T) {
	registry := RegisterAll(5 * time.Second)

	universal := registry.Select(nil, "")
	assert.Len(t, universal, 6, "six universal analyzers")

	eshop := registry.Select(nil, "eshop")
	assert.Len(t, eshop, 7, "eshop industry adds the shop analyzer")
	assert.Equal(t, analysis.CategoryEshopDetection, eshop[0].Category(), "detector runs first")
}
