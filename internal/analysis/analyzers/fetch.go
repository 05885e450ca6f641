// Package analyzers provides the built-in analyzer set: SEO, security
// headers, performance, mobile readiness, content and eshop detection.
package analyzers

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Page is one fetched lead page with its parsed document.
type Page struct {
	URL        *url.URL
	StatusCode int
	Header     http.Header
	BodySize   int
	Doc        *goquery.Document
	Duration   time.Duration
}

// Fetcher downloads and parses lead pages.
type Fetcher struct {
	client *http.Client
}

// NewFetcher creates a fetcher with the given per-request timeout.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
	}
}

// Fetch downloads the URL and parses the HTML. Failures are classified
// upstream-unavailable so the pipeline records them as analyzer failures.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalidInput, "invalid lead url", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.Wrap(domain.KindInvalidInput, "build request", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; OfferBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "fetch page", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "read page body", err)
	}
	duration := time.Since(start)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "parse html", err)
	}

	finalURL := u
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL
	}
	return &Page{
		URL:        finalURL,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		BodySize:   len(body),
		Doc:        doc,
		Duration:   duration,
	}, nil
}
