package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/mesour/brick-offers-sub004/internal/domain"
	"github.com/mesour/brick-offers-sub004/internal/pkg/httpretry"
)

// CatalogSource scrapes a business directory's search results page. Each
// listing is a ".company-item" element carrying the company site link, the
// display name, an optional data-ico attribute and an optional mailto link.
type CatalogSource struct {
	name    string
	baseURL string
	http    httpretry.HTTPDoer
}

// NewCatalogSource creates a directory scraper source. A nil doer gets a
// retrying client with a 20s per-request timeout.
func NewCatalogSource(name, baseURL string, doer httpretry.HTTPDoer) *CatalogSource {
	if doer == nil {
		doer = httpretry.NewRetryClient(&http.Client{Timeout: 20 * time.Second}, 3)
	}
	return &CatalogSource{name: name, baseURL: strings.TrimRight(baseURL, "/"), http: doer}
}

// Name implements Source.
func (s *CatalogSource) Name() string { return s.name }

// Discover runs one directory search and parses up to limit listings.
// Directory outages map to UpstreamUnavailable so batch runs retry.
func (s *CatalogSource) Discover(ctx context.Context, query string, limit int) ([]Result, error) {
	target := s.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/html")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "catalog search", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, domain.Ef(domain.KindUpstreamUnavailable, "catalog returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, domain.Wrap(domain.KindUpstreamUnavailable, "parse catalog page", err)
	}

	var results []Result
	doc.Find(".company-item").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, ok := sel.Find("a.company-url").Attr("href")
		if !ok || href == "" {
			return true
		}
		r := Result{
			URL:         href,
			CompanyName: strings.TrimSpace(sel.Find(".company-name").Text()),
		}
		if ico, ok := sel.Attr("data-ico"); ok {
			r.ICO = strings.TrimSpace(ico)
		}
		if mailto, ok := sel.Find(`a[href^="mailto:"]`).Attr("href"); ok {
			r.ContactEmail = strings.TrimPrefix(mailto, "mailto:")
		}
		results = append(results, r)
		return limit <= 0 || len(results) < limit
	})
	return results, nil
}
