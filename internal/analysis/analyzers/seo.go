package analyzers

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const seoMaxScore = 30

// SEOAnalyzer inspects title, meta description, headings, alt texts and
// indexability.
type SEOAnalyzer struct {
	fetcher *Fetcher
}

func NewSEOAnalyzer(fetcher *Fetcher) *SEOAnalyzer { return &SEOAnalyzer{fetcher: fetcher} }

func (a *SEOAnalyzer) Category() string  { return "seo" }
func (a *SEOAnalyzer) Priority() int     { return 10 }
func (a *SEOAnalyzer) IsUniversal() bool { return true }
func (a *SEOAnalyzer) Industry() string  { return "" }

func (a *SEOAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue
	doc := page.Doc

	title := strings.TrimSpace(doc.Find("head title").First().Text())
	if title == "" {
		issues = append(issues, domain.Issue{Code: "MISSING_TITLE", Severity: domain.SeverityCritical})
	} else if len(title) > 60 {
		issues = append(issues, domain.Issue{
			Code: "TITLE_TOO_LONG", Severity: domain.SeverityMedium,
			Evidence: fmt.Sprintf("%d characters", len(title)),
		})
	}

	if desc, ok := doc.Find(`head meta[name="description"]`).Attr("content"); !ok || strings.TrimSpace(desc) == "" {
		issues = append(issues, domain.Issue{Code: "MISSING_META_DESCRIPTION", Severity: domain.SeverityHigh})
	}

	h1Count := doc.Find("h1").Length()
	switch {
	case h1Count == 0:
		issues = append(issues, domain.Issue{Code: "MISSING_H1", Severity: domain.SeverityHigh})
	case h1Count > 1:
		issues = append(issues, domain.Issue{
			Code: "MULTIPLE_H1", Severity: domain.SeverityLow,
			Evidence: fmt.Sprintf("%d h1 elements", h1Count),
		})
	}

	missingAlt := 0
	totalImages := 0
	doc.Find("img").Each(func(_ int, sel *goquery.Selection) {
		totalImages++
		if alt, ok := sel.Attr("alt"); !ok || strings.TrimSpace(alt) == "" {
			missingAlt++
		}
	})
	if missingAlt > 0 {
		issues = append(issues, domain.Issue{
			Code: "IMAGES_MISSING_ALT", Severity: domain.SeverityMedium,
			Evidence: fmt.Sprintf("%d of %d images", missingAlt, totalImages),
		})
	}

	if doc.Find(`head link[rel="canonical"]`).Length() == 0 {
		issues = append(issues, domain.Issue{Code: "NO_CANONICAL", Severity: domain.SeverityLow})
	}

	if robots, ok := doc.Find(`head meta[name="robots"]`).Attr("content"); ok &&
		strings.Contains(strings.ToLower(robots), "noindex") {
		issues = append(issues, domain.Issue{
			Code: "NOINDEX_SET", Severity: domain.SeverityCritical, Evidence: robots,
		})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(seoMaxScore, issues),
		RawData: map[string]interface{}{
			"title":       title,
			"h1Count":     h1Count,
			"imageCount":  totalImages,
			"missingAlt":  missingAlt,
			"statusCode":  page.StatusCode,
		},
	}, nil
}
