package analyzers

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const securityMaxScore = 25

// SecurityAnalyzer checks transport security and response headers.
type SecurityAnalyzer struct {
	fetcher *Fetcher
}

func NewSecurityAnalyzer(fetcher *Fetcher) *SecurityAnalyzer {
	return &SecurityAnalyzer{fetcher: fetcher}
}

func (a *SecurityAnalyzer) Category() string  { return "security" }
func (a *SecurityAnalyzer) Priority() int     { return 20 }
func (a *SecurityAnalyzer) IsUniversal() bool { return true }
func (a *SecurityAnalyzer) Industry() string  { return "" }

func (a *SecurityAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue
	https := page.URL.Scheme == "https"

	if !https {
		issues = append(issues, domain.Issue{Code: "NO_HTTPS", Severity: domain.SeverityCritical})
	} else {
		if mixed := mixedContentSources(page.Doc); mixed != "" {
			issues = append(issues, domain.Issue{
				Code: "MIXED_CONTENT", Severity: domain.SeverityHigh, Evidence: mixed,
			})
		}
		if page.Header.Get("Strict-Transport-Security") == "" {
			issues = append(issues, domain.Issue{Code: "MISSING_HSTS", Severity: domain.SeverityMedium})
		}
	}
	if page.Header.Get("Content-Security-Policy") == "" {
		issues = append(issues, domain.Issue{Code: "MISSING_CSP", Severity: domain.SeverityLow})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(securityMaxScore, issues),
		RawData: map[string]interface{}{
			"https": https,
			"hsts":  page.Header.Get("Strict-Transport-Security") != "",
			"csp":   page.Header.Get("Content-Security-Policy") != "",
		},
	}, nil
}

// mixedContentSources returns the first http:// resource referenced by an
// HTTPS page, or empty when none.
func mixedContentSources(doc *goquery.Document) string {
	found := ""
	doc.Find("script[src], img[src], link[href], iframe[src]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		src, ok := sel.Attr("src")
		if !ok {
			src, _ = sel.Attr("href")
		}
		if strings.HasPrefix(src, "http://") {
			found = src
			return false
		}
		return true
	})
	return found
}
