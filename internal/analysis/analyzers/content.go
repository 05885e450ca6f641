package analyzers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const contentMaxScore = 15

var (
	emailPattern     = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern     = regexp.MustCompile(`\+?\d[\d\s/-]{7,}\d`)
	copyrightPattern = regexp.MustCompile(`(?:©|&copy;|\(c\)|copyright)\s*(\d{4})`)
)

// ContentAnalyzer looks for contact information, structured data and stale
// copyright notices.
type ContentAnalyzer struct {
	fetcher *Fetcher
}

func NewContentAnalyzer(fetcher *Fetcher) *ContentAnalyzer {
	return &ContentAnalyzer{fetcher: fetcher}
}

func (a *ContentAnalyzer) Category() string  { return "content" }
func (a *ContentAnalyzer) Priority() int     { return 50 }
func (a *ContentAnalyzer) IsUniversal() bool { return true }
func (a *ContentAnalyzer) Industry() string  { return "" }

func (a *ContentAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue
	text := page.Doc.Text()

	hasEmail := emailPattern.MatchString(text)
	hasPhone := phonePattern.MatchString(text)
	if !hasEmail && !hasPhone {
		issues = append(issues, domain.Issue{Code: "MISSING_CONTACT_INFO", Severity: domain.SeverityMedium})
	}

	if m := copyrightPattern.FindStringSubmatch(text); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil && year < time.Now().Year()-1 {
			issues = append(issues, domain.Issue{
				Code: "OUTDATED_COPYRIGHT", Severity: domain.SeverityInfo,
				Evidence: fmt.Sprintf("copyright year %d", year),
			})
		}
	}

	if page.Doc.Find(`script[type="application/ld+json"]`).Length() == 0 {
		issues = append(issues, domain.Issue{Code: "NO_STRUCTURED_DATA", Severity: domain.SeverityLow})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(contentMaxScore, issues),
		RawData: map[string]interface{}{
			"hasEmail": hasEmail,
			"hasPhone": hasPhone,
		},
	}, nil
}
