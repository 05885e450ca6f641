package analyzers

import (
	"context"
	"fmt"
	"time"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const (
	performanceMaxScore = 25
	slowResponse        = 1500 * time.Millisecond
	maxPageBytes        = 3 << 20 // 3 MB
	maxResourceCount    = 80
)

// PerformanceAnalyzer measures response time, page weight and resource count.
type PerformanceAnalyzer struct {
	fetcher *Fetcher
}

func NewPerformanceAnalyzer(fetcher *Fetcher) *PerformanceAnalyzer {
	return &PerformanceAnalyzer{fetcher: fetcher}
}

func (a *PerformanceAnalyzer) Category() string  { return "performance" }
func (a *PerformanceAnalyzer) Priority() int     { return 30 }
func (a *PerformanceAnalyzer) IsUniversal() bool { return true }
func (a *PerformanceAnalyzer) Industry() string  { return "" }

func (a *PerformanceAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue

	if page.Duration > slowResponse {
		issues = append(issues, domain.Issue{
			Code: "SLOW_RESPONSE", Severity: domain.SeverityHigh,
			Evidence: page.Duration.Round(time.Millisecond).String(),
		})
	}
	if page.BodySize > maxPageBytes {
		issues = append(issues, domain.Issue{
			Code: "PAGE_TOO_LARGE", Severity: domain.SeverityMedium,
			Evidence: fmt.Sprintf("%d bytes", page.BodySize),
		})
	}

	resources := page.Doc.Find("script[src], link[href], img[src]").Length()
	if resources > maxResourceCount {
		issues = append(issues, domain.Issue{
			Code: "TOO_MANY_REQUESTS", Severity: domain.SeverityLow,
			Evidence: fmt.Sprintf("%d resources", resources),
		})
	}

	if page.Header.Get("Content-Encoding") == "" {
		issues = append(issues, domain.Issue{Code: "NO_COMPRESSION", Severity: domain.SeverityMedium})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(performanceMaxScore, issues),
		RawData: map[string]interface{}{
			"durationMs": page.Duration.Milliseconds(),
			"bodyBytes":  page.BodySize,
			"resources":  resources,
		},
	}, nil
}
