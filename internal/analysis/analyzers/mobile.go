package analyzers

import (
	"context"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const mobileMaxScore = 15

// MobileAnalyzer checks basic mobile readiness signals.
type MobileAnalyzer struct {
	fetcher *Fetcher
}

func NewMobileAnalyzer(fetcher *Fetcher) *MobileAnalyzer { return &MobileAnalyzer{fetcher: fetcher} }

func (a *MobileAnalyzer) Category() string  { return "mobile" }
func (a *MobileAnalyzer) Priority() int     { return 40 }
func (a *MobileAnalyzer) IsUniversal() bool { return true }
func (a *MobileAnalyzer) Industry() string  { return "" }

func (a *MobileAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue
	hasViewport := page.Doc.Find(`head meta[name="viewport"]`).Length() > 0
	if !hasViewport {
		issues = append(issues, domain.Issue{Code: "NO_VIEWPORT_META", Severity: domain.SeverityHigh})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(mobileMaxScore, issues),
		RawData: map[string]interface{}{"viewport": hasViewport},
	}, nil
}
