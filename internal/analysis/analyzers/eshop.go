package analyzers

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/mesour/brick-offers-sub004/internal/analysis"
	"github.com/mesour/brick-offers-sub004/internal/domain"
)

const eshopMaxScore = 20

// eshopSignals are substrings in links, classes or platform generators that
// identify a shop.
var eshopSignals = []string{
	"cart", "basket", "kosik", "checkout", "add-to-cart", "addtocart",
	"shopify", "woocommerce", "prestashop", "shoptet",
}

// EshopDetector is the sentinel analyzer: it decides isEshop for the whole
// analysis via its rawData. Runs first so later analyzers could consult the
// flag if they ever need to.
type EshopDetector struct {
	fetcher *Fetcher
}

func NewEshopDetector(fetcher *Fetcher) *EshopDetector { return &EshopDetector{fetcher: fetcher} }

func (a *EshopDetector) Category() string  { return analysis.CategoryEshopDetection }
func (a *EshopDetector) Priority() int     { return 5 }
func (a *EshopDetector) IsUniversal() bool { return true }
func (a *EshopDetector) Industry() string  { return "" }

func (a *EshopDetector) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	isEshop := detectEshop(page.Doc)
	return &analysis.Result{
		Success: true,
		Score:   0, // detection carries no score of its own
		RawData: map[string]interface{}{analysis.RawKeyIsEshop: isEshop},
	}, nil
}

// EshopAnalyzer runs only for the eshop industry and checks shop-specific
// completeness: cart reachability, payment and return policy info.
type EshopAnalyzer struct {
	fetcher *Fetcher
}

func NewEshopAnalyzer(fetcher *Fetcher) *EshopAnalyzer { return &EshopAnalyzer{fetcher: fetcher} }

func (a *EshopAnalyzer) Category() string  { return "eshop" }
func (a *EshopAnalyzer) Priority() int     { return 60 }
func (a *EshopAnalyzer) IsUniversal() bool { return false }
func (a *EshopAnalyzer) Industry() string  { return "eshop" }

func (a *EshopAnalyzer) Analyze(ctx context.Context, lead *domain.Lead) (*analysis.Result, error) {
	page, err := a.fetcher.Fetch(ctx, lead.URL)
	if err != nil {
		return nil, err
	}

	var issues []domain.Issue
	doc := page.Doc
	text := strings.ToLower(doc.Text())

	if !hasLinkContaining(doc, "cart", "basket", "kosik", "checkout") {
		issues = append(issues, domain.Issue{Code: "ESHOP_NO_CART", Severity: domain.SeverityHigh})
	}
	if !strings.Contains(text, "payment") && !strings.Contains(text, "platba") &&
		!strings.Contains(text, "visa") && !strings.Contains(text, "paypal") {
		issues = append(issues, domain.Issue{Code: "ESHOP_NO_PAYMENT_INFO", Severity: domain.SeverityMedium})
	}
	if !strings.Contains(text, "return") && !strings.Contains(text, "refund") &&
		!strings.Contains(text, "reklamace") && !strings.Contains(text, "vraceni") {
		issues = append(issues, domain.Issue{Code: "ESHOP_NO_RETURN_POLICY", Severity: domain.SeverityMedium})
	}

	return &analysis.Result{
		Success: true,
		Issues:  issues,
		Score:   scoreFromIssues(eshopMaxScore, issues),
		RawData: map[string]interface{}{},
	}, nil
}

func detectEshop(doc *goquery.Document) bool {
	html, err := doc.Html()
	if err != nil {
		return false
	}
	lower := strings.ToLower(html)
	for _, signal := range eshopSignals {
		if strings.Contains(lower, signal) {
			return true
		}
	}
	return false
}

func hasLinkContaining(doc *goquery.Document, needles ...string) bool {
	found := false
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		href = strings.ToLower(href)
		for _, n := range needles {
			if strings.Contains(href, n) {
				found = true
				return false
			}
		}
		return true
	})
	return found
}
