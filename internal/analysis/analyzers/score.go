package analyzers

import "github.com/mesour/brick-offers-sub004/internal/domain"

// severityPenalty is subtracted from a category's maximum score per issue.
var severityPenalty = map[domain.IssueSeverity]int{
	domain.SeverityCritical: 10,
	domain.SeverityHigh:     6,
	domain.SeverityMedium:   3,
	domain.SeverityLow:      1,
	domain.SeverityInfo:     0,
}

// scoreFromIssues computes a category score: max minus per-issue penalties,
// floored at zero.
func scoreFromIssues(max int, issues []domain.Issue) int {
	score := max
	for _, is := range issues {
		score -= severityPenalty[is.Severity]
	}
	if score < 0 {
		return 0
	}
	return score
}
