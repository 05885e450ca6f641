// Package scoring maps a completed analysis outcome to a lead qualification
// status. The mapping is a pure function of total score, critical issue count
// and eshop detection; thresholds come from tenant configuration.
package scoring

import "github.com/mesour/brick-offers-sub004/internal/domain"

// MapStatus decides the target lead status for a completed analysis.
// Eshops get a bonus on top of the raw score because a working shop signals
// budget. Too many critical issues keep a lead out of the qualified buckets
// no matter the score.
func MapStatus(totalScore, criticalIssueCount int, isEshop bool, t domain.ScoringThresholds) domain.LeadStatus {
	effective := totalScore
	if isEshop {
		effective += t.EshopBonus
	}

	if criticalIssueCount > t.MaxCriticalForQualified {
		if effective < t.MinQualifiedScore {
			return domain.LeadDisqualified
		}
		return domain.LeadNurture
	}

	switch {
	case effective >= t.HotScore:
		return domain.LeadQualifiedHot
	case effective >= t.MinQualifiedScore:
		return domain.LeadQualified
	default:
		return domain.LeadNurture
	}
}

// ShouldApply reports whether a mapped status may overwrite the current one.
// Leads that progressed past qualification (contacted and beyond) keep their
// pipeline status; re-analysis must not pull them back.
func ShouldApply(current domain.LeadStatus) bool {
	switch current {
	case domain.LeadContacted, domain.LeadResponded, domain.LeadConverted:
		return false
	}
	return true
}
