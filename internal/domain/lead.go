package domain

import "time"

// LeadStatus is the qualification state of a lead in the pipeline.
type LeadStatus string

const (
	LeadNew          LeadStatus = "new"
	LeadAnalyzing    LeadStatus = "analyzing"
	LeadQualifiedHot LeadStatus = "qualified_hot"
	LeadQualified    LeadStatus = "qualified"
	LeadNurture      LeadStatus = "nurture"
	LeadDisqualified LeadStatus = "disqualified"
	LeadContacted    LeadStatus = "contacted"
	LeadResponded    LeadStatus = "responded"
	LeadConverted    LeadStatus = "converted"
)

// Lead is a target business tracked through the pipeline, unique per
// (tenant, domain). URL is stored canonicalized (tracking parameters
// stripped, path and fragment preserved).
type Lead struct {
	ID                 string     `json:"id" db:"id"`
	TenantID           string     `json:"tenant_id" db:"tenant_id"`
	Domain             string     `json:"domain" db:"domain"`
	URL                string     `json:"url" db:"url"`
	Status             LeadStatus `json:"status" db:"status"`
	Industry           string     `json:"industry,omitempty" db:"industry"`
	ICO                string     `json:"ico,omitempty" db:"ico"`
	CompanyName        string     `json:"company_name,omitempty" db:"company_name"`
	ContactEmail       string     `json:"contact_email,omitempty" db:"contact_email"`
	LatestAnalysisID   string     `json:"latest_analysis_id,omitempty" db:"latest_analysis_id"`
	AnalysisCount      int        `json:"analysis_count" db:"analysis_count"`
	AnalyzedAt         *time.Time `json:"analyzed_at,omitempty" db:"analyzed_at"`
	SnapshotPeriod     PeriodType `json:"snapshot_period,omitempty" db:"snapshot_period"`
	DiscoveryProfileID string     `json:"discovery_profile_id,omitempty" db:"discovery_profile_id"`
	CreatedAt          time.Time  `json:"created_at" db:"created_at"`
}

// EffectiveSnapshotPeriod resolves the per-lead override, then the industry
// default. Fast-moving industries snapshot daily; everything else weekly.
func (l *Lead) EffectiveSnapshotPeriod() PeriodType {
	if l.SnapshotPeriod != "" {
		return l.SnapshotPeriod
	}
	switch l.Industry {
	case "eshop", "news", "travel":
		return PeriodDay
	default:
		return PeriodWeek
	}
}

// DiscoveryProfile selects the source, queries, analyzer set and ignored
// issue codes for a batch of discoveries. Owned by a tenant, optionally
// attached to leads it produced.
type DiscoveryProfile struct {
	ID                 string              `json:"id" db:"id"`
	TenantID           string              `json:"tenant_id" db:"tenant_id"`
	Name               string              `json:"name" db:"name"`
	Source             string              `json:"source" db:"source"`
	Queries            []string            `json:"queries" db:"queries"`
	Limit              int                 `json:"limit" db:"discovery_limit"`
	DisabledCategories []string            `json:"disabled_categories,omitempty" db:"disabled_categories"`
	PriorityOverrides  map[string]int      `json:"priority_overrides,omitempty" db:"priority_overrides"`
	IgnoreCodes        map[string][]string `json:"ignore_codes,omitempty" db:"ignore_codes"`
	Schedule           string              `json:"schedule,omitempty" db:"schedule"`
	CreatedAt          time.Time           `json:"created_at" db:"created_at"`
}

// CategoryDisabled reports whether the profile turns off an analyzer category.
func (p *DiscoveryProfile) CategoryDisabled(category string) bool {
	if p == nil {
		return false
	}
	for _, c := range p.DisabledCategories {
		if c == category {
			return true
		}
	}
	return false
}

// EffectivePriority returns the profile override for a category, falling back
// to the analyzer default.
func (p *DiscoveryProfile) EffectivePriority(category string, def int) int {
	if p == nil || p.PriorityOverrides == nil {
		return def
	}
	if v, ok := p.PriorityOverrides[category]; ok {
		return v
	}
	return def
}

// IgnoredCodes returns the issue codes suppressed for a category.
func (p *DiscoveryProfile) IgnoredCodes(category string) []string {
	if p == nil || p.IgnoreCodes == nil {
		return nil
	}
	return p.IgnoreCodes[category]
}
