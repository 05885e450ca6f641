package domain

import "time"

// PeriodType is the aggregation granularity for snapshots and benchmarks.
type PeriodType string

const (
	PeriodDay   PeriodType = "day"
	PeriodWeek  PeriodType = "week"
	PeriodMonth PeriodType = "month"
)

// PeriodStart truncates t to the start of the period in UTC: calendar day,
// ISO week (Monday) or first-of-month.
func PeriodStart(p PeriodType, t time.Time) time.Time {
	t = t.UTC()
	switch p {
	case PeriodDay:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	case PeriodMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	default: // week
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(day.Weekday()) + 6) % 7 // Monday = 0
		return day.AddDate(0, 0, -offset)
	}
}

// TopIssue is an issue code with its occurrence statistics inside an
// aggregate.
type TopIssue struct {
	Code       string  `json:"code"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage,omitempty"`
}

// Snapshot is a periodic aggregate of one lead's analysis, unique per
// (lead, periodType, periodStart).
type Snapshot struct {
	ID                 string         `json:"id" db:"id"`
	LeadID             string         `json:"lead_id" db:"lead_id"`
	PeriodType         PeriodType     `json:"period_type" db:"period_type"`
	PeriodStart        time.Time      `json:"period_start" db:"period_start"`
	AnalysisID         string         `json:"analysis_id" db:"analysis_id"`
	TotalScore         int            `json:"total_score" db:"total_score"`
	CategoryScores     map[string]int `json:"category_scores" db:"category_scores"`
	IssueCount         int            `json:"issue_count" db:"issue_count"`
	CriticalIssueCount int            `json:"critical_issue_count" db:"critical_issue_count"`
	TopIssues          []TopIssue     `json:"top_issues,omitempty" db:"top_issues"`
	ScoreDelta         *int           `json:"score_delta,omitempty" db:"score_delta"`
	CreatedAt          time.Time      `json:"created_at" db:"created_at"`
}

// Percentiles is the benchmark percentile map over total scores.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
}

// Benchmark is a cross-lead aggregate per (tenant, industry, periodStart).
type Benchmark struct {
	ID                string             `json:"id" db:"id"`
	TenantID          string             `json:"tenant_id" db:"tenant_id"`
	Industry          string             `json:"industry" db:"industry"`
	PeriodStart       time.Time          `json:"period_start" db:"period_start"`
	AvgScore          float64            `json:"avg_score" db:"avg_score"`
	MedianScore       float64            `json:"median_score" db:"median_score"`
	Percentiles       *Percentiles       `json:"percentiles,omitempty" db:"percentiles"`
	AvgCategoryScores map[string]float64 `json:"avg_category_scores,omitempty" db:"avg_category_scores"`
	TopIssues         []TopIssue         `json:"top_issues,omitempty" db:"top_issues"`
	SampleSize        int                `json:"sample_size" db:"sample_size"`
	CreatedAt         time.Time          `json:"created_at" db:"created_at"`
}

// PercentileRank buckets a score against a benchmark's percentile map.
type PercentileRank string

const (
	RankTop10        PercentileRank = "top10"
	RankTop25        PercentileRank = "top25"
	RankAboveAverage PercentileRank = "above_average"
	RankBelowAverage PercentileRank = "below_average"
	RankBottom25     PercentileRank = "bottom25"
	RankUnknown      PercentileRank = "unknown"
)

// Rank places score against the benchmark. An empty percentile map yields
// RankUnknown.
func (b *Benchmark) Rank(score int) PercentileRank {
	if b == nil || b.Percentiles == nil {
		return RankUnknown
	}
	s := float64(score)
	switch {
	case s >= b.Percentiles.P90:
		return RankTop10
	case s >= b.Percentiles.P75:
		return RankTop25
	case s >= b.Percentiles.P50:
		return RankAboveAverage
	case s >= b.Percentiles.P25:
		return RankBelowAverage
	default:
		return RankBottom25
	}
}
