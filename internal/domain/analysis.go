package domain

import "time"

// AnalysisStatus is the lifecycle state of an analysis run or of a single
// per-category result.
type AnalysisStatus string

const (
	AnalysisPending   AnalysisStatus = "pending"
	AnalysisRunning   AnalysisStatus = "running"
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// IssueSeverity ranks how bad an issue is.
type IssueSeverity string

const (
	SeverityCritical IssueSeverity = "critical"
	SeverityHigh     IssueSeverity = "high"
	SeverityMedium   IssueSeverity = "medium"
	SeverityLow      IssueSeverity = "low"
	SeverityInfo     IssueSeverity = "info"
)

// Issue is a discrete defect found by an analyzer. Code is a stable
// identifier from the issue registry; codes outlive code.
type Issue struct {
	Code     string        `json:"code"`
	Severity IssueSeverity `json:"severity"`
	Evidence string        `json:"evidence,omitempty"`
}

// IssueCode is a registry entry describing an issue code.
type IssueCode struct {
	Code         string        `json:"code" db:"code"`
	Severity     IssueSeverity `json:"severity" db:"severity"`
	Category     string        `json:"category" db:"category"`
	HumanMessage string        `json:"human_message" db:"human_message"`
}

// IssueDelta summarizes how the issue set changed versus the previous analysis.
type IssueDelta struct {
	Added          []string `json:"added"`
	Removed        []string `json:"removed"`
	UnchangedCount int      `json:"unchanged_count"`
}

// Analysis is one ordered multi-category assessment of a lead.
// SequenceNumber is contiguous per lead starting at 1; PreviousAnalysisID
// links to sequence-1 and is empty only for the first run.
type Analysis struct {
	ID                 string         `json:"id" db:"id"`
	LeadID             string         `json:"lead_id" db:"lead_id"`
	SequenceNumber     int            `json:"sequence_number" db:"sequence_number"`
	PreviousAnalysisID string         `json:"previous_analysis_id,omitempty" db:"previous_analysis_id"`
	Status             AnalysisStatus `json:"status" db:"status"`
	TotalScore         int            `json:"total_score" db:"total_score"`
	Industry           string         `json:"industry,omitempty" db:"industry"`
	IsEshop            bool           `json:"is_eshop" db:"is_eshop"`
	ScoreDelta         *int           `json:"score_delta,omitempty" db:"score_delta"`
	IsImproved         bool           `json:"is_improved" db:"is_improved"`
	IssueDelta         *IssueDelta    `json:"issue_delta,omitempty" db:"issue_delta"`
	StartedAt          time.Time      `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty" db:"completed_at"`
}

// AnalysisResult is the per-category output of one analyzer for one analysis,
// unique on (analysis, category).
type AnalysisResult struct {
	ID           string                 `json:"id" db:"id"`
	AnalysisID   string                 `json:"analysis_id" db:"analysis_id"`
	Category     string                 `json:"category" db:"category"`
	Status       AnalysisStatus         `json:"status" db:"status"`
	RawData      map[string]interface{} `json:"raw_data,omitempty" db:"raw_data"`
	Issues       []Issue                `json:"issues,omitempty" db:"issues"`
	Score        int                    `json:"score" db:"score"`
	ErrorMessage string                 `json:"error_message,omitempty" db:"error_message"`
}

// CriticalIssueCount counts critical-severity issues in a result set.
func CriticalIssueCount(results []AnalysisResult) int {
	n := 0
	for _, r := range results {
		for _, is := range r.Issues {
			if is.Severity == SeverityCritical {
				n++
			}
		}
	}
	return n
}
