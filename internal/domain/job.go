package domain

import "time"

// Queue names the fixed priority classes of the job transport. The failed
// queue is never consumed automatically; operators re-drive it.
type Queue string

const (
	QueueHigh   Queue = "high"
	QueueNormal Queue = "normal"
	QueueLow    Queue = "low"
	QueueFailed Queue = "failed"
)

// JobKind tags the body of a queued job and selects its handler.
type JobKind string

const (
	JobSendEmail            JobKind = "send_email"
	JobProcessTrackingEvent JobKind = "process_tracking_event"
	JobAnalyzeLead          JobKind = "analyze_lead"
	JobGenerateProposal     JobKind = "generate_proposal"
	JobGenerateOffer        JobKind = "generate_offer"
	JobSyncCompanyByICO     JobKind = "sync_company_by_ico"
	JobDiscoverLeads        JobKind = "discover_leads"
	JobTakeScreenshot       JobKind = "take_screenshot"
	JobCalculateBenchmarks  JobKind = "calculate_benchmarks"
	JobBatchDiscovery       JobKind = "batch_discovery"
	JobExpireProposals      JobKind = "expire_proposals"
	JobCheckSSL             JobKind = "check_ssl"
	JobCleanupOldData       JobKind = "cleanup_old_data"
)

// DefaultQueue maps each job kind to the queue it is dispatched on.
var DefaultQueue = map[JobKind]Queue{
	JobSendEmail:            QueueHigh,
	JobProcessTrackingEvent: QueueHigh,
	JobAnalyzeLead:          QueueNormal,
	JobGenerateProposal:     QueueNormal,
	JobGenerateOffer:        QueueNormal,
	JobSyncCompanyByICO:     QueueNormal,
	JobDiscoverLeads:        QueueLow,
	JobTakeScreenshot:       QueueLow,
	JobCalculateBenchmarks:  QueueLow,
	JobBatchDiscovery:       QueueLow,
	JobExpireProposals:      QueueLow,
	JobCheckSSL:             QueueLow,
	JobCleanupOldData:       QueueLow,
}

// Job is one durable row in the messenger_messages table. A job is claimable
// when AvailableAt has passed and DeliveredAt is null.
type Job struct {
	ID          int64             `json:"id" db:"id"`
	Queue       Queue             `json:"queue" db:"queue_name"`
	Body        []byte            `json:"body" db:"body"`
	Headers     map[string]string `json:"headers" db:"headers"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	AvailableAt time.Time         `json:"available_at" db:"available_at"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty" db:"delivered_at"`
}
