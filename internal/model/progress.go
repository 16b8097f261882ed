package model

import "time"

type JobKind string

const (
	JobKindBackfill   JobKind = "backfill"
	JobKindHistorical JobKind = "historical"
)

type JobStatus string

const (
	JobStatusIdle      JobStatus = "idle"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// ProgressRecord is the shared checkpoint shape for the backfill and
// historical coordinators. running is exclusive: starting a new job while
// one is running must fail. cancelled is only reachable from running and is
// observed cooperatively between batches. Counters are persisted at batch
// granularity, which is the recovery boundary after a crash.
type ProgressRecord struct {
	Kind      JobKind   `json:"kind"`
	RunID     int64     `json:"run_id,omitempty"`
	Status    JobStatus `json:"status"`
	Total     int       `json:"total"`
	Processed int       `json:"processed"`
	Errors    int       `json:"errors"`

	// Backfill-specific: the fields being populated and how many events had
	// nothing to patch.
	Fields  []SyncedField `json:"fields,omitempty"`
	Skipped int           `json:"skipped,omitempty"`

	// Historical-specific: the look-back window and the create/update split.
	Days    int `json:"days,omitempty"`
	Created int `json:"created,omitempty"`
	Updated int `json:"updated,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

// HistoricalPreview is the non-mutating estimate shown before committing to
// a historical import.
type HistoricalPreview struct {
	Days          int `json:"days"`
	Total         int `json:"total"`
	New           int `json:"new"`
	AlreadyLinked int `json:"already_linked"`
	Recurring     int `json:"recurring_instances"`
}
