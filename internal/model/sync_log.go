package model

import "time"

type SyncDirection string

const (
	DirectionCalendarToNotion SyncDirection = "gcal_to_notion"
	DirectionNotionToCalendar SyncDirection = "notion_to_gcal"
)

type SyncOperation string

const (
	OperationCreate SyncOperation = "create"
	OperationUpdate SyncOperation = "update"
	OperationDelete SyncOperation = "delete"
)

type SyncOutcome string

const (
	OutcomeSuccess SyncOutcome = "success"
	OutcomeFailed  SyncOutcome = "failed"
	OutcomeSkipped SyncOutcome = "skipped"
)

// SyncLogEntry is one row of the append-only audit trail. Every branch of
// the reconciliation engine writes exactly one entry, happy path included;
// the dashboard consumes them, the engine itself never reads them back.
type SyncLogEntry struct {
	ID         int64         `json:"id"`
	Direction  SyncDirection `json:"direction"`
	Operation  SyncOperation `json:"operation"`
	Outcome    SyncOutcome   `json:"outcome"`
	EventTitle string        `json:"event_title,omitempty"`
	Error      *string       `json:"error,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}
