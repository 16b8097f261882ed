package queue

type TaskType string

const (
	// TaskTypeCalendarSync runs one incremental pass against the calendar
	// cursor. Notifications carry no payload, so the task doesn't either.
	TaskTypeCalendarSync TaskType = "calendar_sync"

	// TaskTypeNotionPage syncs a single page named by a webhook event.
	TaskTypeNotionPage TaskType = "notion_page"

	// TaskTypeBackfillRun executes a reserved backfill job.
	TaskTypeBackfillRun TaskType = "backfill_run"

	// TaskTypeHistoricalRun executes a reserved historical import.
	TaskTypeHistoricalRun TaskType = "historical_run"
)

type Task struct {
	TaskType TaskType
	PageID   string
	TraceID  *string
	Attempt  int
}
