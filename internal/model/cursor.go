package model

import "time"

// SyncSource identifies which remote system a cursor or log entry belongs to.
type SyncSource string

const (
	SourceGoogleCalendar SyncSource = "google_calendar"
	SourceNotion         SyncSource = "notion"
)

// SyncCursor holds the opaque incremental-sync token for one remote system.
// A cursor is either absent (forces a full range fetch) or valid; when a
// remote rejects the token, the whole row is cleared in one write so the
// fallback to a full fetch can never observe a half-updated cursor.
type SyncCursor struct {
	Source     SyncSource `json:"source"`
	Token      string     `json:"token"`
	LastSyncAt time.Time  `json:"last_sync_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
