package dto

import (
	"time"

	"calbridge.app/bridge/internal/model"
)

type SyncLogEntryResponse struct {
	ID         int64     `json:"id"`
	Direction  string    `json:"direction"`
	Operation  string    `json:"operation"`
	Outcome    string    `json:"outcome"`
	EventTitle string    `json:"event_title,omitempty"`
	Error      *string   `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func SyncLogFrom(entries []model.SyncLogEntry) []SyncLogEntryResponse {
	out := make([]SyncLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, SyncLogEntryResponse{
			ID:         e.ID,
			Direction:  string(e.Direction),
			Operation:  string(e.Operation),
			Outcome:    string(e.Outcome),
			EventTitle: e.EventTitle,
			Error:      e.Error,
			CreatedAt:  e.CreatedAt,
		})
	}
	return out
}
