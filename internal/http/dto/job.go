package dto

import (
	"time"

	"calbridge.app/bridge/internal/model"
)

type StartBackfillRequest struct {
	Fields []string `json:"fields" binding:"required"`
}

type StartHistoricalRequest struct {
	Days int `json:"days" binding:"required"`
}

type JobStatusResponse struct {
	Kind      string `json:"kind"`
	RunID     int64  `json:"run_id,omitempty"`
	Status    string `json:"status"`
	Total     int    `json:"total"`
	Processed int    `json:"processed"`
	Errors    int    `json:"errors"`

	Fields  []string `json:"fields,omitempty"`
	Skipped int      `json:"skipped,omitempty"`

	Days    int `json:"days,omitempty"`
	Created int `json:"created,omitempty"`
	Updated int `json:"updated,omitempty"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      *string    `json:"error,omitempty"`
}

func JobStatusFromRecord(r *model.ProgressRecord) JobStatusResponse {
	resp := JobStatusResponse{
		Kind:       string(r.Kind),
		RunID:      r.RunID,
		Status:     string(r.Status),
		Total:      r.Total,
		Processed:  r.Processed,
		Errors:     r.Errors,
		Skipped:    r.Skipped,
		Days:       r.Days,
		Created:    r.Created,
		Updated:    r.Updated,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Error:      r.Error,
	}
	for _, f := range r.Fields {
		resp.Fields = append(resp.Fields, string(f))
	}
	return resp
}

type HistoricalPreviewResponse struct {
	Days          int `json:"days"`
	Total         int `json:"total"`
	New           int `json:"new"`
	AlreadyLinked int `json:"already_linked"`
	Recurring     int `json:"recurring_instances"`
}
