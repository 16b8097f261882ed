package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/store"
	"calbridge.app/bridge/internal/translate"
)

const (
	historicalBatchSize = 50
	historicalMinDays   = 1
	historicalMaxDays   = 365
)

var ErrInvalidDays = fmt.Errorf("days must be between %d and %d", historicalMinDays, historicalMaxDays)

// Historical imports past events into the document store, one bounded
// look-back window at a time. Preview is read-only and shows what a run
// would touch; Start/Run/Cancel follow the same checkpoint protocol as the
// backfill coordinator.
type Historical interface {
	Preview(ctx context.Context, days int) (*model.HistoricalPreview, error)
	Start(ctx context.Context, days int) (*model.ProgressRecord, error)
	Run(ctx context.Context) error
	Cancel(ctx context.Context) error
	Status(ctx context.Context) (*model.ProgressRecord, error)
}

type historical struct {
	calendar   CalendarClient
	reconciler Reconciler
	progress   store.ProgressStore
	settings   store.SettingsStore
	now        func() time.Time
}

func NewHistorical(
	cal CalendarClient,
	rec Reconciler,
	progress store.ProgressStore,
	settings store.SettingsStore,
) Historical {
	return &historical{
		calendar:   cal,
		reconciler: rec,
		progress:   progress,
		settings:   settings,
		now:        time.Now,
	}
}

// Preview fetches the window and classifies it without writing anything.
func (h *historical) Preview(ctx context.Context, days int) (*model.HistoricalPreview, error) {
	if days < historicalMinDays || days > historicalMaxDays {
		return nil, ErrInvalidDays
	}

	now := h.now().UTC()
	raw, err := h.calendar.EventsInRange(ctx, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}

	preview := &model.HistoricalPreview{Days: days}
	for _, ev := range raw {
		if ev == nil || ev.Status == "cancelled" {
			continue
		}
		preview.Total++
		if ev.RecurringEventId != "" {
			preview.Recurring++
		}
		if translate.LinkedPageID(ev) != "" {
			preview.AlreadyLinked++
		} else {
			preview.New++
		}
	}
	return preview, nil
}

// Start validates the window and reserves the job.
func (h *historical) Start(ctx context.Context, days int) (*model.ProgressRecord, error) {
	if days < historicalMinDays || days > historicalMaxDays {
		return nil, ErrInvalidDays
	}

	current, err := h.progress.Get(ctx, model.JobKindHistorical)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading historical progress: %w", err)
	}
	if current != nil && current.Status == model.JobStatusRunning {
		return nil, ErrJobRunning
	}

	started := h.now().UTC()
	record := &model.ProgressRecord{
		Kind:      model.JobKindHistorical,
		RunID:     id.New(),
		Status:    model.JobStatusRunning,
		Days:      days,
		StartedAt: &started,
	}
	if err := h.progress.Set(ctx, record); err != nil {
		return nil, fmt.Errorf("saving historical progress: %w", err)
	}
	return record, nil
}

// Run imports the reserved window through the reconciliation engine, so
// linked events update their existing pages and unlinked events create and
// link new ones. Created/updated split is decided by the link state before
// each push.
func (h *historical) Run(ctx context.Context) error {
	record, err := h.progress.Get(ctx, model.JobKindHistorical)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotRunning
		}
		return fmt.Errorf("loading historical progress: %w", err)
	}
	if record.Status != model.JobStatusRunning {
		return ErrNotRunning
	}

	settings, err := h.settings.Get(ctx)
	if err != nil {
		return h.fail(ctx, record, fmt.Errorf("resolving settings: %w", err))
	}

	now := h.now().UTC()
	raw, err := h.calendar.EventsInRange(ctx, now.AddDate(0, 0, -record.Days), now)
	if err != nil {
		return h.fail(ctx, record, fmt.Errorf("fetching calendar events: %w", err))
	}

	var events []*model.Event
	for _, ev := range raw {
		if ev == nil || ev.Status == "cancelled" {
			continue
		}
		event, ok := translate.FromGoogle(ctx, ev, settings.SelfEmail)
		if !ok {
			continue
		}
		events = append(events, event)
	}

	record.Total = len(events)
	if err := h.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving historical progress: %w", err)
	}

	for start := 0; start < len(events); start += historicalBatchSize {
		cancelled, err := h.cancelledMeanwhile(ctx, record.RunID)
		if err != nil {
			return err
		}
		if cancelled {
			slog.InfoContext(ctx, "historical import cancelled",
				"run_id", record.RunID, "processed", record.Processed)
			return h.finish(ctx, record, model.JobStatusCancelled)
		}

		end := min(start+historicalBatchSize, len(events))
		for _, event := range events[start:end] {
			wasLinked := event.NotionPageID != ""
			if err := h.reconciler.SyncToNotion(ctx, event); err != nil {
				record.Errors++
				slog.ErrorContext(ctx, "historical import failed for event",
					"event_id", event.GCalEventID, "error", err)
				continue
			}
			if wasLinked {
				record.Updated++
			} else {
				record.Created++
			}
		}

		record.Processed = end

		// Re-check before persisting: a cancel that landed mid-batch must
		// not be clobbered by this checkpoint.
		cancelled, err = h.cancelledMeanwhile(ctx, record.RunID)
		if err != nil {
			return err
		}
		if cancelled {
			slog.InfoContext(ctx, "historical import cancelled",
				"run_id", record.RunID, "processed", record.Processed)
			return h.finish(ctx, record, model.JobStatusCancelled)
		}
		if err := h.progress.Set(ctx, record); err != nil {
			return fmt.Errorf("saving historical progress: %w", err)
		}
	}

	slog.InfoContext(ctx, "historical import completed",
		"run_id", record.RunID, "created", record.Created,
		"updated", record.Updated, "errors", record.Errors)
	return h.finish(ctx, record, model.JobStatusCompleted)
}

func (h *historical) cancelledMeanwhile(ctx context.Context, runID int64) (bool, error) {
	current, err := h.progress.Get(ctx, model.JobKindHistorical)
	if err != nil {
		return false, fmt.Errorf("loading historical progress: %w", err)
	}
	return current.RunID == runID && current.Status == model.JobStatusCancelled, nil
}

func (h *historical) Cancel(ctx context.Context) error {
	record, err := h.progress.Get(ctx, model.JobKindHistorical)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotRunning
		}
		return fmt.Errorf("loading historical progress: %w", err)
	}
	if record.Status != model.JobStatusRunning {
		return ErrNotRunning
	}

	record.Status = model.JobStatusCancelled
	if err := h.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving historical progress: %w", err)
	}
	return nil
}

func (h *historical) Status(ctx context.Context) (*model.ProgressRecord, error) {
	record, err := h.progress.Get(ctx, model.JobKindHistorical)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.ProgressRecord{Kind: model.JobKindHistorical, Status: model.JobStatusIdle}, nil
		}
		return nil, fmt.Errorf("loading historical progress: %w", err)
	}
	return record, nil
}

func (h *historical) finish(ctx context.Context, record *model.ProgressRecord, status model.JobStatus) error {
	finished := h.now().UTC()
	record.Status = status
	record.FinishedAt = &finished
	if err := h.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving historical progress: %w", err)
	}
	return nil
}

func (h *historical) fail(ctx context.Context, record *model.ProgressRecord, cause error) error {
	msg := cause.Error()
	record.Error = &msg
	if err := h.finish(ctx, record, model.JobStatusFailed); err != nil {
		return err
	}
	return cause
}
