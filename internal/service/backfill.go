package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/retry"
	"calbridge.app/bridge/internal/store"
	"calbridge.app/bridge/internal/translate"
)

const backfillBatchSize = 100

var (
	ErrJobRunning = errors.New("a job of this kind is already running")
	ErrNoFields   = errors.New("at least one field is required")
	ErrNotRunning = errors.New("no running job")
)

// Backfill populates newly enabled optional fields on already-linked pages.
// Start reserves the job and records what to do; Run (called from the
// worker) executes it in batches, checkpointing progress after each batch.
// Cancellation is cooperative and observed between batches only.
type Backfill interface {
	Start(ctx context.Context, fields []model.SyncedField) (*model.ProgressRecord, error)
	Run(ctx context.Context) error
	Cancel(ctx context.Context) error
	Status(ctx context.Context) (*model.ProgressRecord, error)
}

type backfill struct {
	calendar  CalendarClient
	notion    NotionClient
	progress  store.ProgressStore
	settings  store.SettingsStore
	retryOpts retry.Options
	now       func() time.Time
}

func NewBackfill(
	cal CalendarClient,
	notionClient NotionClient,
	progress store.ProgressStore,
	settings store.SettingsStore,
) Backfill {
	return &backfill{
		calendar:  cal,
		notion:    notionClient,
		progress:  progress,
		settings:  settings,
		retryOpts: withRetryLogging(retry.DefaultOptions()),
		now:       time.Now,
	}
}

// Start validates the request and flips the checkpoint to running. A
// rejected start leaves any previous record exactly as it was.
func (b *backfill) Start(ctx context.Context, fields []model.SyncedField) (*model.ProgressRecord, error) {
	if len(fields) == 0 {
		return nil, ErrNoFields
	}

	current, err := b.progress.Get(ctx, model.JobKindBackfill)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading backfill progress: %w", err)
	}
	if current != nil && current.Status == model.JobStatusRunning {
		return nil, ErrJobRunning
	}

	started := b.now().UTC()
	record := &model.ProgressRecord{
		Kind:      model.JobKindBackfill,
		RunID:     id.New(),
		Status:    model.JobStatusRunning,
		Fields:    fields,
		StartedAt: &started,
	}
	if err := b.progress.Set(ctx, record); err != nil {
		return nil, fmt.Errorf("saving backfill progress: %w", err)
	}
	return record, nil
}

// Run executes the reserved job. Only linked events are touched, and each
// patch carries exactly the requested fields, nothing else.
func (b *backfill) Run(ctx context.Context) error {
	record, err := b.progress.Get(ctx, model.JobKindBackfill)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotRunning
		}
		return fmt.Errorf("loading backfill progress: %w", err)
	}
	if record.Status != model.JobStatusRunning {
		return ErrNotRunning
	}

	settings, err := b.settings.Get(ctx)
	if err != nil {
		return b.fail(ctx, record, fmt.Errorf("resolving settings: %w", err))
	}

	events, err := b.linkedEvents(ctx, settings.SelfEmail)
	if err != nil {
		return b.fail(ctx, record, err)
	}

	record.Total = len(events)
	if err := b.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving backfill progress: %w", err)
	}

	for start := 0; start < len(events); start += backfillBatchSize {
		cancelled, err := b.cancelledMeanwhile(ctx, record.RunID)
		if err != nil {
			return err
		}
		if cancelled {
			slog.InfoContext(ctx, "backfill cancelled", "run_id", record.RunID, "processed", record.Processed)
			return b.finish(ctx, record, model.JobStatusCancelled)
		}

		end := min(start+backfillBatchSize, len(events))
		for _, event := range events[start:end] {
			b.patchEvent(ctx, record, event, settings.Properties)
		}
		record.Processed = end

		// Re-check before persisting: a cancel that landed mid-batch must
		// not be clobbered by this checkpoint.
		cancelled, err = b.cancelledMeanwhile(ctx, record.RunID)
		if err != nil {
			return err
		}
		if cancelled {
			slog.InfoContext(ctx, "backfill cancelled", "run_id", record.RunID, "processed", record.Processed)
			return b.finish(ctx, record, model.JobStatusCancelled)
		}
		if err := b.progress.Set(ctx, record); err != nil {
			return fmt.Errorf("saving backfill progress: %w", err)
		}
	}

	slog.InfoContext(ctx, "backfill completed",
		"run_id", record.RunID, "processed", record.Processed,
		"skipped", record.Skipped, "errors", record.Errors)
	return b.finish(ctx, record, model.JobStatusCompleted)
}

// patchEvent builds the sparse property patch for one event. Events with
// nothing to write for any requested field are counted as skipped; write
// failures are counted and never abort the run.
func (b *backfill) patchEvent(ctx context.Context, record *model.ProgressRecord, event *model.Event, schema model.PropertySchema) {
	props := make(map[string]notion.Property)
	for _, field := range record.Fields {
		name, prop, ok := translate.FieldProperty(event, field, schema)
		if ok {
			props[name] = prop
		}
	}
	if len(props) == 0 {
		record.Skipped++
		return
	}

	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, b.notion.UpdatePage(ctx, event.NotionPageID, props)
	}, b.retryOpts)
	if err != nil {
		record.Errors++
		slog.ErrorContext(ctx, "backfill patch failed",
			"page_id", event.NotionPageID, "event_id", event.GCalEventID, "error", err)
	}
}

// linkedEvents fetches the working window and keeps only events that carry
// a page link; unlinked events have no page to patch.
func (b *backfill) linkedEvents(ctx context.Context, selfEmail string) ([]*model.Event, error) {
	now := b.now().UTC()
	raw, err := b.calendar.EventsInRange(ctx, now.Add(-fullFetchLookBack), now.Add(fullFetchLookAhead))
	if err != nil {
		return nil, fmt.Errorf("fetching calendar events: %w", err)
	}

	var linked []*model.Event
	for _, ev := range raw {
		event, ok := translate.FromGoogle(ctx, ev, selfEmail)
		if !ok || event.NotionPageID == "" {
			continue
		}
		linked = append(linked, event)
	}
	return linked, nil
}

func (b *backfill) cancelledMeanwhile(ctx context.Context, runID int64) (bool, error) {
	current, err := b.progress.Get(ctx, model.JobKindBackfill)
	if err != nil {
		return false, fmt.Errorf("loading backfill progress: %w", err)
	}
	return current.RunID == runID && current.Status == model.JobStatusCancelled, nil
}

// Cancel requests a cooperative stop. The counters keep whatever the last
// completed batch recorded.
func (b *backfill) Cancel(ctx context.Context) error {
	record, err := b.progress.Get(ctx, model.JobKindBackfill)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotRunning
		}
		return fmt.Errorf("loading backfill progress: %w", err)
	}
	if record.Status != model.JobStatusRunning {
		return ErrNotRunning
	}

	record.Status = model.JobStatusCancelled
	if err := b.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving backfill progress: %w", err)
	}
	return nil
}

func (b *backfill) Status(ctx context.Context) (*model.ProgressRecord, error) {
	record, err := b.progress.Get(ctx, model.JobKindBackfill)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return &model.ProgressRecord{Kind: model.JobKindBackfill, Status: model.JobStatusIdle}, nil
		}
		return nil, fmt.Errorf("loading backfill progress: %w", err)
	}
	return record, nil
}

func (b *backfill) finish(ctx context.Context, record *model.ProgressRecord, status model.JobStatus) error {
	finished := b.now().UTC()
	record.Status = status
	record.FinishedAt = &finished
	if err := b.progress.Set(ctx, record); err != nil {
		return fmt.Errorf("saving backfill progress: %w", err)
	}
	return nil
}

func (b *backfill) fail(ctx context.Context, record *model.ProgressRecord, cause error) error {
	msg := cause.Error()
	record.Error = &msg
	if err := b.finish(ctx, record, model.JobStatusFailed); err != nil {
		return err
	}
	return cause
}
