package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/retry"
	"calbridge.app/bridge/internal/store"
	"calbridge.app/bridge/internal/translate"
)

// Full-fetch window used when no cursor exists or the remote rejects one.
const (
	fullFetchLookBack  = 30 * 24 * time.Hour
	fullFetchLookAhead = 365 * 24 * time.Hour
)

// Reconciler is the bidirectional sync engine. Each directional function is
// a small state machine keyed on the presence of the cross-system id:
// linked events update in place, unlinked events create on the other side
// and immediately stamp the new id back so the next pass recognizes the
// pair and does not create a duplicate. Last write wins; there is no merge.
type Reconciler interface {
	SyncToNotion(ctx context.Context, event *model.Event) error
	SyncToCalendar(ctx context.Context, event *model.Event) error
	DeleteFromNotion(ctx context.Context, event *model.Event) error
	DeleteFromCalendar(ctx context.Context, event *model.Event) error

	// SyncFromCalendar drives the incremental cursor: fetch what changed,
	// route deletions and updates, advance the token.
	SyncFromCalendar(ctx context.Context) error

	// SyncNotionPage pulls one page (named by a webhook notification) and
	// pushes it toward the calendar.
	SyncNotionPage(ctx context.Context, pageID string) error
}

type reconciler struct {
	calendar  CalendarClient
	notion    NotionClient
	cursors   store.SyncCursorStore
	syncLogs  store.SyncLogStore
	settings  store.SettingsStore
	retryOpts retry.Options
}

func NewReconciler(
	cal CalendarClient,
	notionClient NotionClient,
	cursors store.SyncCursorStore,
	syncLogs store.SyncLogStore,
	settings store.SettingsStore,
) Reconciler {
	return &reconciler{
		calendar:  cal,
		notion:    notionClient,
		cursors:   cursors,
		syncLogs:  syncLogs,
		settings:  settings,
		retryOpts: withRetryLogging(retry.DefaultOptions()),
	}
}

func withRetryLogging(opts retry.Options) retry.Options {
	opts.OnRetry = func(err error, attempt int) {
		slog.Warn("retrying remote operation", "error", err, "attempt", attempt)
	}
	return opts
}

// SyncToNotion pushes one calendar event to the document store.
func (r *reconciler) SyncToNotion(ctx context.Context, event *model.Event) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolving settings: %w", err)
	}

	props := translate.ToNotion(event, settings.Properties)

	if event.NotionPageID != "" {
		_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, r.notion.UpdatePage(ctx, event.NotionPageID, props)
		}, r.retryOpts)
		if err != nil {
			r.record(ctx, model.DirectionCalendarToNotion, model.OperationUpdate, model.OutcomeFailed, event.Title, err)
			return fmt.Errorf("updating notion page: %w", err)
		}
		r.record(ctx, model.DirectionCalendarToNotion, model.OperationUpdate, model.OutcomeSuccess, event.Title, nil)
		return nil
	}

	page, err := retry.Do(ctx, func(ctx context.Context) (*notion.Page, error) {
		return r.notion.CreatePage(ctx, settings.DatabaseID, props)
	}, r.retryOpts)
	if err != nil {
		r.record(ctx, model.DirectionCalendarToNotion, model.OperationCreate, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("creating notion page: %w", err)
	}
	event.NotionPageID = page.ID

	// Stamp the new page id onto the calendar event even when nothing else
	// changed: without the link the next pass would create a duplicate.
	_, err = retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := r.calendar.Patch(ctx, event.GCalEventID, translate.LinkPatch(page.ID))
		return struct{}{}, err
	}, r.retryOpts)
	if err != nil {
		if retry.IsUnsupportedRecord(err) {
			slog.InfoContext(ctx, "event type does not accept link metadata", "event_id", event.GCalEventID)
			r.record(ctx, model.DirectionCalendarToNotion, model.OperationCreate, model.OutcomeSuccess, event.Title, nil)
			return nil
		}
		r.record(ctx, model.DirectionCalendarToNotion, model.OperationCreate, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("stamping notion page id on calendar event: %w", err)
	}

	r.record(ctx, model.DirectionCalendarToNotion, model.OperationCreate, model.OutcomeSuccess, event.Title, nil)
	return nil
}

// SyncToCalendar pushes one document row to the calendar. An update whose
// target was removed on the calendar side falls back to create-and-relink
// so a stale id can never permanently block sync.
func (r *reconciler) SyncToCalendar(ctx context.Context, event *model.Event) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolving settings: %w", err)
	}

	wire := translate.ToGoogle(event)

	if event.GCalEventID != "" {
		_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
			_, err := r.calendar.Update(ctx, event.GCalEventID, wire)
			return struct{}{}, err
		}, r.retryOpts)
		switch {
		case err == nil:
			r.record(ctx, model.DirectionNotionToCalendar, model.OperationUpdate, model.OutcomeSuccess, event.Title, nil)
			return nil
		case retry.IsNotFound(err):
			slog.InfoContext(ctx, "calendar target gone, recreating",
				"event_id", event.GCalEventID, "page_id", event.NotionPageID)
			return r.createOnCalendar(ctx, event, wire, settings.Properties)
		case retry.IsUnsupportedRecord(err):
			slog.InfoContext(ctx, "skipping read-only record", "event_id", event.GCalEventID)
			r.record(ctx, model.DirectionNotionToCalendar, model.OperationUpdate, model.OutcomeSkipped, event.Title, nil)
			return nil
		default:
			r.record(ctx, model.DirectionNotionToCalendar, model.OperationUpdate, model.OutcomeFailed, event.Title, err)
			return fmt.Errorf("updating calendar event: %w", err)
		}
	}

	return r.createOnCalendar(ctx, event, wire, settings.Properties)
}

// createOnCalendar inserts the event and writes the new id back to the
// page. The insert payload already carries the page id in its extended
// properties, so the forward link exists the moment the event does.
func (r *reconciler) createOnCalendar(ctx context.Context, event *model.Event, wire *calendar.Event, schema model.PropertySchema) error {
	created, err := retry.Do(ctx, func(ctx context.Context) (*calendar.Event, error) {
		return r.calendar.Insert(ctx, wire)
	}, r.retryOpts)
	if err != nil {
		r.record(ctx, model.DirectionNotionToCalendar, model.OperationCreate, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("inserting calendar event: %w", err)
	}
	event.GCalEventID = created.Id

	relink := map[string]notion.Property{
		schema.GCalEventID: notion.NewRichText(created.Id),
	}
	_, err = retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.notion.UpdatePage(ctx, event.NotionPageID, relink)
	}, r.retryOpts)
	if err != nil {
		r.record(ctx, model.DirectionNotionToCalendar, model.OperationCreate, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("stamping calendar event id on notion page: %w", err)
	}

	r.record(ctx, model.DirectionNotionToCalendar, model.OperationCreate, model.OutcomeSuccess, event.Title, nil)
	return nil
}

// DeleteFromNotion propagates a calendar-side deletion. Terminal failures
// surface to the caller: a missed delete leaves a permanently orphaned row.
func (r *reconciler) DeleteFromNotion(ctx context.Context, event *model.Event) error {
	if event.NotionPageID == "" {
		return nil
	}

	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.notion.ArchivePage(ctx, event.NotionPageID)
	}, r.retryOpts)
	if err != nil {
		if retry.IsNotFound(err) {
			r.record(ctx, model.DirectionCalendarToNotion, model.OperationDelete, model.OutcomeSkipped, event.Title, nil)
			return nil
		}
		r.record(ctx, model.DirectionCalendarToNotion, model.OperationDelete, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("archiving notion page: %w", err)
	}

	r.record(ctx, model.DirectionCalendarToNotion, model.OperationDelete, model.OutcomeSuccess, event.Title, nil)
	return nil
}

// DeleteFromCalendar propagates a document-side deletion.
func (r *reconciler) DeleteFromCalendar(ctx context.Context, event *model.Event) error {
	if event.GCalEventID == "" {
		return nil
	}

	_, err := retry.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.calendar.Delete(ctx, event.GCalEventID)
	}, r.retryOpts)
	if err != nil {
		if retry.IsNotFound(err) {
			r.record(ctx, model.DirectionNotionToCalendar, model.OperationDelete, model.OutcomeSkipped, event.Title, nil)
			return nil
		}
		r.record(ctx, model.DirectionNotionToCalendar, model.OperationDelete, model.OutcomeFailed, event.Title, err)
		return fmt.Errorf("deleting calendar event: %w", err)
	}

	r.record(ctx, model.DirectionNotionToCalendar, model.OperationDelete, model.OutcomeSuccess, event.Title, nil)
	return nil
}

// SyncFromCalendar performs one incremental pass. An invalid cursor is
// cleared and the full window refetched in the same pass; per-event
// failures are logged and counted but never abort the batch.
func (r *reconciler) SyncFromCalendar(ctx context.Context) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolving settings: %w", err)
	}

	token := ""
	cursor, err := r.cursors.Get(ctx, model.SourceGoogleCalendar)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("loading sync cursor: %w", err)
	}
	if cursor != nil {
		token = cursor.Token
	}

	events, nextToken, err := r.fetchChanges(ctx, token)
	if err != nil {
		return err
	}

	var failed int
	for _, raw := range events {
		if err := r.routeCalendarEvent(ctx, raw, settings.SelfEmail); err != nil {
			failed++
			slog.ErrorContext(ctx, "event sync failed", "event_id", raw.Id, "error", err)
		}
	}

	if nextToken != "" {
		if err := r.cursors.Set(ctx, &model.SyncCursor{
			Source:     model.SourceGoogleCalendar,
			Token:      nextToken,
			LastSyncAt: time.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("saving sync cursor: %w", err)
		}
	}

	if failed > 0 {
		slog.WarnContext(ctx, "incremental sync finished with failures", "failed", failed, "total", len(events))
	}
	return nil
}

func (r *reconciler) fetchChanges(ctx context.Context, token string) ([]*calendar.Event, string, error) {
	if token != "" {
		set, err := r.calendar.ChangesSince(ctx, token)
		if err != nil {
			return nil, "", fmt.Errorf("fetching calendar changes: %w", err)
		}
		if !set.TokenInvalid {
			return set.Events, set.NextToken, nil
		}

		// Expired token: clear the cursor before the full fetch so a crash
		// in between can only cost a redundant refetch, never a stale token
		// that keeps failing.
		slog.WarnContext(ctx, "sync token rejected, falling back to full fetch")
		if err := r.cursors.Clear(ctx, model.SourceGoogleCalendar); err != nil {
			return nil, "", fmt.Errorf("clearing invalid cursor: %w", err)
		}
	}

	// No cursor yet, or the remote just rejected one. A token-acquiring full
	// pass walks the window and yields the sync token for the next call, so
	// the very first pass after a fresh deploy already leaves a cursor
	// behind and every pass after it is incremental.
	now := time.Now().UTC()
	set, err := r.calendar.FullSync(ctx, now.Add(-fullFetchLookBack), now.Add(fullFetchLookAhead))
	if err != nil {
		return nil, "", fmt.Errorf("full range fetch: %w", err)
	}
	return set.Events, set.NextToken, nil
}

func (r *reconciler) routeCalendarEvent(ctx context.Context, raw *calendar.Event, selfEmail string) error {
	if raw == nil {
		return nil
	}

	// Cancelled tombstones carry little beyond the id. Route them to
	// deletion when the pair is linked; otherwise there is nothing to do.
	if raw.Status == "cancelled" {
		pageID := translate.LinkedPageID(raw)
		if pageID == "" {
			return nil
		}
		return r.DeleteFromNotion(ctx, &model.Event{
			GCalEventID:  raw.Id,
			NotionPageID: pageID,
			Title:        raw.Summary,
		})
	}

	event, ok := translate.FromGoogle(ctx, raw, selfEmail)
	if !ok {
		return nil
	}
	return r.SyncToNotion(ctx, event)
}

// SyncNotionPage pulls one page and pushes it toward the calendar,
// routing archived pages to deletion.
func (r *reconciler) SyncNotionPage(ctx context.Context, pageID string) error {
	settings, err := r.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("resolving settings: %w", err)
	}

	page, err := retry.Do(ctx, func(ctx context.Context) (*notion.Page, error) {
		return r.notion.GetPage(ctx, pageID)
	}, r.retryOpts)
	if err != nil {
		if retry.IsNotFound(err) {
			slog.InfoContext(ctx, "notion page gone before sync", "page_id", pageID)
			return nil
		}
		return fmt.Errorf("fetching notion page: %w", err)
	}

	if page.Archived || page.InTrash {
		gcalID := notion.Plain(page.Properties[settings.Properties.GCalEventID].RichText)
		if gcalID == "" {
			return nil
		}
		return r.DeleteFromCalendar(ctx, &model.Event{
			NotionPageID: page.ID,
			GCalEventID:  gcalID,
			Title:        notion.Plain(page.Properties[settings.Properties.Title].Title),
		})
	}

	event, ok := translate.FromNotion(ctx, page, settings.Properties)
	if !ok {
		return nil
	}
	return r.SyncToCalendar(ctx, event)
}

// record appends the audit entry for one engine branch. Sync-log failures
// are logged but never fail the sync itself.
func (r *reconciler) record(ctx context.Context, direction model.SyncDirection, op model.SyncOperation, outcome model.SyncOutcome, title string, cause error) {
	entry := &model.SyncLogEntry{
		ID:         id.New(),
		Direction:  direction,
		Operation:  op,
		Outcome:    outcome,
		EventTitle: title,
		CreatedAt:  time.Now().UTC(),
	}
	if cause != nil {
		msg := cause.Error()
		entry.Error = &msg
	}
	if err := r.syncLogs.Append(ctx, entry); err != nil {
		slog.ErrorContext(ctx, "failed to append sync log entry", "error", err)
	}
}
