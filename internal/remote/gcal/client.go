// Package gcal wraps the Google Calendar v3 API for a single configured
// calendar. Like the Notion client it stays policy-free: googleapi errors
// pass through untouched so the retry layer can classify them.
package gcal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"calbridge.app/bridge/internal/model"
)

// ChangeSet is the result of an incremental fetch. TokenInvalid means the
// remote rejected the sync token; the caller must clear its cursor and fall
// back to a full range fetch.
type ChangeSet struct {
	Events       []*calendar.Event
	NextToken    string
	TokenInvalid bool
}

type Client struct {
	svc        *calendar.Service
	calendarID string
}

// New builds a client bound to one calendar. Token refresh lives in the
// injected oauth2 token source.
func New(ctx context.Context, ts oauth2.TokenSource, calendarID string) (*Client, error) {
	if calendarID == "" {
		return nil, fmt.Errorf("calendar id is required")
	}
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("creating calendar service: %w", err)
	}
	return &Client{svc: svc, calendarID: calendarID}, nil
}

// NewWithService is used by tests and by the factory when reconfiguring.
func NewWithService(svc *calendar.Service, calendarID string) *Client {
	return &Client{svc: svc, calendarID: calendarID}
}

func (c *Client) CalendarID() string {
	return c.calendarID
}

// ChangesSince lists events changed since the given sync token, following
// pagination. Deleted (cancelled) events are included so deletions can
// propagate.
func (c *Client) ChangesSince(ctx context.Context, token string) (*ChangeSet, error) {
	set := &ChangeSet{}
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			SyncToken(token).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			var apiErr *googleapi.Error
			if errors.As(err, &apiErr) && apiErr.Code == http.StatusGone {
				// Expired sync token. Not an error: signal the caller to
				// clear the cursor and refetch the full window.
				return &ChangeSet{TokenInvalid: true}, nil
			}
			return nil, fmt.Errorf("listing calendar changes: %w", err)
		}

		set.Events = append(set.Events, resp.Items...)
		if resp.NextPageToken == "" {
			set.NextToken = resp.NextSyncToken
			return set, nil
		}
		pageToken = resp.NextPageToken
	}
}

// FullSync walks the whole window and returns the sync token the API hands
// back on the final page, establishing the cursor for later incremental
// calls. Sync tokens cannot be combined with orderBy, so unlike
// EventsInRange this lists unsorted; the window restrictions are remembered
// by the token.
func (c *Client) FullSync(ctx context.Context, min, max time.Time) (*ChangeSet, error) {
	set := &ChangeSet{}
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(min.Format(time.RFC3339)).
			TimeMax(max.Format(time.RFC3339)).
			SingleEvents(true).
			ShowDeleted(true).
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing calendar events for full sync: %w", err)
		}

		set.Events = append(set.Events, resp.Items...)
		if resp.NextPageToken == "" {
			set.NextToken = resp.NextSyncToken
			return set, nil
		}
		pageToken = resp.NextPageToken
	}
}

// EventsInRange lists the full window with recurring events expanded into
// instances by the remote.
func (c *Client) EventsInRange(ctx context.Context, min, max time.Time) ([]*calendar.Event, error) {
	var events []*calendar.Event
	pageToken := ""
	for {
		call := c.svc.Events.List(c.calendarID).
			TimeMin(min.Format(time.RFC3339)).
			TimeMax(max.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime").
			MaxResults(250).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("listing calendar events: %w", err)
		}

		events = append(events, resp.Items...)
		if resp.NextPageToken == "" {
			return events, nil
		}
		pageToken = resp.NextPageToken
	}
}

func (c *Client) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	created, err := c.svc.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("inserting calendar event: %w", err)
	}
	return created, nil
}

func (c *Client) Update(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	updated, err := c.svc.Events.Update(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("updating calendar event %s: %w", eventID, err)
	}
	return updated, nil
}

// Patch sends a sparse update; only the populated fields change.
func (c *Client) Patch(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	patched, err := c.svc.Events.Patch(c.calendarID, eventID, event).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("patching calendar event %s: %w", eventID, err)
	}
	return patched, nil
}

func (c *Client) Delete(ctx context.Context, eventID string) error {
	if err := c.svc.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("deleting calendar event %s: %w", eventID, err)
	}
	return nil
}

// Watch opens a push channel for this calendar. Google requires a globally
// unique channel id, hence the uuid.
func (c *Client) Watch(ctx context.Context, webhookURL string) (*model.WebhookChannel, error) {
	channel := &calendar.Channel{
		Id:      uuid.NewString(),
		Type:    "web_hook",
		Address: webhookURL,
	}
	resp, err := c.svc.Events.Watch(c.calendarID, channel).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("opening watch channel: %w", err)
	}

	now := time.Now().UTC()
	return &model.WebhookChannel{
		ChannelID:  resp.Id,
		ResourceID: resp.ResourceId,
		CalendarID: c.calendarID,
		Expiration: time.UnixMilli(resp.Expiration).UTC(),
		CreatedAt:  now,
		RenewedAt:  now,
	}, nil
}

func (c *Client) StopWatch(ctx context.Context, channelID, resourceID string) error {
	channel := &calendar.Channel{Id: channelID, ResourceId: resourceID}
	if err := c.svc.Channels.Stop(channel).Context(ctx).Do(); err != nil {
		return fmt.Errorf("stopping watch channel %s: %w", channelID, err)
	}
	return nil
}
