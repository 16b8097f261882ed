package service

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/gcal"
	"calbridge.app/bridge/internal/remote/notion"
)

// CalendarClient is the calendar-side collaborator. The concrete
// implementation lives in internal/remote/gcal; services depend on the
// interface so tests can substitute fakes without touching process-wide
// state.
type CalendarClient interface {
	CalendarID() string
	ChangesSince(ctx context.Context, token string) (*gcal.ChangeSet, error)
	FullSync(ctx context.Context, min, max time.Time) (*gcal.ChangeSet, error)
	EventsInRange(ctx context.Context, min, max time.Time) ([]*calendar.Event, error)
	Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	Update(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	Patch(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	Delete(ctx context.Context, eventID string) error
	Watch(ctx context.Context, webhookURL string) (*model.WebhookChannel, error)
	StopWatch(ctx context.Context, channelID, resourceID string) error
}

// NotionClient is the document-store-side collaborator.
type NotionClient interface {
	CreatePage(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error)
	UpdatePage(ctx context.Context, pageID string, properties map[string]notion.Property) error
	GetPage(ctx context.Context, pageID string) (*notion.Page, error)
	ArchivePage(ctx context.Context, pageID string) error
	QueryDatabase(ctx context.Context, databaseID string) ([]notion.Page, error)
	CreateSubscription(ctx context.Context, databaseID, webhookURL string) (*notion.Subscription, error)
	DeleteSubscription(ctx context.Context, subscriptionID string) error
}
