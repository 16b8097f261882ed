package service_test

import (
	"context"
	"time"

	"google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/remote/gcal"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/store"
)

type mockCalendarClient struct {
	calendarID      string
	changesSinceFn  func(ctx context.Context, token string) (*gcal.ChangeSet, error)
	fullSyncFn      func(ctx context.Context, min, max time.Time) (*gcal.ChangeSet, error)
	eventsInRangeFn func(ctx context.Context, min, max time.Time) ([]*calendar.Event, error)
	insertFn        func(ctx context.Context, event *calendar.Event) (*calendar.Event, error)
	updateFn        func(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	patchFn         func(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error)
	deleteFn        func(ctx context.Context, eventID string) error
	watchFn         func(ctx context.Context, webhookURL string) (*model.WebhookChannel, error)
	stopWatchFn     func(ctx context.Context, channelID, resourceID string) error

	changesCalls   int
	fullSyncCalls  int
	insertCalls    int
	updateCalls    int
	patchCalls     int
	deleteCalls    int
	watchCalls     int
	stopWatchCalls int
}

func (m *mockCalendarClient) CalendarID() string {
	if m.calendarID != "" {
		return m.calendarID
	}
	return "primary"
}

func (m *mockCalendarClient) ChangesSince(ctx context.Context, token string) (*gcal.ChangeSet, error) {
	m.changesCalls++
	if m.changesSinceFn != nil {
		return m.changesSinceFn(ctx, token)
	}
	return &gcal.ChangeSet{}, nil
}

func (m *mockCalendarClient) FullSync(ctx context.Context, min, max time.Time) (*gcal.ChangeSet, error) {
	m.fullSyncCalls++
	if m.fullSyncFn != nil {
		return m.fullSyncFn(ctx, min, max)
	}
	return &gcal.ChangeSet{}, nil
}

func (m *mockCalendarClient) EventsInRange(ctx context.Context, min, max time.Time) ([]*calendar.Event, error) {
	if m.eventsInRangeFn != nil {
		return m.eventsInRangeFn(ctx, min, max)
	}
	return nil, nil
}

func (m *mockCalendarClient) Insert(ctx context.Context, event *calendar.Event) (*calendar.Event, error) {
	m.insertCalls++
	if m.insertFn != nil {
		return m.insertFn(ctx, event)
	}
	return event, nil
}

func (m *mockCalendarClient) Update(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	m.updateCalls++
	if m.updateFn != nil {
		return m.updateFn(ctx, eventID, event)
	}
	return event, nil
}

func (m *mockCalendarClient) Patch(ctx context.Context, eventID string, event *calendar.Event) (*calendar.Event, error) {
	m.patchCalls++
	if m.patchFn != nil {
		return m.patchFn(ctx, eventID, event)
	}
	return event, nil
}

func (m *mockCalendarClient) Delete(ctx context.Context, eventID string) error {
	m.deleteCalls++
	if m.deleteFn != nil {
		return m.deleteFn(ctx, eventID)
	}
	return nil
}

func (m *mockCalendarClient) Watch(ctx context.Context, webhookURL string) (*model.WebhookChannel, error) {
	m.watchCalls++
	if m.watchFn != nil {
		return m.watchFn(ctx, webhookURL)
	}
	return &model.WebhookChannel{
		ChannelID:  "chan-1",
		ResourceID: "res-1",
		CalendarID: m.CalendarID(),
		Expiration: time.Now().Add(7 * 24 * time.Hour),
	}, nil
}

func (m *mockCalendarClient) StopWatch(ctx context.Context, channelID, resourceID string) error {
	m.stopWatchCalls++
	if m.stopWatchFn != nil {
		return m.stopWatchFn(ctx, channelID, resourceID)
	}
	return nil
}

type mockNotionClient struct {
	createPageFn         func(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error)
	updatePageFn         func(ctx context.Context, pageID string, properties map[string]notion.Property) error
	getPageFn            func(ctx context.Context, pageID string) (*notion.Page, error)
	archivePageFn        func(ctx context.Context, pageID string) error
	queryDatabaseFn      func(ctx context.Context, databaseID string) ([]notion.Page, error)
	createSubscriptionFn func(ctx context.Context, databaseID, webhookURL string) (*notion.Subscription, error)
	deleteSubscriptionFn func(ctx context.Context, subscriptionID string) error

	createPageCalls         int
	updatePageCalls         int
	archivePageCalls        int
	createSubscriptionCalls int
	deleteSubscriptionCalls int
}

func (m *mockNotionClient) CreatePage(ctx context.Context, databaseID string, properties map[string]notion.Property) (*notion.Page, error) {
	m.createPageCalls++
	if m.createPageFn != nil {
		return m.createPageFn(ctx, databaseID, properties)
	}
	return &notion.Page{ID: "page-new"}, nil
}

func (m *mockNotionClient) UpdatePage(ctx context.Context, pageID string, properties map[string]notion.Property) error {
	m.updatePageCalls++
	if m.updatePageFn != nil {
		return m.updatePageFn(ctx, pageID, properties)
	}
	return nil
}

func (m *mockNotionClient) GetPage(ctx context.Context, pageID string) (*notion.Page, error) {
	if m.getPageFn != nil {
		return m.getPageFn(ctx, pageID)
	}
	return &notion.Page{ID: pageID}, nil
}

func (m *mockNotionClient) ArchivePage(ctx context.Context, pageID string) error {
	m.archivePageCalls++
	if m.archivePageFn != nil {
		return m.archivePageFn(ctx, pageID)
	}
	return nil
}

func (m *mockNotionClient) QueryDatabase(ctx context.Context, databaseID string) ([]notion.Page, error) {
	if m.queryDatabaseFn != nil {
		return m.queryDatabaseFn(ctx, databaseID)
	}
	return nil, nil
}

func (m *mockNotionClient) CreateSubscription(ctx context.Context, databaseID, webhookURL string) (*notion.Subscription, error) {
	m.createSubscriptionCalls++
	if m.createSubscriptionFn != nil {
		return m.createSubscriptionFn(ctx, databaseID, webhookURL)
	}
	return &notion.Subscription{ID: "sub-1", DatabaseID: databaseID}, nil
}

func (m *mockNotionClient) DeleteSubscription(ctx context.Context, subscriptionID string) error {
	m.deleteSubscriptionCalls++
	if m.deleteSubscriptionFn != nil {
		return m.deleteSubscriptionFn(ctx, subscriptionID)
	}
	return nil
}

type mockCursorStore struct {
	getFn   func(ctx context.Context, source model.SyncSource) (*model.SyncCursor, error)
	setFn   func(ctx context.Context, cursor *model.SyncCursor) error
	clearFn func(ctx context.Context, source model.SyncSource) error

	clearCalls int
}

func (m *mockCursorStore) Get(ctx context.Context, source model.SyncSource) (*model.SyncCursor, error) {
	if m.getFn != nil {
		return m.getFn(ctx, source)
	}
	return nil, store.ErrNotFound
}

func (m *mockCursorStore) Set(ctx context.Context, cursor *model.SyncCursor) error {
	if m.setFn != nil {
		return m.setFn(ctx, cursor)
	}
	return nil
}

func (m *mockCursorStore) Clear(ctx context.Context, source model.SyncSource) error {
	m.clearCalls++
	if m.clearFn != nil {
		return m.clearFn(ctx, source)
	}
	return nil
}

type mockSyncLogStore struct {
	entries []model.SyncLogEntry
}

func (m *mockSyncLogStore) Append(ctx context.Context, entry *model.SyncLogEntry) error {
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *mockSyncLogStore) List(ctx context.Context, limit int32) ([]model.SyncLogEntry, error) {
	return m.entries, nil
}

type mockSettingsStore struct {
	settings *model.Settings
}

func (m *mockSettingsStore) Get(ctx context.Context) (*model.Settings, error) {
	if m.settings != nil {
		return m.settings, nil
	}
	return &model.Settings{
		CalendarID: "primary",
		DatabaseID: "db-1",
		SelfEmail:  "me@example.com",
		Properties: model.DefaultPropertySchema(),
	}, nil
}

func (m *mockSettingsStore) Put(ctx context.Context, settings *model.Settings) error {
	m.settings = settings
	return nil
}

type mockChannelStore struct {
	channel *model.WebhookChannel

	saveCalls   int
	deleteCalls int
}

func (m *mockChannelStore) Get(ctx context.Context) (*model.WebhookChannel, error) {
	if m.channel == nil {
		return nil, store.ErrNotFound
	}
	return m.channel, nil
}

func (m *mockChannelStore) Save(ctx context.Context, channel *model.WebhookChannel) error {
	m.saveCalls++
	m.channel = channel
	return nil
}

func (m *mockChannelStore) Delete(ctx context.Context, channelID string) error {
	m.deleteCalls++
	m.channel = nil
	return nil
}

type mockSubscriptionStore struct {
	sub *model.WebhookSubscription
}

func (m *mockSubscriptionStore) Get(ctx context.Context) (*model.WebhookSubscription, error) {
	if m.sub == nil {
		return nil, store.ErrNotFound
	}
	return m.sub, nil
}

func (m *mockSubscriptionStore) Save(ctx context.Context, sub *model.WebhookSubscription) error {
	m.sub = sub
	return nil
}

func (m *mockSubscriptionStore) SetVerificationToken(ctx context.Context, subscriptionID, token string) error {
	if m.sub != nil && m.sub.SubscriptionID == subscriptionID {
		m.sub.VerificationToken = token
	}
	return nil
}

func (m *mockSubscriptionStore) MarkVerified(ctx context.Context, subscriptionID string) error {
	if m.sub != nil && m.sub.SubscriptionID == subscriptionID && !m.sub.Verified {
		m.sub.Verified = true
		now := time.Now().UTC()
		m.sub.VerifiedAt = &now
	}
	return nil
}

func (m *mockSubscriptionStore) Delete(ctx context.Context, subscriptionID string) error {
	m.sub = nil
	return nil
}

type mockProgressStore struct {
	records map[model.JobKind]*model.ProgressRecord

	setCalls int
}

func newMockProgressStore() *mockProgressStore {
	return &mockProgressStore{records: make(map[model.JobKind]*model.ProgressRecord)}
}

func (m *mockProgressStore) Get(ctx context.Context, kind model.JobKind) (*model.ProgressRecord, error) {
	record, ok := m.records[kind]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *record
	return &copied, nil
}

func (m *mockProgressStore) Set(ctx context.Context, record *model.ProgressRecord) error {
	m.setCalls++
	copied := *record
	m.records[record.Kind] = &copied
	return nil
}
