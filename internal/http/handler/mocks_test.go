package handler_test

import (
	"context"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/store"
)

type fakeProducer struct {
	tasks []queue.Task
	err   error
}

func (f *fakeProducer) Enqueue(ctx context.Context, task queue.Task) error {
	if f.err != nil {
		return f.err
	}
	f.tasks = append(f.tasks, task)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

type fakeBackfill struct {
	startFn  func(ctx context.Context, fields []model.SyncedField) (*model.ProgressRecord, error)
	cancelFn func(ctx context.Context) error
	statusFn func(ctx context.Context) (*model.ProgressRecord, error)
}

func (f *fakeBackfill) Start(ctx context.Context, fields []model.SyncedField) (*model.ProgressRecord, error) {
	if f.startFn != nil {
		return f.startFn(ctx, fields)
	}
	return &model.ProgressRecord{Kind: model.JobKindBackfill, RunID: 1, Status: model.JobStatusRunning, Fields: fields}, nil
}

func (f *fakeBackfill) Run(ctx context.Context) error { return nil }

func (f *fakeBackfill) Cancel(ctx context.Context) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx)
	}
	return nil
}

func (f *fakeBackfill) Status(ctx context.Context) (*model.ProgressRecord, error) {
	if f.statusFn != nil {
		return f.statusFn(ctx)
	}
	return &model.ProgressRecord{Kind: model.JobKindBackfill, Status: model.JobStatusIdle}, nil
}

type fakeHistorical struct {
	previewFn func(ctx context.Context, days int) (*model.HistoricalPreview, error)
	startFn   func(ctx context.Context, days int) (*model.ProgressRecord, error)
}

func (f *fakeHistorical) Preview(ctx context.Context, days int) (*model.HistoricalPreview, error) {
	if f.previewFn != nil {
		return f.previewFn(ctx, days)
	}
	return &model.HistoricalPreview{Days: days}, nil
}

func (f *fakeHistorical) Start(ctx context.Context, days int) (*model.ProgressRecord, error) {
	if f.startFn != nil {
		return f.startFn(ctx, days)
	}
	return &model.ProgressRecord{Kind: model.JobKindHistorical, RunID: 2, Status: model.JobStatusRunning, Days: days}, nil
}

func (f *fakeHistorical) Run(ctx context.Context) error { return nil }

func (f *fakeHistorical) Cancel(ctx context.Context) error { return nil }

func (f *fakeHistorical) Status(ctx context.Context) (*model.ProgressRecord, error) {
	return &model.ProgressRecord{Kind: model.JobKindHistorical, Status: model.JobStatusIdle}, nil
}

type fakeSyncLogStore struct {
	entries   []model.SyncLogEntry
	lastLimit int32
}

func (f *fakeSyncLogStore) Append(ctx context.Context, entry *model.SyncLogEntry) error {
	f.entries = append(f.entries, *entry)
	return nil
}

func (f *fakeSyncLogStore) List(ctx context.Context, limit int32) ([]model.SyncLogEntry, error) {
	f.lastLimit = limit
	if int(limit) < len(f.entries) {
		return f.entries[:limit], nil
	}
	return f.entries, nil
}

type fakeSettingsStore struct {
	settings *model.Settings
	putCalls int
}

func (f *fakeSettingsStore) Get(ctx context.Context) (*model.Settings, error) {
	if f.settings == nil {
		return nil, store.ErrNotFound
	}
	return f.settings, nil
}

func (f *fakeSettingsStore) Put(ctx context.Context, settings *model.Settings) error {
	f.settings = settings
	f.putCalls++
	return nil
}
