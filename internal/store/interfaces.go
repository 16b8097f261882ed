package store

import (
	"context"
	"errors"

	"calbridge.app/bridge/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// SyncCursorStore persists one incremental-sync token per remote system.
type SyncCursorStore interface {
	Get(ctx context.Context, source model.SyncSource) (*model.SyncCursor, error)
	Set(ctx context.Context, cursor *model.SyncCursor) error
	// Clear removes the cursor in a single write so an expired token can
	// never be observed half-updated.
	Clear(ctx context.Context, source model.SyncSource) error
}

// WebhookChannelStore persists the calendar push channel. At most one
// channel row exists; saving replaces it.
type WebhookChannelStore interface {
	Get(ctx context.Context) (*model.WebhookChannel, error)
	Save(ctx context.Context, channel *model.WebhookChannel) error
	Delete(ctx context.Context, channelID string) error
}

// WebhookSubscriptionStore persists the document-store webhook
// registration. Verification state only ever moves false→true.
type WebhookSubscriptionStore interface {
	Get(ctx context.Context) (*model.WebhookSubscription, error)
	Save(ctx context.Context, sub *model.WebhookSubscription) error
	SetVerificationToken(ctx context.Context, subscriptionID, token string) error
	MarkVerified(ctx context.Context, subscriptionID string) error
	Delete(ctx context.Context, subscriptionID string) error
}

// ProgressStore persists coordinator checkpoints, one record per job kind.
// Callers follow a get-merge-set pattern; there is no field-level update.
type ProgressStore interface {
	Get(ctx context.Context, kind model.JobKind) (*model.ProgressRecord, error)
	Set(ctx context.Context, record *model.ProgressRecord) error
}

// SyncLogStore is the append-only audit trail. The engine only appends;
// List exists for the dashboard API.
type SyncLogStore interface {
	Append(ctx context.Context, entry *model.SyncLogEntry) error
	List(ctx context.Context, limit int32) ([]model.SyncLogEntry, error)
}

// SettingsStore resolves the sync configuration. There is exactly one row.
type SettingsStore interface {
	Get(ctx context.Context) (*model.Settings, error)
	Put(ctx context.Context, settings *model.Settings) error
}
