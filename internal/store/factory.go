package store

import (
	"github.com/jackc/pgx/v5/pgxpool"
)

type Stores struct {
	pool *pgxpool.Pool
}

func NewStores(pool *pgxpool.Pool) *Stores {
	return &Stores{pool: pool}
}

func (s *Stores) SyncCursors() SyncCursorStore {
	return newSyncCursorStore(s.pool)
}

func (s *Stores) WebhookChannels() WebhookChannelStore {
	return newWebhookChannelStore(s.pool)
}

func (s *Stores) WebhookSubscriptions() WebhookSubscriptionStore {
	return newWebhookSubscriptionStore(s.pool)
}

func (s *Stores) Progress() ProgressStore {
	return newProgressStore(s.pool)
}

func (s *Stores) SyncLogs() SyncLogStore {
	return newSyncLogStore(s.pool)
}

func (s *Stores) Settings() SettingsStore {
	return newSettingsStore(s.pool)
}
