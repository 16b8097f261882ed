package service

import (
	"calbridge.app/bridge/internal/store"
)

type Services struct {
	stores   *store.Stores
	calendar CalendarClient
	notion   NotionClient
}

func NewServices(stores *store.Stores, calendar CalendarClient, notion NotionClient) *Services {
	return &Services{
		stores:   stores,
		calendar: calendar,
		notion:   notion,
	}
}

func (s *Services) Reconciler() Reconciler {
	return NewReconciler(
		s.calendar,
		s.notion,
		s.stores.SyncCursors(),
		s.stores.SyncLogs(),
		s.stores.Settings(),
	)
}

func (s *Services) Channels() ChannelManager {
	return NewChannelManager(
		s.calendar,
		s.notion,
		s.stores.WebhookChannels(),
		s.stores.WebhookSubscriptions(),
		s.stores.Settings(),
	)
}

func (s *Services) Backfill() Backfill {
	return NewBackfill(
		s.calendar,
		s.notion,
		s.stores.Progress(),
		s.stores.Settings(),
	)
}

func (s *Services) Historical() Historical {
	return NewHistorical(
		s.calendar,
		s.Reconciler(),
		s.stores.Progress(),
		s.stores.Settings(),
	)
}
