package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/store"
)

// ChannelManager owns the push-notification registrations on both remotes:
// the Google Calendar watch channel and the Notion webhook subscription.
// Registrations are idempotent and the stored state is authoritative for
// status; nothing here polls the remotes.
type ChannelManager interface {
	EnsureChannel(ctx context.Context, webhookURL string) (*model.WebhookChannel, error)
	RenewChannel(ctx context.Context, webhookURL string) (*model.WebhookChannel, error)
	StopChannel(ctx context.Context) error
	ChannelStatus(ctx context.Context) (model.ChannelState, *model.WebhookChannel, error)
	NeedsRenewal(ctx context.Context) (bool, error)

	EnsureSubscription(ctx context.Context, webhookURL string) (*model.WebhookSubscription, error)
	VerifySubscription(ctx context.Context, token string) error
	SubscriptionStatus(ctx context.Context) (bool, *model.WebhookSubscription, error)
}

type channelManager struct {
	calendar      CalendarClient
	notion        NotionClient
	channels      store.WebhookChannelStore
	subscriptions store.WebhookSubscriptionStore
	settings      store.SettingsStore
	now           func() time.Time
}

func NewChannelManager(
	cal CalendarClient,
	notionClient NotionClient,
	channels store.WebhookChannelStore,
	subscriptions store.WebhookSubscriptionStore,
	settings store.SettingsStore,
) ChannelManager {
	return &channelManager{
		calendar:      cal,
		notion:        notionClient,
		channels:      channels,
		subscriptions: subscriptions,
		settings:      settings,
		now:           time.Now,
	}
}

// EnsureChannel registers a watch channel if no usable one exists. A
// channel bound to a different calendar than the configured one is stopped
// and replaced; an active one is returned as-is.
func (m *channelManager) EnsureChannel(ctx context.Context, webhookURL string) (*model.WebhookChannel, error) {
	existing, err := m.channels.Get(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading channel: %w", err)
	}

	now := m.now()
	if existing != nil {
		switch existing.State(m.calendar.CalendarID(), now) {
		case model.ChannelStateActive, model.ChannelStateNearExpiry:
			return existing, nil
		}
		// Stale or mismatched: best-effort stop before replacing. The remote
		// may have already dropped it, so failures only get logged.
		if err := m.calendar.StopWatch(ctx, existing.ChannelID, existing.ResourceID); err != nil {
			slog.WarnContext(ctx, "stopping stale channel failed", "channel_id", existing.ChannelID, "error", err)
		}
	}

	return m.register(ctx, webhookURL)
}

// RenewChannel replaces the current channel regardless of its state. The
// old channel is stopped only after the new one is registered and saved,
// so a renewal failure never leaves us without notifications.
func (m *channelManager) RenewChannel(ctx context.Context, webhookURL string) (*model.WebhookChannel, error) {
	old, err := m.channels.Get(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading channel: %w", err)
	}

	channel, err := m.register(ctx, webhookURL)
	if err != nil {
		return nil, err
	}

	if old != nil && old.ChannelID != channel.ChannelID {
		if err := m.calendar.StopWatch(ctx, old.ChannelID, old.ResourceID); err != nil {
			slog.WarnContext(ctx, "stopping replaced channel failed", "channel_id", old.ChannelID, "error", err)
		}
	}
	return channel, nil
}

func (m *channelManager) register(ctx context.Context, webhookURL string) (*model.WebhookChannel, error) {
	channel, err := m.calendar.Watch(ctx, webhookURL)
	if err != nil {
		return nil, fmt.Errorf("registering watch channel: %w", err)
	}
	channel.CreatedAt = m.now().UTC()
	channel.RenewedAt = channel.CreatedAt

	if err := m.channels.Save(ctx, channel); err != nil {
		return nil, fmt.Errorf("saving channel: %w", err)
	}
	slog.InfoContext(ctx, "watch channel registered",
		"channel_id", channel.ChannelID, "expires", channel.Expiration)
	return channel, nil
}

// StopChannel tears down the current channel. Absence is not an error.
func (m *channelManager) StopChannel(ctx context.Context) error {
	channel, err := m.channels.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("loading channel: %w", err)
	}

	if err := m.calendar.StopWatch(ctx, channel.ChannelID, channel.ResourceID); err != nil {
		return fmt.Errorf("stopping channel: %w", err)
	}
	if err := m.channels.Delete(ctx, channel.ChannelID); err != nil {
		return fmt.Errorf("deleting channel: %w", err)
	}
	return nil
}

// ChannelStatus classifies the stored channel against the configured
// calendar. A channel bound elsewhere reports as none.
func (m *channelManager) ChannelStatus(ctx context.Context) (model.ChannelState, *model.WebhookChannel, error) {
	channel, err := m.channels.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return model.ChannelStateNone, nil, nil
		}
		return model.ChannelStateNone, nil, fmt.Errorf("loading channel: %w", err)
	}
	return channel.State(m.calendar.CalendarID(), m.now()), channel, nil
}

// NeedsRenewal reports whether the renewal sweep should act.
func (m *channelManager) NeedsRenewal(ctx context.Context) (bool, error) {
	state, _, err := m.ChannelStatus(ctx)
	if err != nil {
		return false, err
	}
	return state == model.ChannelStateNearExpiry || state == model.ChannelStateExpired, nil
}

// EnsureSubscription registers the Notion webhook if none targets the
// configured database. Verification completes out of band: Notion posts a
// one-time token to the webhook endpoint, which lands in
// VerifySubscription.
func (m *channelManager) EnsureSubscription(ctx context.Context, webhookURL string) (*model.WebhookSubscription, error) {
	settings, err := m.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolving settings: %w", err)
	}

	existing, err := m.subscriptions.Get(ctx)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("loading subscription: %w", err)
	}
	if existing != nil && existing.DatabaseID == settings.DatabaseID {
		return existing, nil
	}

	if existing != nil {
		if err := m.notion.DeleteSubscription(ctx, existing.SubscriptionID); err != nil {
			slog.WarnContext(ctx, "deleting mismatched subscription failed",
				"subscription_id", existing.SubscriptionID, "error", err)
		}
	}

	created, err := m.notion.CreateSubscription(ctx, settings.DatabaseID, webhookURL)
	if err != nil {
		return nil, fmt.Errorf("creating subscription: %w", err)
	}

	sub := &model.WebhookSubscription{
		SubscriptionID: created.ID,
		DatabaseID:     settings.DatabaseID,
		CreatedAt:      m.now().UTC(),
	}
	if err := m.subscriptions.Save(ctx, sub); err != nil {
		return nil, fmt.Errorf("saving subscription: %w", err)
	}
	slog.InfoContext(ctx, "notion subscription registered", "subscription_id", sub.SubscriptionID)
	return sub, nil
}

// VerifySubscription stores the handshake token and flips the subscription
// to verified. Callers gate on the pending state; once verified the token
// is an HMAC key and must not be replaced by an unauthenticated delivery.
func (m *channelManager) VerifySubscription(ctx context.Context, token string) error {
	sub, err := m.subscriptions.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("no subscription to verify: %w", err)
		}
		return fmt.Errorf("loading subscription: %w", err)
	}

	if err := m.subscriptions.SetVerificationToken(ctx, sub.SubscriptionID, token); err != nil {
		return fmt.Errorf("storing verification token: %w", err)
	}
	if err := m.subscriptions.MarkVerified(ctx, sub.SubscriptionID); err != nil {
		return fmt.Errorf("marking subscription verified: %w", err)
	}
	slog.InfoContext(ctx, "notion subscription verified", "subscription_id", sub.SubscriptionID)
	return nil
}

// SubscriptionStatus classifies the stored subscription against the
// configured database, mirroring ChannelStatus on the calendar side. A
// subscription bound to another database reports as absent; one awaiting
// the handshake is returned but inactive.
func (m *channelManager) SubscriptionStatus(ctx context.Context) (bool, *model.WebhookSubscription, error) {
	sub, err := m.subscriptions.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil, nil
		}
		return false, nil, fmt.Errorf("loading subscription: %w", err)
	}

	settings, err := m.settings.Get(ctx)
	if err != nil {
		return false, nil, fmt.Errorf("resolving settings: %w", err)
	}
	if sub.DatabaseID != settings.DatabaseID {
		return false, nil, nil
	}
	return sub.Active(settings.DatabaseID), sub, nil
}
