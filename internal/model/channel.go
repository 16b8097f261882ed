package model

import "time"

// ChannelState is the lifecycle position of a calendar push channel.
type ChannelState string

const (
	ChannelStateNone       ChannelState = "none"
	ChannelStateActive     ChannelState = "active"
	ChannelStateNearExpiry ChannelState = "near_expiry"
	ChannelStateExpired    ChannelState = "expired"
)

// RenewalThreshold is how close to expiry a channel may get before the
// renewal sweep replaces it.
const RenewalThreshold = 6 * time.Hour

// WebhookChannel is a Google Calendar push-notification channel. Exactly one
// active channel exists per calendar; a channel bound to a calendar other
// than the currently configured one counts as inactive even if unexpired.
type WebhookChannel struct {
	ChannelID  string    `json:"channel_id"`
	ResourceID string    `json:"resource_id"`
	CalendarID string    `json:"calendar_id"`
	Expiration time.Time `json:"expiration"`
	CreatedAt  time.Time `json:"created_at"`
	RenewedAt  time.Time `json:"renewed_at"`
}

// Expired reports whether the channel's expiration has passed.
func (c *WebhookChannel) Expired(now time.Time) bool {
	return !c.Expiration.After(now)
}

// NeedsRenewal reports whether the channel is inside the renewal window.
func (c *WebhookChannel) NeedsRenewal(now time.Time) bool {
	return c.Expiration.Sub(now) < RenewalThreshold
}

// State classifies the channel against the configured calendar id.
func (c *WebhookChannel) State(calendarID string, now time.Time) ChannelState {
	if c == nil || c.CalendarID != calendarID {
		return ChannelStateNone
	}
	if c.Expired(now) {
		return ChannelStateExpired
	}
	if c.NeedsRenewal(now) {
		return ChannelStateNearExpiry
	}
	return ChannelStateActive
}

// WebhookSubscription is the Notion-side webhook registration. Notion offers
// no status-query API, so the stored state is authoritative: an unverified
// subscription is inactive regardless of anything else, and verification is
// a one-way transition, never inferred.
type WebhookSubscription struct {
	SubscriptionID    string    `json:"subscription_id"`
	DatabaseID        string    `json:"database_id"`
	VerificationToken string    `json:"-"` // never expose in API responses
	Verified          bool      `json:"verified"`
	CreatedAt         time.Time `json:"created_at"`
	VerifiedAt        *time.Time `json:"verified_at,omitempty"`
}

// Active reports whether the subscription targets the configured database
// and has completed verification.
func (s *WebhookSubscription) Active(databaseID string) bool {
	return s != nil && s.DatabaseID == databaseID && s.Verified
}
