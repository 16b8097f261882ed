package dto

import (
	"time"

	"calbridge.app/bridge/internal/model"
)

type ChannelStatusResponse struct {
	State      string     `json:"state"`
	ChannelID  string     `json:"channel_id,omitempty"`
	CalendarID string     `json:"calendar_id,omitempty"`
	Expiration *time.Time `json:"expiration,omitempty"`
}

func ChannelStatusFrom(state model.ChannelState, channel *model.WebhookChannel) ChannelStatusResponse {
	resp := ChannelStatusResponse{State: string(state)}
	if channel != nil {
		resp.ChannelID = channel.ChannelID
		resp.CalendarID = channel.CalendarID
		exp := channel.Expiration
		resp.Expiration = &exp
	}
	return resp
}

type SubscriptionStatusResponse struct {
	Registered     bool       `json:"registered"`
	Active         bool       `json:"active"`
	SubscriptionID string     `json:"subscription_id,omitempty"`
	DatabaseID     string     `json:"database_id,omitempty"`
	Verified       bool       `json:"verified"`
	VerifiedAt     *time.Time `json:"verified_at,omitempty"`
}

func SubscriptionStatusFrom(active bool, sub *model.WebhookSubscription) SubscriptionStatusResponse {
	if sub == nil {
		return SubscriptionStatusResponse{}
	}
	return SubscriptionStatusResponse{
		Registered:     true,
		Active:         active,
		SubscriptionID: sub.SubscriptionID,
		DatabaseID:     sub.DatabaseID,
		Verified:       sub.Verified,
		VerifiedAt:     sub.VerifiedAt,
	}
}
