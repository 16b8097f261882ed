package handler

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/dto"
	"calbridge.app/bridge/internal/service"
)

// ChannelHandler exposes the state of the two webhook registrations and
// lets an operator force a re-register or teardown. The renewal loop in
// the worker does the same work on a timer; these endpoints exist for
// recovery after a webhook URL change.
type ChannelHandler struct {
	channels         service.ChannelManager
	googleWebhookURL string
	notionWebhookURL string
}

func NewChannelHandler(channels service.ChannelManager, googleWebhookURL, notionWebhookURL string) *ChannelHandler {
	return &ChannelHandler{
		channels:         channels,
		googleWebhookURL: googleWebhookURL,
		notionWebhookURL: notionWebhookURL,
	}
}

func (h *ChannelHandler) Status(c *gin.Context) {
	ctx := c.Request.Context()

	state, channel, err := h.channels.ChannelStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load channel status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load channel status"})
		return
	}

	active, sub, err := h.channels.SubscriptionStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load subscription status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription status"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"google": dto.ChannelStatusFrom(state, channel),
		"notion": dto.SubscriptionStatusFrom(active, sub),
	})
}

func (h *ChannelHandler) Ensure(c *gin.Context) {
	ctx := c.Request.Context()

	if _, err := h.channels.EnsureChannel(ctx, h.googleWebhookURL); err != nil {
		slog.ErrorContext(ctx, "failed to ensure google channel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register google channel"})
		return
	}

	sub, err := h.channels.EnsureSubscription(ctx, h.notionWebhookURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to ensure notion subscription", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register notion subscription"})
		return
	}

	state, channel, err := h.channels.ChannelStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load channel status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load channel status"})
		return
	}
	active, _, err := h.channels.SubscriptionStatus(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load subscription status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load subscription status"})
		return
	}

	slog.InfoContext(ctx, "webhook registrations ensured",
		"channel_id", channel.ChannelID,
		"subscription_id", sub.SubscriptionID,
	)
	c.JSON(http.StatusOK, gin.H{
		"google": dto.ChannelStatusFrom(state, channel),
		"notion": dto.SubscriptionStatusFrom(active, sub),
	})
}

func (h *ChannelHandler) Stop(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.channels.StopChannel(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to stop google channel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to stop channel"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}
