package webhook

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/store"
)

// Resource states sent by Google Calendar push notifications.
const (
	googleStateSync = "sync"
)

type GoogleWebhookHandler struct {
	channels store.WebhookChannelStore
	producer queue.Producer
}

func NewGoogleWebhookHandler(channels store.WebhookChannelStore, producer queue.Producer) *GoogleWebhookHandler {
	return &GoogleWebhookHandler{
		channels: channels,
		producer: producer,
	}
}

// HandleNotification receives Google Calendar push notifications. The
// notification carries no event payload, only channel identification
// headers, so all it does after validation is enqueue an incremental
// sync pass.
func (h *GoogleWebhookHandler) HandleNotification(c *gin.Context) {
	ctx := c.Request.Context()

	channelID := c.GetHeader("X-Goog-Channel-ID")
	resourceID := c.GetHeader("X-Goog-Resource-ID")
	state := c.GetHeader("X-Goog-Resource-State")

	if channelID == "" || resourceID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing channel headers"})
		return
	}

	channel, err := h.channels.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// A notification for a channel we no longer track. Google
			// retries on non-2xx, so acknowledge and let the channel
			// expire on its own.
			slog.WarnContext(ctx, "notification for unknown channel, ignoring",
				"channel_id", channelID,
			)
			c.Status(http.StatusOK)
			return
		}
		slog.ErrorContext(ctx, "failed to load webhook channel", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to validate channel"})
		return
	}

	if channel.ChannelID != channelID || channel.ResourceID != resourceID {
		slog.WarnContext(ctx, "notification from stale channel, ignoring",
			"channel_id", channelID,
			"resource_id", resourceID,
			"active_channel_id", channel.ChannelID,
		)
		c.Status(http.StatusOK)
		return
	}

	// The first message on a new channel is a handshake, not a change.
	if state == googleStateSync {
		slog.InfoContext(ctx, "google channel handshake acknowledged", "channel_id", channelID)
		c.Status(http.StatusOK)
		return
	}

	task := queue.Task{
		TaskType: queue.TaskTypeCalendarSync,
		Attempt:  1,
	}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		task.TraceID = &traceID
	}

	if err := h.producer.Enqueue(ctx, task); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue calendar sync", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync"})
		return
	}

	slog.InfoContext(ctx, "google notification accepted",
		"channel_id", channelID,
		"resource_state", state,
	)
	c.Status(http.StatusOK)
}
