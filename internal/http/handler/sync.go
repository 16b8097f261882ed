package handler

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"calbridge.app/bridge/internal/http/dto"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/store"
)

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

type SyncHandler struct {
	syncLogs store.SyncLogStore
	producer queue.Producer
}

func NewSyncHandler(syncLogs store.SyncLogStore, producer queue.Producer) *SyncHandler {
	return &SyncHandler{
		syncLogs: syncLogs,
		producer: producer,
	}
}

// Run enqueues an incremental sync pass, same as a Google notification
// would. Useful when a notification was missed or a channel lapsed.
func (h *SyncHandler) Run(c *gin.Context) {
	ctx := c.Request.Context()

	task := queue.Task{TaskType: queue.TaskTypeCalendarSync, Attempt: 1}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		task.TraceID = &traceID
	}

	if err := h.producer.Enqueue(ctx, task); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue manual sync", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue sync"})
		return
	}

	slog.InfoContext(ctx, "manual sync enqueued")
	c.JSON(http.StatusAccepted, gin.H{"status": "enqueued"})
}

func (h *SyncHandler) Log(c *gin.Context) {
	ctx := c.Request.Context()

	limit, err := strconv.ParseInt(c.DefaultQuery("limit", strconv.Itoa(defaultLogLimit)), 10, 32)
	if err != nil || limit < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit parameter"})
		return
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	entries, err := h.syncLogs.List(ctx, int32(limit))
	if err != nil {
		slog.ErrorContext(ctx, "failed to list sync log", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load sync log"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": dto.SyncLogFrom(entries)})
}
