package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"calbridge.app/bridge/internal/http/dto"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/service"
)

// JobHandler starts, cancels, and reports on the long-running jobs. A
// start call only reserves the job; the actual run is executed by the
// worker off the queue so an API timeout can't kill it halfway through.
type JobHandler struct {
	backfill   service.Backfill
	historical service.Historical
	producer   queue.Producer
}

func NewJobHandler(backfill service.Backfill, historical service.Historical, producer queue.Producer) *JobHandler {
	return &JobHandler{
		backfill:   backfill,
		historical: historical,
		producer:   producer,
	}
}

func (h *JobHandler) StartBackfill(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartBackfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := make([]model.SyncedField, 0, len(req.Fields))
	for _, name := range req.Fields {
		field, err := model.ParseSyncedField(name)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		fields = append(fields, field)
	}

	record, err := h.backfill.Start(ctx, fields)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobRunning):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNoFields):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to start backfill", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start backfill"})
		}
		return
	}

	if err := h.enqueueRun(c, queue.TaskTypeBackfillRun); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue backfill run", "error", err, "run_id", record.RunID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue backfill"})
		return
	}

	slog.InfoContext(ctx, "backfill started", "run_id", record.RunID, "fields", req.Fields)
	c.JSON(http.StatusAccepted, dto.JobStatusFromRecord(record))
}

func (h *JobHandler) CancelBackfill(c *gin.Context) {
	h.cancel(c, h.backfill.Cancel)
}

func (h *JobHandler) BackfillStatus(c *gin.Context) {
	h.status(c, h.backfill.Status)
}

func (h *JobHandler) PreviewHistorical(c *gin.Context) {
	ctx := c.Request.Context()

	days, err := strconv.Atoi(c.DefaultQuery("days", "90"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
		return
	}

	preview, err := h.historical.Preview(ctx, days)
	if err != nil {
		if errors.Is(err, service.ErrInvalidDays) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to preview historical import", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to preview import"})
		return
	}

	c.JSON(http.StatusOK, dto.HistoricalPreviewResponse{
		Days:          preview.Days,
		Total:         preview.Total,
		New:           preview.New,
		AlreadyLinked: preview.AlreadyLinked,
		Recurring:     preview.Recurring,
	})
}

func (h *JobHandler) StartHistorical(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.StartHistoricalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	record, err := h.historical.Start(ctx, req.Days)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrJobRunning):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrInvalidDays):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			slog.ErrorContext(ctx, "failed to start historical import", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start import"})
		}
		return
	}

	if err := h.enqueueRun(c, queue.TaskTypeHistoricalRun); err != nil {
		slog.ErrorContext(ctx, "failed to enqueue historical run", "error", err, "run_id", record.RunID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to enqueue import"})
		return
	}

	slog.InfoContext(ctx, "historical import started", "run_id", record.RunID, "days", req.Days)
	c.JSON(http.StatusAccepted, dto.JobStatusFromRecord(record))
}

func (h *JobHandler) CancelHistorical(c *gin.Context) {
	h.cancel(c, h.historical.Cancel)
}

func (h *JobHandler) HistoricalStatus(c *gin.Context) {
	h.status(c, h.historical.Status)
}

func (h *JobHandler) enqueueRun(c *gin.Context, taskType queue.TaskType) error {
	ctx := c.Request.Context()

	task := queue.Task{TaskType: taskType, Attempt: 1}
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		traceID := spanCtx.TraceID().String()
		task.TraceID = &traceID
	}
	return h.producer.Enqueue(ctx, task)
}

func (h *JobHandler) cancel(c *gin.Context, cancel func(ctx context.Context) error) {
	ctx := c.Request.Context()

	if err := cancel(ctx); err != nil {
		if errors.Is(err, service.ErrNotRunning) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		slog.ErrorContext(ctx, "failed to cancel job", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to cancel job"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelling"})
}

func (h *JobHandler) status(c *gin.Context, status func(ctx context.Context) (*model.ProgressRecord, error)) {
	ctx := c.Request.Context()

	record, err := status(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load job status", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load status"})
		return
	}
	c.JSON(http.StatusOK, dto.JobStatusFromRecord(record))
}
