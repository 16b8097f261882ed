package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"calbridge.app/bridge/common/logger"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/service"
)

type Config struct {
	MaxAttempts int
}

type Worker struct {
	consumer   *queue.RedisConsumer
	reconciler service.Reconciler
	backfill   service.Backfill
	historical service.Historical
	cfg        Config

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(consumer *queue.RedisConsumer, svcs *service.Services, cfg Config) *Worker {
	return &Worker{
		consumer:   consumer,
		reconciler: svcs.Reconciler(),
		backfill:   svcs.Backfill(),
		historical: svcs.Historical(),
		cfg:        cfg,
		stopCh:     make(chan struct{}),
		stoppedCh:  make(chan struct{}),
	}
}

func (w *Worker) Run(ctx context.Context) error {
	defer close(w.stoppedCh)

	slog.InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stopCh:
			slog.InfoContext(ctx, "worker stopping")
			return nil
		default:
			if err := w.processOneBatch(ctx); err != nil {
				slog.ErrorContext(ctx, "batch processing error", "error", err)
				// Brief backoff on error
				time.Sleep(time.Second)
			}
		}
	}
}

func (w *Worker) Stop() {
	close(w.stopCh)
	<-w.stoppedCh
}

func (w *Worker) processOneBatch(ctx context.Context) error {
	messages, err := w.consumer.Read(ctx)
	if err != nil {
		return fmt.Errorf("reading from stream: %w", err)
	}

	for _, msg := range messages {
		if err := w.processMessageSafe(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "message processing failed",
				"error", err,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			w.handleFailedMessage(ctx, msg, err)
		}
	}

	return nil
}

func (w *Worker) processMessageSafe(ctx context.Context, msg queue.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in message processing",
				"panic", r,
				"message_id", msg.ID,
				"task_type", msg.TaskType)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return w.ProcessMessage(ctx, msg)
}

// Exported so it can be reused by the reclaimer.
func (w *Worker) ProcessMessage(ctx context.Context, msg queue.Message) error {
	taskType := string(msg.TaskType)
	fields := logger.LogFields{
		MessageID: &msg.ID,
		TaskType:  &taskType,
	}
	if msg.PageID != "" {
		fields.PageID = &msg.PageID
	}
	ctx = logger.WithLogFields(ctx, fields)

	sc := logger.StartSpanFromTraceID(ctx, msg.TraceID, "worker.process_message")
	defer sc.End()
	ctx = sc.Context()

	slog.InfoContext(ctx, "processing task", "attempt", msg.Attempt)

	var procErr error
	switch msg.TaskType {
	case queue.TaskTypeCalendarSync:
		procErr = w.reconciler.SyncFromCalendar(ctx)
	case queue.TaskTypeNotionPage:
		procErr = w.reconciler.SyncNotionPage(ctx, msg.PageID)
	case queue.TaskTypeBackfillRun:
		procErr = w.backfill.Run(ctx)
	case queue.TaskTypeHistoricalRun:
		procErr = w.historical.Run(ctx)
	default:
		// Parser rejects unknown types, but a deploy skew can still deliver
		// one. Ack so it doesn't loop.
		slog.WarnContext(ctx, "unknown task type, dropping")
	}

	// A run task for a job that is no longer reserved is stale, not failed:
	// the job finished, failed, or was cancelled through the API.
	if errors.Is(procErr, service.ErrNotRunning) {
		slog.InfoContext(ctx, "job no longer running, dropping task")
		procErr = nil
	}

	if procErr != nil {
		sc.RecordError(procErr)
		return procErr
	}

	if err := w.consumer.Ack(ctx, msg); err != nil {
		// Message will be reclaimed but reprocessing is safe: every task
		// here is idempotent.
		slog.WarnContext(ctx, "failed to ACK message", "error", err)
	}

	return nil
}

func (w *Worker) handleFailedMessage(ctx context.Context, msg queue.Message, err error) {
	if msg.Attempt >= w.cfg.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, sending to DLQ",
			"message_id", msg.ID,
			"task_type", msg.TaskType,
			"attempts", msg.Attempt)
		if dlqErr := w.consumer.SendDLQ(ctx, msg, err.Error()); dlqErr != nil {
			slog.ErrorContext(ctx, "failed to send to DLQ", "error", dlqErr)
		}
		return
	}

	slog.WarnContext(ctx, "requeuing failed message",
		"message_id", msg.ID,
		"task_type", msg.TaskType,
		"attempt", msg.Attempt)
	if requeueErr := w.consumer.Requeue(ctx, msg, err.Error()); requeueErr != nil {
		slog.ErrorContext(ctx, "failed to requeue message", "error", requeueErr)
	}
}
