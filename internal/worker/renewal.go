package worker

import (
	"context"
	"log/slog"
	"time"

	"calbridge.app/bridge/common/logger"
	"calbridge.app/bridge/internal/service"
)

type RenewalConfig struct {
	GoogleWebhookURL string
	NotionWebhookURL string
	Interval         time.Duration
}

// ChannelRenewer keeps the push registrations alive. Google watch channels
// expire after about a week, so the sweep replaces any channel inside the
// renewal window; the Notion subscription never expires but the sweep
// re-ensures it in case it was deleted out of band.
type ChannelRenewer struct {
	channels service.ChannelManager
	cfg      RenewalConfig

	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func NewChannelRenewer(channels service.ChannelManager, cfg RenewalConfig) *ChannelRenewer {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &ChannelRenewer{
		channels:  channels,
		cfg:       cfg,
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Run blocks until Stop() is called. The first sweep happens immediately so
// a fresh deployment registers its channels without waiting an interval.
func (r *ChannelRenewer) Run(ctx context.Context) {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "bridge.worker.renewal",
	})

	defer close(r.stoppedCh)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "channel renewal sweep started", "interval", r.cfg.Interval)
	r.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			slog.InfoContext(ctx, "channel renewal sweep stopping")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

func (r *ChannelRenewer) Stop() {
	close(r.stopCh)
	<-r.stoppedCh
}

func (r *ChannelRenewer) sweep(ctx context.Context) {
	due, err := r.channels.NeedsRenewal(ctx)
	if err != nil {
		slog.ErrorContext(ctx, "checking channel state failed", "error", err)
	} else if due {
		if _, err := r.channels.RenewChannel(ctx, r.cfg.GoogleWebhookURL); err != nil {
			slog.ErrorContext(ctx, "channel renewal failed", "error", err)
		}
	} else {
		if _, err := r.channels.EnsureChannel(ctx, r.cfg.GoogleWebhookURL); err != nil {
			slog.ErrorContext(ctx, "ensuring watch channel failed", "error", err)
		}
	}

	if _, err := r.channels.EnsureSubscription(ctx, r.cfg.NotionWebhookURL); err != nil {
		slog.ErrorContext(ctx, "ensuring notion subscription failed", "error", err)
	}
}
