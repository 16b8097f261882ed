package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/common/logger"
	"calbridge.app/bridge/common/otel"
	"calbridge.app/bridge/core/config"
	"calbridge.app/bridge/core/db"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/remote/gcal"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/service"
	"calbridge.app/bridge/internal/store"
	"calbridge.app/bridge/internal/worker"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeWorker)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	slog.InfoContext(ctx, "bridge worker starting",
		"env", cfg.Env,
		"consumer_group", cfg.Pipeline.RedisGroup,
		"consumer_name", cfg.Pipeline.RedisConsumer)

	// Different node id than the server so snowflake ids never collide.
	if err := id.Init(2); err != nil {
		slog.ErrorContext(ctx, "failed to initialize id generator", "error", err)
		os.Exit(1)
	}

	database, err := db.New(ctx, cfg.DB)
	if err != nil {
		slog.ErrorContext(ctx, "failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.EnsureSchema(ctx); err != nil {
		slog.ErrorContext(ctx, "failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "database connected")

	redisOpts, err := redis.ParseURL(cfg.Pipeline.RedisURL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to parse redis url", "error", err)
		os.Exit(1)
	}

	redisClient := redis.NewClient(redisOpts)
	if err := redisClient.Ping(ctx).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	consumer, err := queue.NewRedisConsumer(redisClient, queue.ConsumerConfig{
		Stream:       cfg.Pipeline.RedisStream,
		Group:        cfg.Pipeline.RedisGroup,
		Consumer:     cfg.Pipeline.RedisConsumer,
		DLQStream:    cfg.Pipeline.RedisDLQStream,
		BatchSize:    1, // Sync passes are serial by design
		Block:        5 * time.Second,
		MaxAttempts:  3,
		RequeueDelay: time.Second,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to create consumer", "error", err)
		os.Exit(1)
	}

	stores := store.NewStores(database.Pool())

	settings, err := resolveSettings(ctx, stores.Settings(), cfg)
	if err != nil {
		slog.ErrorContext(ctx, "failed to resolve settings", "error", err)
		os.Exit(1)
	}

	calendarClient, err := newCalendarClient(ctx, cfg.Google, settings.CalendarID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create calendar client", "error", err)
		os.Exit(1)
	}
	slog.InfoContext(ctx, "calendar client bound", "calendar_id", calendarClient.CalendarID())

	notionClient := notion.NewClient(notion.ClientOptions{
		TokenProvider: notion.StaticToken(cfg.Notion.APIKey),
	})

	services := service.NewServices(stores, calendarClient, notionClient)

	w := worker.New(consumer, services, worker.Config{
		MaxAttempts: 3,
	})

	reclaimer := worker.NewRedisReclaimer(redisClient, worker.RedisReclaimerConfig{
		Stream:    cfg.Pipeline.RedisStream,
		Group:     cfg.Pipeline.RedisGroup,
		Consumer:  cfg.Pipeline.RedisConsumer + "-reclaimer",
		MinIdle:   5 * time.Minute,
		Interval:  1 * time.Minute,
		BatchSize: 10,
	}, consumer, w.ProcessMessage)

	renewer := worker.NewChannelRenewer(services.Channels(), worker.RenewalConfig{
		GoogleWebhookURL: cfg.Webhook.BaseURL + "/webhooks/google",
		NotionWebhookURL: cfg.Webhook.BaseURL + "/webhooks/notion",
		Interval:         time.Hour,
	})

	errCh := make(chan error, 3)
	go func() {
		errCh <- w.Run(ctx)
	}()
	go func() {
		reclaimer.Run(ctx)
		errCh <- nil
	}()
	go func() {
		renewer.Run(ctx)
		errCh <- nil
	}()

	slog.InfoContext(ctx, "worker initialized and running")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Stop the periodic loops first (quick), then the worker, which may be
	// mid-batch.
	renewer.Stop()
	reclaimer.Stop()
	w.Stop()

	select {
	case <-shutdownCtx.Done():
		slog.WarnContext(ctx, "shutdown timeout exceeded")
	case err := <-errCh:
		if err != nil {
			slog.ErrorContext(ctx, "worker error during shutdown", "error", err)
		}
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(ctx, "worker shutdown complete")
}

// resolveSettings loads the stored settings, seeding the row from the
// environment on first boot. Whichever process boots first wins the seed;
// the upsert makes the race harmless.
func resolveSettings(ctx context.Context, settings store.SettingsStore, cfg config.Config) (*model.Settings, error) {
	stored, err := settings.Get(ctx)
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	seeded := &model.Settings{
		CalendarID: cfg.Google.CalendarID,
		DatabaseID: cfg.Notion.DatabaseID,
		Properties: model.DefaultPropertySchema(),
	}
	if err := settings.Put(ctx, seeded); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "settings seeded from environment",
		"calendar_id", seeded.CalendarID, "database_id", seeded.DatabaseID)
	return seeded, nil
}

func newCalendarClient(ctx context.Context, cfg config.GoogleConfig, calendarID string) (*gcal.Client, error) {
	if calendarID == "" {
		calendarID = cfg.CalendarID
	}
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{calendar.CalendarScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return gcal.New(ctx, ts, calendarID)
}

const banner = `
██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗    ██╗    ██╗ ██████╗ ██████╗ ██╗  ██╗███████╗██████╗
██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝    ██║    ██║██╔═══██╗██╔══██╗██║ ██╔╝██╔════╝██╔══██╗
██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗      ██║ █╗ ██║██║   ██║██████╔╝█████╔╝ █████╗  ██████╔╝
██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝      ██║███╗██║██║   ██║██╔══██╗██╔═██╗ ██╔══╝  ██╔══██╗
██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗    ╚███╔███╔╝╚██████╔╝██║  ██║██║  ██╗███████╗██║  ██║
╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝     ╚══╝╚══╝  ╚═════╝ ╚═╝  ╚═╝╚═╝  ╚═╝╚══════╝╚═╝  ╚═╝
`
