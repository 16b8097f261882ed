package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"

	"calbridge.app/bridge/common/id"
	"calbridge.app/bridge/common/logger"
	"calbridge.app/bridge/common/otel"
	"calbridge.app/bridge/core/config"
	"calbridge.app/bridge/core/db"
	"calbridge.app/bridge/internal/http/middleware"
	httprouter "calbridge.app/bridge/internal/http/router"
	"calbridge.app/bridge/internal/model"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/remote/gcal"
	"calbridge.app/bridge/internal/remote/notion"
	"calbridge.app/bridge/internal/service"
	"calbridge.app/bridge/internal/store"
)

func main() {
	fmt.Printf("%s\n", banner)
	ctx := context.Background()

	cfg, err := config.Load(config.ServiceTypeServer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	// OTel must init before logger (logger uses OTel provider in production)
	telemetry, err := otel.Setup(ctx, cfg.OTel)
	if err != nil {
		// Can't use slog yet — OTel failed before logger setup
		os.Stderr.WriteString("failed to initialize otel: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger.Setup(cfg)

	if telemetry != nil {
		slog.InfoContext(ctx, "otel initialized", "endpoint", cfg.OTel.Endpoint)
	} else {
		slog.InfoContext(ctx, "otel disabled (no endpoint configured)")
	}

	slog.InfoContext(ctx, "bridge starting", "env", cfg.Env, "service", cfg.OTel.ServiceName)
	if err := id.Init(1); err != nil {
		slog.ErrorContext(ctx, "failed to initialize snowflake id generator", "error", err)
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
	slog.InfoContext(ctx, "redis connected", "stream", cfg.Pipeline.RedisStream)

	taskProducer := queue.NewRedisProducer(redisClient, cfg.Pipeline.RedisStream, nil)
	defer taskProducer.Close()

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

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router, err := setupRouter(cfg, services, stores, taskProducer)
	if err != nil {
		slog.ErrorContext(ctx, "failed to set up router", "error", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.InfoContext(ctx, "http server starting", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.ErrorContext(ctx, "http server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.InfoContext(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "http server shutdown error", "error", err)
	}

	if telemetry != nil {
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "otel shutdown error", "error", err)
		}
	}

	slog.InfoContext(shutdownCtx, "shutdown complete")
}

// resolveSettings loads the stored settings, seeding the row from the
// environment on first boot. The settings API can change them afterwards;
// the calendar binding picks the change up on the next restart.
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

func setupRouter(cfg config.Config, services *service.Services, stores *store.Stores, producer queue.Producer) (*gin.Engine, error) {
	router := gin.New()

	// Order matters: OTel creates span → Recovery catches panics → Logger logs with trace context
	if cfg.OTel.Enabled() {
		router.Use(otelgin.Middleware(cfg.OTel.ServiceName))
	}
	router.Use(middleware.Recovery())
	router.Use(middleware.Logger())

	err := httprouter.SetupRoutes(router, services, stores, producer, httprouter.RouterConfig{
		IsProduction:        cfg.IsProduction(),
		AdminAPIKey:         cfg.AdminAPIKey,
		GoogleWebhookURL:    cfg.Webhook.BaseURL + "/webhooks/google",
		NotionWebhookURL:    cfg.Webhook.BaseURL + "/webhooks/notion",
		NotionWebhookSecret: cfg.Notion.WebhookSecret,
	})
	if err != nil {
		return nil, err
	}

	return router, nil
}

const banner = `
 ██████╗ █████╗ ██╗     ██████╗ ██████╗ ██╗██████╗  ██████╗ ███████╗
██╔════╝██╔══██╗██║     ██╔══██╗██╔══██╗██║██╔══██╗██╔════╝ ██╔════╝
██║     ███████║██║     ██████╔╝██████╔╝██║██║  ██║██║  ███╗█████╗
██║     ██╔══██║██║     ██╔══██╗██╔══██╗██║██║  ██║██║   ██║██╔══╝
╚██████╗██║  ██║███████╗██████╔╝██║  ██║██║██████╔╝╚██████╔╝███████╗
 ╚═════╝╚═╝  ╚═╝╚══════╝╚═════╝ ╚═╝  ╚═╝╚═╝╚═════╝  ╚═════╝ ╚══════╝
`
