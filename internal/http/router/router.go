package router

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler"
	"calbridge.app/bridge/internal/http/handler/webhook"
	"calbridge.app/bridge/internal/http/middleware"
	"calbridge.app/bridge/internal/queue"
	"calbridge.app/bridge/internal/service"
	"calbridge.app/bridge/internal/store"
)

type RouterConfig struct {
	IsProduction        bool
	AdminAPIKey         string
	GoogleWebhookURL    string
	NotionWebhookURL    string
	NotionWebhookSecret string
}

func SetupRoutes(router *gin.Engine, services *service.Services, stores *store.Stores, producer queue.Producer, cfg RouterConfig) error {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Webhook endpoints authenticate by their own means (channel
	// identity for Google, HMAC signature for Notion), not the admin key.
	googleHandler := webhook.NewGoogleWebhookHandler(stores.WebhookChannels(), producer)
	notionHandler, err := webhook.NewNotionWebhookHandler(services.Channels(), stores.WebhookSubscriptions(), producer, cfg.NotionWebhookSecret)
	if err != nil {
		return fmt.Errorf("building notion webhook handler: %w", err)
	}
	WebhookRouter(router.Group("/webhooks"), googleHandler, notionHandler)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.RequireAdmin(cfg.AdminAPIKey))
	{
		syncHandler := handler.NewSyncHandler(stores.SyncLogs(), producer)
		SyncRouter(v1.Group("/sync"), syncHandler)

		jobHandler := handler.NewJobHandler(services.Backfill(), services.Historical(), producer)
		JobRouter(v1.Group("/jobs"), jobHandler)

		channelHandler := handler.NewChannelHandler(services.Channels(), cfg.GoogleWebhookURL, cfg.NotionWebhookURL)
		ChannelRouter(v1.Group("/channels"), channelHandler)

		settingsHandler := handler.NewSettingsHandler(stores.Settings())
		SettingsRouter(v1.Group("/settings"), settingsHandler)
	}

	return nil
}
