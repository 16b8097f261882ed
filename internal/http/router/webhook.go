package router

import (
	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler/webhook"
)

func WebhookRouter(router *gin.RouterGroup, google *webhook.GoogleWebhookHandler, notion *webhook.NotionWebhookHandler) {
	router.POST("/google", google.HandleNotification)
	router.POST("/notion", notion.HandleEvent)
}
