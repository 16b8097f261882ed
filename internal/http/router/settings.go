package router

import (
	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler"
)

func SettingsRouter(router *gin.RouterGroup, handler *handler.SettingsHandler) {
	router.GET("", handler.Get)
	router.PUT("", handler.Put)
}
