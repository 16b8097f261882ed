package router

import (
	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler"
)

func ChannelRouter(router *gin.RouterGroup, handler *handler.ChannelHandler) {
	router.GET("/status", handler.Status)
	router.POST("/ensure", handler.Ensure)
	router.DELETE("", handler.Stop)
}
