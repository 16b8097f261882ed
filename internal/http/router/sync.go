package router

import (
	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler"
)

func SyncRouter(router *gin.RouterGroup, handler *handler.SyncHandler) {
	router.POST("/run", handler.Run)
	router.GET("/log", handler.Log)
}
