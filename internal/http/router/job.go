package router

import (
	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/handler"
)

func JobRouter(router *gin.RouterGroup, handler *handler.JobHandler) {
	router.POST("/backfill", handler.StartBackfill)
	router.DELETE("/backfill", handler.CancelBackfill)
	router.GET("/backfill", handler.BackfillStatus)

	router.GET("/historical/preview", handler.PreviewHistorical)
	router.POST("/historical", handler.StartHistorical)
	router.DELETE("/historical", handler.CancelHistorical)
	router.GET("/historical", handler.HistoricalStatus)
}
