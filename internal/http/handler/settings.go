package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"calbridge.app/bridge/internal/http/dto"
	"calbridge.app/bridge/internal/store"
)

type SettingsHandler struct {
	settings store.SettingsStore
}

func NewSettingsHandler(settings store.SettingsStore) *SettingsHandler {
	return &SettingsHandler{settings: settings}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "settings not configured"})
			return
		}
		slog.ErrorContext(ctx, "failed to load settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load settings"})
		return
	}

	c.JSON(http.StatusOK, dto.SettingsFrom(settings))
}

// Put replaces the settings row. A changed calendar id takes effect on
// the next process restart, when the calendar client binds to it.
func (h *SettingsHandler) Put(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.SettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settings, err := req.ToModel()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.settings.Put(ctx, settings); err != nil {
		slog.ErrorContext(ctx, "failed to save settings", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save settings"})
		return
	}

	slog.InfoContext(ctx, "settings updated",
		"calendar_id", settings.CalendarID,
		"database_id", settings.DatabaseID,
	)
	c.JSON(http.StatusOK, dto.SettingsFrom(settings))
}
