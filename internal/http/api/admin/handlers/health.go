package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/models"
	"gorm.io/gorm"
)

// HealthHandler serves health check endpoints.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler constructs a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Healthz pings the database and reports how many proxies are still unused.
func (h *HealthHandler) Healthz(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false})
		return
	}
	if errPing := sqlDB.PingContext(c.Request.Context()); errPing != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "unreachable"})
		return
	}
	var available int64
	if errCount := h.db.WithContext(c.Request.Context()).Model(&models.Proxy{}).Where("is_used = ?", false).Count(&available).Error; errCount != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "database": "query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "database": "ok", "proxies_available": available})
}
