package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	internalsettings "github.com/router-for-me/IPGenerator/internal/settings"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettingsHandler reads and writes runtime settings.
type SettingsHandler struct {
	db *gorm.DB
}

// NewSettingsHandler constructs a SettingsHandler.
func NewSettingsHandler(db *gorm.DB) *SettingsHandler {
	return &SettingsHandler{db: db}
}

// updateSettingRequest defines the request body for a setting change.
type updateSettingRequest struct {
	Value *int `json:"value"`
}

// List returns the effective value of every setting.
func (h *SettingsHandler) List(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"settings":   internalsettings.Snapshot(),
		"updated_at": internalsettings.DBConfigUpdatedAt(),
	})
}

// Update stores one setting.
func (h *SettingsHandler) Update(c *gin.Context) {
	key := strings.TrimSpace(c.Param("key"))
	if !internalsettings.IsKnownKey(key) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown setting"})
		return
	}
	var body updateSettingRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Value == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing value"})
		return
	}
	if *body.Value < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be >= 0"})
		return
	}
	if key == internalsettings.MaxAllocationKey && *body.Value < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value must be >= 1"})
		return
	}
	if errUpsert := internalsettings.Upsert(c.Request.Context(), h.db, key, *body.Value); errUpsert != nil {
		log.WithError(errUpsert).WithField("key", key).Error("settings: update failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update setting failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": internalsettings.Snapshot()})
}
