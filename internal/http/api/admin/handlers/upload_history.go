package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/models"
	"gorm.io/gorm"
)

// UploadHistoryHandler lists and prunes upload audit rows.
type UploadHistoryHandler struct {
	db *gorm.DB
}

// NewUploadHistoryHandler constructs an UploadHistoryHandler.
func NewUploadHistoryHandler(db *gorm.DB) *UploadHistoryHandler {
	return &UploadHistoryHandler{db: db}
}

// List returns uploads newest first with the uploader's username.
func (h *UploadHistoryHandler) List(c *gin.Context) {
	var rows []models.UploadHistory
	if errFind := h.db.WithContext(c.Request.Context()).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error; errFind != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list upload history failed"})
		return
	}

	uploaderIDs := make([]uint64, 0, len(rows))
	for _, row := range rows {
		uploaderIDs = append(uploaderIDs, row.UploadedBy)
	}
	names := make(map[uint64]string, len(uploaderIDs))
	if len(uploaderIDs) > 0 {
		var users []models.User
		if errUsers := h.db.WithContext(c.Request.Context()).
			Select("id", "username").
			Where("id IN ?", uploaderIDs).
			Find(&users).Error; errUsers != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "list upload history failed"})
			return
		}
		for _, u := range users {
			names[u.ID] = u.Username
		}
	}

	out := make([]gin.H, 0, len(rows))
	for _, row := range rows {
		out = append(out, gin.H{
			"id":          row.ID,
			"uploaded_by": row.UploadedBy,
			"uploader":    names[row.UploadedBy],
			"file_name":   row.FileName,
			"proxy_count": row.ProxyCount,
			"position":    row.Position,
			"created_at":  row.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"uploads": out})
}

// Delete removes one upload history row.
func (h *UploadHistoryHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res := h.db.WithContext(c.Request.Context()).Delete(&models.UploadHistory{}, id)
	if res.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "delete upload history failed"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "upload history not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
