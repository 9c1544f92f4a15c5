package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/pool"
)

// ProxyHandler manages bulk upload, counting and wiping of the pool.
type ProxyHandler struct {
	pool           *pool.Service // Pool service.
	maxUploadBytes int64         // Upper bound on an uploaded file.
}

// NewProxyHandler constructs a proxy handler.
func NewProxyHandler(poolSvc *pool.Service, maxUploadBytes int64) *ProxyHandler {
	return &ProxyHandler{pool: poolSvc, maxUploadBytes: maxUploadBytes}
}

// wipeProxiesRequest captures both confirmations for a pool wipe.
type wipeProxiesRequest struct {
	ConfirmCount *int64 `json:"confirm_count"` // Must equal the current proxy count.
	Confirm      string `json:"confirm"`       // Must equal pool.WipeConfirmation.
}

// Upload loads a newline-delimited file into the pool.
func (h *ProxyHandler) Upload(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}
	fileHeader, errFile := c.FormFile("file")
	if errFile != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(errFile, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing file"})
		return
	}
	file, errOpen := fileHeader.Open()
	if errOpen != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read file failed"})
		return
	}
	defer func() { _ = file.Close() }()

	history, errLoad := h.pool.Load(c.Request.Context(), pool.LoadRequest{
		UploaderID: getUserID(c),
		FileName:   fileHeader.Filename,
		Position:   strings.TrimSpace(c.PostForm("position")),
		Content:    file,
	})
	if errLoad != nil {
		internalhttp.WriteError(c, "upload_proxies", errLoad, "upload proxies failed")
		return
	}
	total, errCount := h.pool.Count(c.Request.Context())
	if errCount != nil {
		internalhttp.WriteError(c, "count_proxies", errCount, "count proxies failed")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"upload": history, "total": total})
}

// Count returns the number of proxies, the figure a wipe must confirm.
func (h *ProxyHandler) Count(c *gin.Context) {
	total, errCount := h.pool.Count(c.Request.Context())
	if errCount != nil {
		internalhttp.WriteError(c, "count_proxies", errCount, "count proxies failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total, "confirm": pool.WipeConfirmation})
}

// Wipe deletes every proxy after both confirmations match.
func (h *ProxyHandler) Wipe(c *gin.Context) {
	var body wipeProxiesRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.ConfirmCount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing confirm_count"})
		return
	}
	remaining, errWipe := h.pool.Wipe(c.Request.Context(), *body.ConfirmCount, body.Confirm)
	if errWipe != nil {
		internalhttp.WriteError(c, "wipe_proxies", errWipe, "wipe proxies failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true, "total": remaining})
}
