package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/export"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/pool"
	"github.com/router-for-me/IPGenerator/internal/usage"
	"gorm.io/gorm"
)

// AllocationHandler serves allocation, batch and claim endpoints.
type AllocationHandler struct {
	db   *gorm.DB
	pool *pool.Service
}

// NewAllocationHandler constructs an AllocationHandler.
func NewAllocationHandler(db *gorm.DB, poolSvc *pool.Service) *AllocationHandler {
	return &AllocationHandler{db: db, pool: poolSvc}
}

// allocateRequest defines the request body for an allocation.
type allocateRequest struct {
	Amount *int `json:"amount"`
}

// TodayUsage returns today's claimed total against the daily limit.
func (h *AllocationHandler) TodayUsage(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	today, errToday := usage.TodayAmount(c.Request.Context(), h.db, sess.User.ID, time.Now())
	if errToday != nil {
		internalhttp.WriteError(c, "usage_today", errToday, "query usage failed")
		return
	}
	remaining := sess.User.DailyLimit - today
	if remaining < 0 {
		remaining = 0
	}
	c.JSON(http.StatusOK, gin.H{
		"today":       today,
		"daily_limit": sess.User.DailyLimit,
		"remaining":   remaining,
	})
}

// Allocate draws a new batch of candidates.
func (h *AllocationHandler) Allocate(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	var body allocateRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Amount == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing amount"})
		return
	}

	batch, errAlloc := h.pool.Allocate(c.Request.Context(), sess, *body.Amount)
	if errAlloc != nil {
		internalhttp.WriteError(c, "allocate", errAlloc, "allocation failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batchView(batch)})
}

// Batch returns the outstanding candidates of the current batch.
func (h *AllocationHandler) Batch(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	batch, errBatch := h.pool.CurrentBatch(c.Request.Context(), sess)
	if errBatch != nil {
		internalhttp.WriteError(c, "batch", errBatch, "load batch failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"batch": batchView(batch)})
}

// ClaimOne claims a single candidate and returns its string for the clipboard.
func (h *AllocationHandler) ClaimOne(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	id, errID := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errID != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}

	result, errClaim := h.pool.ClaimOne(c.Request.Context(), sess, id)
	if errClaim != nil {
		internalhttp.WriteError(c, "claim_one", errClaim, "claim failed")
		return
	}
	proxy := ""
	if len(result.Proxies) > 0 {
		proxy = result.Proxies[0]
	}
	c.JSON(http.StatusOK, gin.H{
		"proxy":        proxy,
		"batch_closed": result.BatchClosed,
		"today_usage":  result.TodayUsage,
		"batch":        batchView(result.Batch),
	})
}

// ClaimBatch claims every outstanding candidate and renders them as JSON,
// a text download or a CSV download.
func (h *AllocationHandler) ClaimBatch(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	format, errFormat := export.ParseFormat(c.Query("format"))
	if errFormat != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errFormat.Error()})
		return
	}

	result, errClaim := h.pool.ClaimBatch(c.Request.Context(), sess)
	if errClaim != nil {
		internalhttp.WriteError(c, "claim_batch", errClaim, "claim failed")
		return
	}

	switch format {
	case export.FormatText:
		writeAttachment(c, format, []byte(export.Text(result.Proxies)))
	case export.FormatCSV:
		payload, errCSV := export.CSV(result.Proxies)
		if errCSV != nil {
			internalhttp.WriteError(c, "claim_batch_csv", errCSV, "export failed")
			return
		}
		writeAttachment(c, format, payload)
	default:
		c.JSON(http.StatusOK, gin.H{
			"proxies":     result.Proxies,
			"text":        export.Text(result.Proxies),
			"today_usage": result.TodayUsage,
		})
	}
}

func writeAttachment(c *gin.Context, format export.Format, payload []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(format, time.Now())))
	c.Data(http.StatusOK, export.ContentType(format), payload)
}
