package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/reporting"
)

// StatusHandler serves usage reports.
type StatusHandler struct {
	reporting *reporting.Service
}

// NewStatusHandler constructs a StatusHandler.
func NewStatusHandler(reportingSvc *reporting.Service) *StatusHandler {
	return &StatusHandler{reporting: reportingSvc}
}

// Users returns per-user today, week and all-time totals.
func (h *StatusHandler) Users(c *gin.Context) {
	rows, errReport := h.reporting.UserUsage(c.Request.Context())
	if errReport != nil {
		internalhttp.WriteError(c, "status_users", errReport, "load usage report failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": rows})
}

// System returns user and inventory counts.
func (h *StatusHandler) System(c *gin.Context) {
	stats, errStats := h.reporting.System(c.Request.Context())
	if errStats != nil {
		internalhttp.WriteError(c, "status_system", errStats, "load system status failed")
		return
	}
	c.JSON(http.StatusOK, stats)
}
