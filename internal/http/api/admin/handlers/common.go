package handlers

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// getUserID extracts the signed-in user ID from gin context.
func getUserID(c *gin.Context) uint64 {
	val, exists := c.Get("userID")
	if !exists {
		return 0
	}
	id, _ := val.(uint64)
	return id
}

// parseIDParam parses the :id route parameter.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errID := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errID != nil || id == 0 {
		return 0, false
	}
	return id, true
}
