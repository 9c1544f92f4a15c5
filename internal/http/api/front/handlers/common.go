package handlers

import (
	"github.com/gin-gonic/gin"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/session"
)

// currentSession returns the session restored by the auth middleware.
func currentSession(c *gin.Context) (session.Session, bool) {
	return internalhttp.CurrentSession(c)
}

// batchView renders the outstanding part of a batch.
func batchView(batch *session.Batch) gin.H {
	if batch == nil {
		return nil
	}
	return gin.H{
		"batch_id":   batch.ID,
		"size":       batch.Size(),
		"claimed":    len(batch.Claimed),
		"proxies":    batch.Outstanding(),
		"created_at": batch.CreatedAt,
	}
}
