package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/accounts"
	"github.com/router-for-me/IPGenerator/internal/pool"
	"github.com/router-for-me/IPGenerator/internal/session"
	log "github.com/sirupsen/logrus"
)

// WriteError maps domain errors to status codes. Anything unrecognised is
// logged and answered with 500 and fallback as the message.
func WriteError(c *gin.Context, op string, err error, fallback string) {
	var limitErr *pool.LimitError
	var supplyErr *pool.SupplyError
	switch {
	case errors.As(err, &limitErr):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": pool.ErrLimitExceeded.Error(), "remaining": limitErr.Remaining})
	case errors.As(err, &supplyErr):
		c.JSON(http.StatusConflict, gin.H{"error": pool.ErrInsufficientSupply.Error(), "available": supplyErr.Available})
	case errors.Is(err, pool.ErrInvalidAmount),
		errors.Is(err, pool.ErrNoValidEntries),
		errors.Is(err, pool.ErrConfirmationMismatch),
		errors.Is(err, accounts.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, pool.ErrContention),
		errors.Is(err, pool.ErrAlreadyClaimed),
		errors.Is(err, pool.ErrSomeAlreadyUsed),
		errors.Is(err, accounts.ErrDuplicate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, pool.ErrNotInBatch),
		errors.Is(err, session.ErrNoBatch),
		errors.Is(err, accounts.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, accounts.ErrProtectedAccount):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		fields := log.Fields{"op": op}
		if userID, ok := c.Get(contextUserIDKey); ok {
			fields["user_id"] = userID
		}
		log.WithError(err).WithFields(fields).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": fallback})
	}
}
