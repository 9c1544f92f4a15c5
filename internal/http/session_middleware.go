package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/access"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/security"
	"github.com/router-for-me/IPGenerator/internal/session"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	contextSessionKey = "session"
	contextUserIDKey  = "userID"
	contextRoleKey    = "userRole"
)

// SessionAuthMiddleware restores the session named by the bearer token and
// re-reads its user. Missing users get 401, inactive users 403.
func SessionAuthMiddleware(db *gorm.DB, sessions *session.Manager, secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := access.ExtractBearer(c.Request)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}

		claims, errJWT := security.ParseSessionToken(secret, token)
		if errJWT != nil {
			if errors.Is(errJWT, security.ErrExpiredToken) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sess, errLoad := sessions.Load(c.Request.Context(), claims.ID)
		if errLoad != nil {
			if errors.Is(errLoad, session.ErrSessionNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session not found"})
				return
			}
			log.WithError(errLoad).Error("session auth: load session failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "session store error"})
			return
		}

		var user models.User
		if errFind := db.WithContext(c.Request.Context()).First(&user, sess.User.ID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
				return
			}
			log.WithError(errFind).WithField("user_id", sess.User.ID).Error("session auth: load user failed")
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "load user failed"})
			return
		}
		if !user.IsActive {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "user disabled"})
			return
		}

		sess.User = session.UserFromModel(user)
		c.Set(contextSessionKey, sess)
		c.Set(contextUserIDKey, user.ID)
		c.Set(contextRoleKey, user.Role)
		c.Next()
	}
}

// CurrentSession returns the session stored by SessionAuthMiddleware.
func CurrentSession(c *gin.Context) (session.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return session.Session{}, false
	}
	sess, ok := value.(session.Session)
	return sess, ok
}
