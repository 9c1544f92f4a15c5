package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/access"
	"github.com/router-for-me/IPGenerator/internal/config"
	"github.com/router-for-me/IPGenerator/internal/metrics"
	"github.com/router-for-me/IPGenerator/internal/permissions"
	"github.com/router-for-me/IPGenerator/internal/security"
	"github.com/router-for-me/IPGenerator/internal/session"
	log "github.com/sirupsen/logrus"
)

// AuthHandler handles sign-in, session restore and sign-out.
type AuthHandler struct {
	resolver *access.Resolver
	sessions *session.Manager
	jwtCfg   config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(resolver *access.Resolver, sessions *session.Manager, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{resolver: resolver, sessions: sessions, jwtCfg: jwtCfg}
}

// loginRequest defines the request body for login.
type loginRequest struct {
	AccessKey string `json:"access_key"`
}

// Login resolves an access key and starts a session.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}

	user, errResolve := h.resolver.Resolve(c.Request.Context(), body.AccessKey)
	if errResolve != nil {
		switch {
		case errors.Is(errResolve, access.ErrMissingAccessKey):
			metrics.LoginsTotal.WithLabelValues("invalid").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing access key"})
		case errors.Is(errResolve, access.ErrInvalidAccessKey):
			metrics.LoginsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid access key"})
		default:
			log.WithError(errResolve).Error("login: resolve access key failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	sess, errCreate := h.sessions.Create(c.Request.Context(), user)
	if errCreate != nil {
		log.WithError(errCreate).WithField("user_id", user.ID).Error("login: create session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	token, errToken := security.GenerateSessionToken(h.jwtCfg.Secret, sess.ID, user.ID, user.Username, user.Role, h.jwtCfg.Expiry)
	if errToken != nil {
		log.WithError(errToken).WithField("user_id", user.ID).Error("login: sign token failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}

	metrics.LoginsTotal.WithLabelValues("ok").Inc()
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"session_id": sess.ID,
		"expires_at": time.Now().UTC().Add(h.jwtCfg.Expiry),
		"user":       sess.User,
	})
}

// Session returns the restored identity with a fresh user snapshot.
func (h *AuthHandler) Session(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if errSave := h.sessions.Save(c.Request.Context(), sess); errSave != nil {
		log.WithError(errSave).WithField("user_id", sess.User.ID).Warn("session: refresh snapshot failed")
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":   sess.ID,
		"created_at":   sess.CreatedAt,
		"user":         sess.User,
		"capabilities": permissions.CapabilitiesOf(sess.User.Role),
	})
}

// Logout deletes the session and its batch.
func (h *AuthHandler) Logout(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	if errDestroy := h.sessions.Destroy(c.Request.Context(), sess.ID); errDestroy != nil {
		log.WithError(errDestroy).WithField("user_id", sess.User.ID).Error("logout: destroy session failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "logout failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Capabilities lists what the session role may do.
func (h *AuthHandler) Capabilities(c *gin.Context) {
	sess, ok := currentSession(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"role":         sess.User.Role,
		"capabilities": permissions.CapabilitiesOf(sess.User.Role),
	})
}
