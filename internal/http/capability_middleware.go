package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/permissions"
	log "github.com/sirupsen/logrus"
)

// CapabilityMiddleware maps the matched route to its capability and checks
// the session role against it. Routes without a definition are denied.
func CapabilityMiddleware() gin.HandlerFunc {
	definitionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		def, ok := definitionMap[permissions.Key(c.Request.Method, path)]
		if !ok {
			log.WithField("route", permissions.Key(c.Request.Method, path)).Warn("capability middleware: route has no definition")
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}

		sess, okSession := CurrentSession(c)
		if !okSession {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user not found"})
			return
		}
		if !permissions.Allows(sess.User.Role, def.Capability) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "permission denied"})
			return
		}
		c.Next()
	}
}
