package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/IPGenerator/internal/models"
	"github.com/router-for-me/IPGenerator/internal/permissions"
)

// PermissionHandler exposes the route and role capability tables.
type PermissionHandler struct{}

// NewPermissionHandler constructs a PermissionHandler.
func NewPermissionHandler() *PermissionHandler {
	return &PermissionHandler{}
}

// List returns every route definition and the capabilities of each role.
func (h *PermissionHandler) List(c *gin.Context) {
	defs := permissions.Definitions()
	out := make([]gin.H, 0, len(defs))
	for _, def := range defs {
		out = append(out, gin.H{
			"key":        def.Key,
			"method":     def.Method,
			"path":       def.Path,
			"label":      def.Label,
			"capability": def.Capability,
		})
	}
	roles := gin.H{}
	for _, role := range []string{models.RoleAdmin, models.RoleManager, models.RoleUser} {
		roles[role] = permissions.CapabilitiesOf(role)
	}
	c.JSON(http.StatusOK, gin.H{"permissions": out, "roles": roles})
}
