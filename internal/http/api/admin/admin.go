package admin

import (
	"github.com/gin-gonic/gin"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/http/api/admin/handlers"
)

// RegisterAdminRoutes registers pool, user, settings and reporting routes.
// Every route passes the session check and its capability check.
func RegisterAdminRoutes(r *gin.Engine, svc internalhttp.Services) {
	if r == nil || svc.DB == nil {
		return
	}

	healthHandler := handlers.NewHealthHandler(svc.DB)
	r.GET("/healthz", healthHandler.Healthz)

	admin := r.Group("/v0/admin")
	admin.Use(
		internalhttp.SessionAuthMiddleware(svc.DB, svc.Sessions, svc.JWT.Secret),
		internalhttp.CapabilityMiddleware(),
	)

	proxyHandler := handlers.NewProxyHandler(svc.Pool, svc.MaxUploadBytes)
	admin.POST("/proxies/upload", proxyHandler.Upload)
	admin.GET("/proxies/count", proxyHandler.Count)
	admin.DELETE("/proxies", proxyHandler.Wipe)

	uploadHistoryHandler := handlers.NewUploadHistoryHandler(svc.DB)
	admin.GET("/upload-history", uploadHistoryHandler.List)
	admin.DELETE("/upload-history/:id", uploadHistoryHandler.Delete)

	userHandler := handlers.NewUserHandler(svc.Accounts)
	admin.GET("/users", userHandler.List)
	admin.POST("/users", userHandler.Create)
	admin.PUT("/users/:id", userHandler.Update)
	admin.PUT("/users/:id/daily-limit", userHandler.SetDailyLimit)
	admin.POST("/users/:id/toggle-active", userHandler.ToggleActive)
	admin.POST("/users/:id/regenerate-key", userHandler.RegenerateKey)
	admin.DELETE("/users/:id", userHandler.Delete)

	settingsHandler := handlers.NewSettingsHandler(svc.DB)
	admin.GET("/settings", settingsHandler.List)
	admin.PUT("/settings/:key", settingsHandler.Update)

	statusHandler := handlers.NewStatusHandler(svc.Reporting)
	admin.GET("/status/users", statusHandler.Users)
	admin.GET("/status/system", statusHandler.System)

	permissionHandler := handlers.NewPermissionHandler()
	admin.GET("/permissions", permissionHandler.List)
}
