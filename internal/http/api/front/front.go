package front

import (
	"github.com/gin-gonic/gin"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/http/api/front/handlers"
)

// RegisterFrontRoutes registers sign-in and the allocation routes.
func RegisterFrontRoutes(r *gin.Engine, svc internalhttp.Services) {
	if r == nil || svc.DB == nil {
		return
	}

	front := r.Group("/v0/front")

	authHandler := handlers.NewAuthHandler(svc.Resolver, svc.Sessions, svc.JWT)
	front.POST("/login", internalhttp.RateLimitMiddleware(svc.LoginLimiter), authHandler.Login)

	authed := front.Group("")
	authed.Use(
		internalhttp.SessionAuthMiddleware(svc.DB, svc.Sessions, svc.JWT.Secret),
		internalhttp.CapabilityMiddleware(),
	)

	authed.GET("/session", authHandler.Session)
	authed.POST("/logout", authHandler.Logout)
	authed.GET("/capabilities", authHandler.Capabilities)

	allocationHandler := handlers.NewAllocationHandler(svc.DB, svc.Pool)
	authed.GET("/usage/today", allocationHandler.TodayUsage)
	authed.POST("/allocations", allocationHandler.Allocate)
	authed.GET("/batch", allocationHandler.Batch)
	authed.POST("/batch/claims/:id", allocationHandler.ClaimOne)
	authed.POST("/batch/claim", allocationHandler.ClaimBatch)
}
