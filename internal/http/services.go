package http

import (
	"github.com/router-for-me/IPGenerator/internal/access"
	"github.com/router-for-me/IPGenerator/internal/accounts"
	"github.com/router-for-me/IPGenerator/internal/config"
	"github.com/router-for-me/IPGenerator/internal/pool"
	"github.com/router-for-me/IPGenerator/internal/reporting"
	"github.com/router-for-me/IPGenerator/internal/session"
	"gorm.io/gorm"
)

// Services bundles what the route groups need.
type Services struct {
	DB        *gorm.DB
	Sessions  *session.Manager
	Resolver  *access.Resolver
	Pool      *pool.Service
	Accounts  *accounts.Service
	Reporting *reporting.Service

	JWT            config.JWTConfig
	MaxUploadBytes int64
	LoginLimiter   *IPRateLimiter
}
