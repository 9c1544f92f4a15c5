package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/router-for-me/IPGenerator/internal/access"
	"github.com/router-for-me/IPGenerator/internal/accounts"
	"github.com/router-for-me/IPGenerator/internal/config"
	"github.com/router-for-me/IPGenerator/internal/db"
	internalhttp "github.com/router-for-me/IPGenerator/internal/http"
	"github.com/router-for-me/IPGenerator/internal/http/api/admin"
	"github.com/router-for-me/IPGenerator/internal/http/api/front"
	"github.com/router-for-me/IPGenerator/internal/logging"
	"github.com/router-for-me/IPGenerator/internal/pool"
	"github.com/router-for-me/IPGenerator/internal/reporting"
	"github.com/router-for-me/IPGenerator/internal/session"
	"github.com/router-for-me/IPGenerator/internal/settings"
	internalusage "github.com/router-for-me/IPGenerator/internal/usage"
	"github.com/rs/cors"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const shutdownTimeout = 10 * time.Second

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	conn, err := openDatabase(ctx, fileCfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)
	log.Infof("migrated database with config=%s", configPath)
	return nil
}

// RunServer boots the allocation service and blocks until ctx is cancelled.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	fileCfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logCloser, err := logging.Setup(fileCfg.Logging)
	if err != nil {
		return fmt.Errorf("app: setup logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := openDatabase(ctx, fileCfg.Database)
	if err != nil {
		return err
	}
	defer closeDatabase(conn)

	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		return fmt.Errorf("app: load settings: %w", errRefresh)
	}

	store, storeCloser, err := openSessionStore(ctx, fileCfg.Session)
	if err != nil {
		return err
	}
	defer func() {
		if errClose := storeCloser.Close(); errClose != nil {
			log.WithError(errClose).Warn("app: close session store")
		}
	}()

	svc := BuildServices(conn, store, fileCfg)
	engine := NewEngine(svc)

	cleaner := internalusage.NewLogsRetentionCleaner(conn, fileCfg.Retention.Schedule)
	if errStart := cleaner.Start(ctx); errStart != nil {
		return fmt.Errorf("app: start retention cleaner: %w", errStart)
	}
	defer cleaner.Stop()

	server := &http.Server{
		Addr:              fileCfg.Server.Address,
		Handler:           withCORS(engine, fileCfg.Server.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("starting server on %s with config=%s", fileCfg.Server.Address, configPath)
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
		}
		close(errCh)
	}()

	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("app: shutdown: %w", errShutdown)
	}
	return nil
}

// BuildServices wires the domain services shared by the route groups.
func BuildServices(conn *gorm.DB, store session.Store, cfg config.Config) internalhttp.Services {
	sessions := session.NewManager(store, cfg.JWT.Expiry, cfg.Session.BatchTTL)
	return internalhttp.Services{
		DB:       conn,
		Sessions: sessions,
		Resolver: access.NewResolver(conn),
		Pool: pool.NewService(conn, sessions, pool.Options{
			AuditClaimedProxies: cfg.Pool.AuditClaimedProxies,
			InsertBatchSize:     cfg.Pool.InsertBatchSize,
		}),
		Accounts:       accounts.NewService(conn),
		Reporting:      reporting.NewService(conn),
		JWT:            cfg.JWT,
		MaxUploadBytes: cfg.Server.MaxUploadBytes,
		LoginLimiter:   internalhttp.NewIPRateLimiter(cfg.Server.LoginRatePerMin),
	}
}

// NewEngine builds the gin engine with every route group registered.
func NewEngine(svc internalhttp.Services) *gin.Engine {
	engine := gin.New()
	engine.Use(gin.Recovery(), internalhttp.RequestLogger())
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	admin.RegisterAdminRoutes(engine, svc)
	front.RegisterFrontRoutes(engine, svc)

	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return engine
}

func withCORS(handler http.Handler, origins []string) http.Handler {
	if len(origins) == 0 {
		return handler
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Session-Token", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Disposition", "X-Request-ID"},
		AllowCredentials: true,
	}).Handler(handler)
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*gorm.DB, error) {
	conn, err := db.Open(db.Options{DSN: cfg.DSN, TimeZone: cfg.TimeZone})
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		closeDatabase(conn)
		return nil, errMigrate
	}
	if cfg.SeedDemoUsers {
		if _, errSeed := db.SeedDemoUsers(ctx, conn); errSeed != nil {
			closeDatabase(conn)
			return nil, errSeed
		}
	}
	return conn, nil
}

func closeDatabase(conn *gorm.DB) {
	if conn == nil {
		return
	}
	if sqlDB, errDB := conn.DB(); errDB == nil {
		_ = sqlDB.Close()
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func openSessionStore(ctx context.Context, cfg config.SessionConfig) (session.Store, io.Closer, error) {
	switch cfg.Backend {
	case "", "memory":
		return session.NewMemoryStore(), closerFunc(func() error { return nil }), nil
	case "redis":
		client, err := session.DialRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, nil, fmt.Errorf("app: connect redis: %w", err)
		}
		return session.NewRedisStore(client, "ipgen:"), client, nil
	default:
		return nil, nil, fmt.Errorf("app: unknown session backend %q", cfg.Backend)
	}
}
