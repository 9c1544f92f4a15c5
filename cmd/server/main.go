package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/router-for-me/IPGenerator/internal/app"
	"github.com/router-for-me/IPGenerator/internal/config"
	log "github.com/sirupsen/logrus"
)

func main() {
	configPath := flag.String("config", "", "path to config.yaml (defaults to IPGEN_CONFIG or ./config.yaml)")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appCfg := config.AppConfig{ConfigPath: *configPath}
	if *migrateOnly {
		if err := app.Migrate(ctx, appCfg); err != nil {
			log.Fatalf("migrate failed: %v", err)
		}
		return
	}
	if err := app.RunServer(ctx, appCfg); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
