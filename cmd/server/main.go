package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/Brownie44l1/ripeness-api/internal/engine"
	"github.com/Brownie44l1/ripeness-api/internal/logger"
	"github.com/Brownie44l1/ripeness-api/internal/server"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Configured only through config.yaml, .env and RIPENESS_* variables; the
// ripeness CLI has flags and the other commands.
func main() {
	cfg, err := config.Load(viper.New(), os.Getenv("RIPENESS_CONFIG_FILE"), os.Getenv("RIPENESS_ENV_FILE"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l, err := logger.New(cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	opts := []app.OptionFunc{
		app.WithLogger(l),
		app.WithRuntimes(engine.Runtimes(cfg.Model, l)),
	}
	if cfg.History.Enabled {
		opts = append(opts, app.WithFileStorage(), app.WithHistory())
	}

	a, err := app.NewApp(cfg, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, a); err != nil {
		a.Logger.Error("server failed", zap.Error(err))
		a.Close()
		os.Exit(1)
	}
}
