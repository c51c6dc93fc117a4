package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"travelsec/internal/app"
	"travelsec/internal/config"
)

var (
	configFile = flag.String("config", "", "config file path (embedded defaults when empty)")
	logLevel   = flag.String("log-level", "info", "log level")
	watch      = flag.Bool("watch", true, "reload secrets when the config file changes")
)

func main() {
	flag.Parse()

	// Setup logging
	setupLogging(*logLevel)

	// Load config
	cfg, err := config.NewLoader(*configFile).Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	applyLegacyRedisURL(cfg)

	// Create server
	server, err := app.NewServer(cfg, slog.Default())
	if err != nil {
		slog.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Setup signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if *watch && *configFile != "" {
		watcher, err := config.NewWatcher(*configFile, &config.WatcherConfig{
			DebounceDuration:  500 * time.Millisecond,
			OnChange:          server.ApplyConfig,
			OnError:           func(err error) { slog.Warn("config reload rejected", "error", err) },
			RequireCronSecret: len(cfg.Security.CronSecrets) > 0 || cfg.Security.SigningSecret != "",
		}, slog.Default())
		if err != nil {
			slog.Error("failed to watch config", "error", err)
			os.Exit(1)
		}
		watcher.Start()
		defer watcher.Stop()
	}

	// Start server
	if err := server.Start(ctx); err != nil {
		slog.Error("failed to start server", "error", err)
		os.Exit(1)
	}

	// Wait for shutdown signal
	<-ctx.Done()

	// Graceful shutdown
	timeout := time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := server.Stop(shutdownCtx); err != nil {
		slog.Error("failed to stop server", "error", err)
		os.Exit(1)
	}
}

// applyLegacyRedisURL honours REDIS_URL when no Redis section is configured
func applyLegacyRedisURL(cfg *config.Config) {
	if cfg.Redis != nil {
		return
	}
	if url := strings.TrimSpace(os.Getenv("REDIS_URL")); url != "" {
		cfg.Redis = &config.Redis{URL: url}
	}
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func setupLogging(level string) {
	lvl, ok := logLevels[strings.ToLower(level)]
	if !ok {
		lvl = slog.LevelInfo
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: lvl,
	})))
}
