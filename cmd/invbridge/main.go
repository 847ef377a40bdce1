package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"
	"github.com/levenlabs/go-llog"

	"github.com/invbridge/invbridge/pkg/config"
	"github.com/invbridge/invbridge/pkg/inverter"
	"github.com/invbridge/invbridge/pkg/log"
	"github.com/invbridge/invbridge/pkg/server"
)

func main() {
	configPath := lflag.String("config", "invbridge.json", "path to the daemon config file")

	// init server
	srv := server.Configured()

	// parse flags
	lflag.Configure()

	var level slog.Level
	// lflag automatically sets llog's level, but we need to set the slog level
	switch llog.GetLevel() {
	case llog.DebugLevel:
		level = slog.LevelDebug
	case llog.InfoLevel:
		level = slog.LevelInfo
	case llog.WarnLevel:
		level = slog.LevelWarn
	case llog.ErrorLevel:
		level = slog.LevelError
	default:
		panic(fmt.Errorf("unknown log level: %s", llog.GetLevel().String()))
	}
	log.SetDefaultLogLevel(level)
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})))
	slog.Debug("logger configured", slog.String("level", level.String()))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load config", "error", err)
		os.Exit(1)
	}

	inv, err := inverter.Default().Create(ctx, cfg.Inverter)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to create inverter", "error", err)
		os.Exit(1)
	}
	// keep serving on failure; the next control or telemetry call retries
	if err := inv.Initialize(ctx); err != nil {
		if errors.Is(err, inverter.ErrUnsupported) {
			log.Ctx(ctx).WarnContext(ctx, "inverter does not support initialization")
		} else {
			log.Ctx(ctx).WarnContext(ctx, "inverter initialization failed", "error", err)
		}
	}
	defer inv.Shutdown(context.Background())

	if err := srv.Run(ctx, inv); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "server failed", "error", err)
		os.Exit(1)
	}
	log.Ctx(ctx).InfoContext(ctx, "server exited cleanly")
}
