package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"commhub/internal/conf"
	"commhub/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil {
		// No .env file; environment variables alone are fine.
	}

	cfg := conf.LoadFromEnv()

	level := zerolog.InfoLevel
	if cfg.Debug {
		level = zerolog.DebugLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().Timestamp().Logger()

	hub, err := service.NewHub(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("hub init failed")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := hub.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("hub start failed")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	cancel()
	hub.Stop()
}
