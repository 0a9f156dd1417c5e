package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/m3rciful/payoutbot/app/bot"
	"github.com/m3rciful/payoutbot/app/copperx"
	"github.com/m3rciful/payoutbot/app/session"
	coreconfig "github.com/m3rciful/payoutbot/core/config"
	"github.com/m3rciful/payoutbot/core/logger"
	coretelegram "github.com/m3rciful/payoutbot/core/telegram"
	"github.com/m3rciful/payoutbot/core/telegram/state"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("payoutbot: %v", err)
	}
}

func run() error {
	// Local development keeps secrets in .env; absence is not an error.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := logger.InitLogger(cfg); err != nil {
		return err
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown error: %v", err)
		}
	}()

	api := copperx.New(cfg.Copperx)
	sessions := session.NewStore()
	app := bot.New(cfg, api, sessions, state.NewMemoryManager())

	startedAt := time.Now()
	runOpts := coretelegram.RunOptions{
		Config:      cfg,
		Registry:    app.Registry(),
		Middlewares: coretelegram.DefaultMiddlewares(cfg, nil),
		Routes:      app.Routes(),
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			if err := app.Start(ctx, rt); err != nil {
				return err
			}
			logger.L.With("component", "app").Info("app ready",
				slog.String("event", "ready"),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, rt coretelegram.Runtime) error {
			logger.L.With("component", "app").Info("shutting down...",
				slog.String("event", "shutdown"),
			)
			return app.Stop(ctx, rt)
		},
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return coretelegram.RunTelegram(ctx, runOpts)
}
