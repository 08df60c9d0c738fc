package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/iabalyuk/telemarket/bot"
	"github.com/iabalyuk/telemarket/config"
	"github.com/iabalyuk/telemarket/payment"
	"github.com/iabalyuk/telemarket/storage"
)

const configFile = "config.yaml"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, opens the store and drives the bot until the
// context is cancelled.
func run(ctx context.Context) error {
	cfg, cfgErr := config.Load[*config.Config](configFile)
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := newLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	store, err := storage.NewSQLiteStore(cfg.Database.Path, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close store", slog.Any("error", err))
		}
	}()
	if err := storage.Seed(ctx, store); err != nil {
		return fmt.Errorf("failed to seed store: %w", err)
	}
	logger.Info("store ready", slog.String("path", cfg.Database.Path))

	payments := payment.NewClient(
		cfg.Payment.ShopID, cfg.Payment.SecretKey,
		cfg.Payment.ReturnURL, cfg.Payment.Currency, logger)

	b, err := bot.New(bot.Options{
		Token:         cfg.Telegram.Token,
		AdminIDs:      cfg.Telegram.AdminIDs,
		NotifyChatID:  cfg.Telegram.NotifyChatID,
		ProviderToken: cfg.Payment.ProviderToken,
		Currency:      cfg.Payment.Currency,
		Debug:         cfg.Telegram.Debug,
	}, store, payments, logger)
	if err != nil {
		return fmt.Errorf("failed to create bot: %w", err)
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("bot polling for updates")
		return b.Start(gCtx)
	})
	g.Go(func() error {
		return b.RunNotifier(gCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newLogger creates a slog.Logger writing JSON at the configured level.
func newLogger(level string) *slog.Logger {
	logLevel := toLevel(level)
	loggerOpts := &slog.HandlerOptions{
		AddSource: logLevel == slog.LevelDebug,
		Level:     logLevel,
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, loggerOpts))
}

func toLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
