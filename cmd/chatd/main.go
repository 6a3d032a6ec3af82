package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/manziro785/online-chat-back/internal/metrics"
	"github.com/manziro785/online-chat-back/internal/server"
	"github.com/manziro785/online-chat-back/internal/store"
	"github.com/manziro785/online-chat-back/pkg/config"
	"github.com/manziro785/online-chat-back/pkg/logging"
)

func main() {
	bootstrap := logging.New(logging.LevelInfo)

	cfg, err := config.Load(bootstrap, "config")
	if err != nil {
		bootstrap.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger := logging.New(logging.ParseLevel(cfg.LogLevel))
	slog.SetDefault(logger)

	st, err := openStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer st.Close()
	logger.Info("Database ready", slog.String("path", cfg.Database.Path))

	if cfg.Metrics.Enabled {
		metrics.Serve(logger, cfg.Metrics.Address)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	app := server.NewApp(logger, ctx, cfg, st)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}

// openStore opens the database and verifies it is reachable, retrying the
// ping briefly in case the file lives on storage that is still mounting.
func openStore(logger *slog.Logger, path string) (*store.Store, error) {
	st, err := store.Open(path)
	if err != nil {
		return nil, err
	}

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 15 * time.Second
	err = backoff.Retry(func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			logger.Warn("Database ping failed, retrying", slog.Any("error", err))
			return err
		}
		return nil
	}, policy)
	if err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}
