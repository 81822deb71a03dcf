package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cofferhq/coffer"
	"github.com/cofferhq/coffer/api"
	"github.com/cofferhq/coffer/middleware"
	"github.com/cofferhq/coffer/storage"
	"github.com/cofferhq/coffer/storage/memory"
	redisstore "github.com/cofferhq/coffer/storage/redis"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the Coffer HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}

	cmd.Flags().String("listen", "", "listen address (overrides config)")
	cmd.Flags().String("backend", "", "storage backend: memory or redis (overrides config)")
	_ = viper.BindPFlag("listen", cmd.Flags().Lookup("listen"))       //nolint:errcheck
	_ = viper.BindPFlag("backend", cmd.Flags().Lookup("backend"))     //nolint:errcheck

	return cmd
}

func runServe(ctx context.Context) error {
	logger := newLogger(viper.GetString("log.level"))
	slog.SetDefault(logger)

	store, err := newStorage()
	if err != nil {
		return err
	}
	defer store.Close() //nolint:errcheck

	eng, err := coffer.NewEngine(
		coffer.WithStorage(store),
		coffer.WithLogger(logger),
		coffer.WithConfig(coffer.Config{DisableAudit: viper.GetBool("audit.disabled")}),
	)
	if err != nil {
		return err
	}

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("cofferd: migrate: %w", err)
	}
	if err := eng.Start(ctx); err != nil {
		return err
	}

	addr := viper.GetString("listen")
	srv := &http.Server{
		Addr:              addr,
		Handler:           middleware.Identity(api.New(eng, nil).Handler()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("cofferd listening", slog.String("addr", addr), slog.String("backend", viper.GetString("backend")))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logger.Info("shutting down", slog.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("cofferd: shutdown: %w", err)
	}
	return eng.Stop(shutdownCtx)
}

func newStorage() (storage.Store, error) {
	switch backend := viper.GetString("backend"); backend {
	case "memory":
		return memory.New(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		})
		return redisstore.New(client), nil
	default:
		return nil, fmt.Errorf("cofferd: unknown backend %q (memory, redis)", backend)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
