package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"reportgate/internal/auth"
	"reportgate/internal/config"
	"reportgate/internal/database"
	"reportgate/internal/email"
	"reportgate/internal/logging"
	"reportgate/internal/server"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closeLogs, err := logging.New(logging.Options{Env: cfg.Env, Level: cfg.LogLevel, Dir: cfg.LogDir})
	if err != nil {
		return err
	}
	defer closeLogs()
	slog.SetDefault(logger)

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db, "up"); err != nil {
			return err
		}
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	api, err := server.NewServer(cfg, server.Deps{
		Users:  auth.NewUserRepository(db),
		Redis:  redisClient,
		Mailer: email.NewSender(cfg.Email, logger),
		Logger: logger,
	})
	if err != nil {
		return err
	}

	srv := api.HTTPServer()
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr), slog.String("env", cfg.Env), slog.String("reports_dir", cfg.ReportsDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
