package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"reportgate/internal/database"
)

func main() {
	flag.Usage = func() {
		slog.Info("usage: migrate [up|down|status]")
	}
	flag.Parse()
	command := flag.Arg(0)

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := database.Connect(ctx, databaseURL)
	if err != nil {
		slog.Error("database connection failed", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(ctx, db, command); err != nil {
		slog.Error("migration failed", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
	slog.Info("migration finished", slog.String("command", command))
}
