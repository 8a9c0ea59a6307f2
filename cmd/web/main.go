package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"findecoder/internal/app"
)

func main() {
	// Optional .env for local development; the environment always wins.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("skipping .env file", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication(context.Background())
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(context.Background()); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
