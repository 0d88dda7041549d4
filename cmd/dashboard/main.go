package main

import (
	"log/slog"
	"os"

	"fennixdash/internal/app"
	"fennixdash/internal/config"
)

func main() {
	// Variables already set in the environment win over .env files.
	if err := config.LoadEnvFiles(); err != nil {
		slog.Warn("Failed to load .env file", slog.String("error", err.Error()))
	}

	application, err := app.NewApplication()
	if err != nil {
		slog.Error("Failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("Application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
