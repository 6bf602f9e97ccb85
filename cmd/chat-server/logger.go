package main

import (
	"log/slog"
	"os"

	"github.com/tylerwon/go-chat-rooms/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.Level(level), os.Stderr).With("app", "chat-server")
	logging.Set(l)
	return l
}
