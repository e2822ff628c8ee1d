package service

import (
	"log/slog"
	"os"

	"github.com/timbre-app/timbre/pkg/variables"
	"go.uber.org/fx"
)

var loggerWriter = os.Stdout

func logger() *slog.Logger {
	level := slog.LevelInfo
	if variables.Env(variables.LOG_LEVEL_NAME, variables.LOG_LEVEL_DEFAULT) == "debug" {
		level = slog.LevelDebug
	}

	return slog.New(slog.NewJSONHandler(loggerWriter, &slog.HandlerOptions{
		AddSource: false,
		Level:     level,
	}))
}

var LoggerModule = fx.Module("logger", fx.Provide(
	logger,
))
