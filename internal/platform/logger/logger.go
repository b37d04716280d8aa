// Package logger configures the process-wide structured logger and carries
// request-scoped loggers through context.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/echoscribe/echoscribe-api/internal/config"
)

// levels maps accepted configuration strings to slog levels.
var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Setup builds the application logger: JSON to stdout at the configured level.
// The returned logger is also installed as the slog default so package-level
// slog calls land in the same stream.
func Setup(cfg config.ServerConfig) (*slog.Logger, error) {
	level, ok := levels[strings.ToLower(cfg.LogLevel)]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", cfg.LogLevel)
	}

	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	return log, nil
}
