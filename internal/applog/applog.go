package applog

import (
	"log/slog"
	"os"
	"strings"
)

// Setup builds the process-wide JSON logger at the given level and installs
// it as the slog default. AddSource is only turned on at debug level: the
// file:line attribution is only worth the extra bytes when someone is
// actively diagnosing a request by hand.
func Setup(level string) *slog.Logger {
	l := parseLevel(level)

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     l,
		AddSource: l == slog.LevelDebug,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

// Logger returns a default info-level logger, for call sites (tests, one-off
// CLI helpers) that need a *slog.Logger without going through Setup's side
// effect of installing a process-wide default.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
