package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"tams/internal/config"
)

const logLevelEnvKey = "TAMS_LOG_LEVEL"

// levelSetting is one place a log level can come from.
type levelSetting struct {
	origin string
	value  string
}

// levelSettings lists level sources from highest to lowest precedence.
func levelSettings(flagLevel string, cfg config.LoggingConfig) []levelSetting {
	return []levelSetting{
		{origin: "--log-level", value: flagLevel},
		{origin: logLevelEnvKey, value: os.Getenv(logLevelEnvKey)},
		{origin: "logging.level", value: cfg.Level},
	}
}

// installLogger sets the process default logger. A bad --log-level is an
// error; a bad env or config value falls back to info and returns a warning.
func installLogger(w io.Writer, flagLevel string, cfg config.LoggingConfig) (string, error) {
	level, warning, err := resolveLevel(levelSettings(flagLevel, cfg))
	if err != nil {
		return "", err
	}
	slog.SetDefault(newLogger(w, level, cfg.Format))
	return warning, nil
}

func resolveLevel(settings []levelSetting) (slog.Level, string, error) {
	for i, s := range settings {
		if strings.TrimSpace(s.value) == "" {
			continue
		}
		level, err := parseLogLevel(s.value)
		if err == nil {
			return level, "", nil
		}
		if i == 0 {
			return 0, "", fmt.Errorf("invalid %s %q", s.origin, s.value)
		}
		return slog.LevelInfo, fmt.Sprintf("warning: invalid %s=%q; defaulting to %s", s.origin, s.value, config.DefaultLogLevel), nil
	}
	return slog.LevelInfo, "", nil
}

// parseLogLevel accepts slog level names, "warning", and numeric levels.
func parseLogLevel(raw string) (slog.Level, error) {
	value := strings.TrimSpace(raw)
	switch {
	case value == "":
		return slog.LevelInfo, nil
	case strings.EqualFold(value, "warning"):
		return slog.LevelWarn, nil
	}
	if n, err := strconv.Atoi(value); err == nil {
		return slog.Level(n), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", raw)
	}
	return level, nil
}

func newLogger(w io.Writer, level slog.Level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
