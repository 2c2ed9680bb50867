package logger

import (
	"fmt"
	"log/slog"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap logger for the given level and wraps it in a slog.Logger
// backed by the zap core. The zap logger is returned so callers can Sync it.
func New(levelStr string, development bool) (*zap.Logger, *slog.Logger, error) {
	zapLevel, slogLevel, err := ParseLevel(levelStr)
	if err != nil {
		return nil, nil, err
	}

	cfg := zap.NewProductionConfig()
	if development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(zapLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	// stdout is reserved for command output.
	cfg.OutputPaths = []string{"stderr"}

	zapLogger, err := cfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("build logger: %w", err)
	}

	handler := slogzap.Option{Level: slogLevel, Logger: zapLogger}.NewZapHandler()
	return zapLogger, slog.New(handler), nil
}

// ParseLevel maps a textual level onto the matching zap and slog levels.
// An empty string means info.
func ParseLevel(levelStr string) (zapcore.Level, slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return zapcore.DebugLevel, slog.LevelDebug, nil
	case "", "INFO":
		return zapcore.InfoLevel, slog.LevelInfo, nil
	case "WARN", "WARNING":
		return zapcore.WarnLevel, slog.LevelWarn, nil
	case "ERROR":
		return zapcore.ErrorLevel, slog.LevelError, nil
	default:
		return zapcore.InfoLevel, slog.LevelInfo, fmt.Errorf("unknown log level %q", levelStr)
	}
}
