package logger

import (
	"log/slog"

	"deploy_networks/internal/app/port"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
)

// slogAdapter implements port.Logger on top of a slog.Logger.
type slogAdapter struct {
	l *slog.Logger
}

// NewSlogAdapter wraps l so it can be passed to components expecting port.Logger.
func NewSlogAdapter(l *slog.Logger) port.Logger {
	return &slogAdapter{l: l}
}

// NewNop returns a port.Logger that discards everything.
func NewNop() port.Logger {
	return NewSlogAdapter(slog.New(slogzap.Option{Logger: zap.NewNop()}.NewZapHandler()))
}

func (a *slogAdapter) Info(msg string, args ...any) {
	a.l.Info(msg, args...)
}

func (a *slogAdapter) Debug(msg string, args ...any) {
	a.l.Debug(msg, args...)
}

func (a *slogAdapter) Warn(msg string, args ...any) {
	a.l.Warn(msg, args...)
}

func (a *slogAdapter) Error(msg string, args ...any) {
	a.l.Error(msg, args...)
}
