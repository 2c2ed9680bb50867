package port

// Logger is the logging interface components depend on. Args are slog-style
// key/value pairs. Credentials and key material must never be passed.
type Logger interface {
	Info(msg string, args ...any)
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
