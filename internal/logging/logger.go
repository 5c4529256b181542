package logging

import (
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var logger *zap.Logger

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "FREESAT_LOG_LEVEL"

// LogFormatEnvVar selects the encoding: "console" (default) or "json"
const LogFormatEnvVar = "FREESAT_LOG_FORMAT"

// Initialize creates the global logger at level, falling back to
// FREESAT_LOG_LEVEL. With neither set logging is silent.
func Initialize(level string) error {
	return Configure(level, "")
}

// Configure is Initialize with an explicit encoding. An empty format falls
// back to FREESAT_LOG_FORMAT, then console. Logs always go to stderr so
// --format json output on stdout stays parseable.
func Configure(level, format string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}
	if level == "" {
		logger = zap.NewNop()
		return nil
	}

	if format == "" {
		format = os.Getenv(LogFormatEnvVar)
	}

	var cfg zap.Config
	switch format {
	case "", "console":
		cfg = zap.NewDevelopmentConfig()
		cfg.Development = false
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	case "json":
		cfg = zap.NewProductionConfig()
		cfg.Sampling = nil
	default:
		return fmt.Errorf("unknown log format %q (expected console or json)", format)
	}

	cfg.Level = zap.NewAtomicLevelAt(parseLevel(level))
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	l, err := cfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}

// parseLevel maps a level name to a zap level. Unknown names fall back to info.
func parseLevel(level string) zapcore.Level {
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return l
}

// SetLogger replaces the global logger. Tests use it with an observer core.
func SetLogger(l *zap.Logger) {
	logger = l
}

// GetLogger returns the global logger instance
func GetLogger() *zap.Logger {
	if logger == nil {
		// Silent until initialized so library callers never get surprise output
		logger = zap.NewNop()
	}
	return logger
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogResolve logs a successful address resolution
func LogResolve(identity, strategy, baseURL string) {
	Info("Device address resolved",
		zap.String("identity", identity),
		zap.String("strategy", strategy),
		zap.String("base_url", baseURL),
	)
}

// LogKeySend logs a single key code sent to a device
func LogKeySend(identity, key string, code, statusCode int) {
	Info("Key sent",
		zap.String("identity", identity),
		zap.String("key", key),
		zap.Int("code", code),
		zap.Int("status_code", statusCode),
	)
}

// LogDeviceRequest logs an HTTP request made to a device or regional endpoint
func LogDeviceRequest(method, url string, statusCode int, elapsed time.Duration) {
	Debug("HTTP request completed",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status_code", statusCode),
		zap.Duration("elapsed", elapsed),
	)
}

// LogWebSocketEvent logs a bridge WebSocket lifecycle event
func LogWebSocketEvent(remoteAddr, identity, event string) {
	Info("WebSocket event",
		zap.String("remote_addr", remoteAddr),
		zap.String("identity", identity),
		zap.String("event", event),
	)
}

// Sync flushes any buffered log entries
func Sync() {
	if logger != nil {
		_ = logger.Sync()
	}
}
