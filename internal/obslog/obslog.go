package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Global zap logger with optional console+file tee.
var globalLogger *zap.Logger = zap.NewNop()

// L returns the process-wide logger.
func L() *zap.Logger { return globalLogger }

// InitFromEnv configures the global logger from environment variables.
func InitFromEnv() error {
	level := parseLevel(getenvDefault("LOG_LEVEL", "info"))
	console := strings.EqualFold(getenvDefault("LOG_TO_CONSOLE", "true"), "true")
	toFile := strings.EqualFold(getenvDefault("LOG_TO_FILE", "false"), "true")
	format := strings.ToLower(strings.TrimSpace(getenvDefault("LOG_FORMAT", "console")))
	if format != "json" && format != "console" {
		format = "console"
	}

	filePath := strings.TrimSpace(getenvDefault("LOG_FILE", filepath.Join("logs", "arena.log")))
	var cores []zapcore.Core

	if console {
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(os.Stdout), level))
	}

	if toFile {
		if err := ensureDir(filepath.Dir(filePath)); err != nil {
			return err
		}
		f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level))
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if strings.EqualFold(getenvDefault("LOG_CALLER", "false"), "true") {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	globalLogger = logger
	return nil
}

func newEncoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if format == "json" {
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	}
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
