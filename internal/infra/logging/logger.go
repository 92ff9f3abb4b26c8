package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

// loggerKey is the attribute carrying the logger name. Package filters match against it.
const loggerKey = "logger"

//nolint:gochecknoglobals
var logLevelStrToLevel = map[string]Level{
	"debug": LevelDebug,
	"info":  LevelInfo,
	"warn":  LevelWarn,
	"error": LevelError,
}

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// AppName is the application identifier added to all log entries
	AppName string

	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" default:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" default:"info"`

	// Filter overrides the level per logger name prefix ("svc.sessionsvc:debug,repo.kv:warn")
	Filter string `env:"FILTER" default:""`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" default:"false"`

	// OutputHandle, when set, takes precedence over Output.
	OutputHandle io.Writer
}

//nolint:gochecknoglobals
var (
	Group      = slog.Group
	GroupValue = slog.GroupValue

	config     LoggerConfig
	configLock sync.RWMutex
)

// Configure sets up the global logging configuration.
// Loggers obtained before the call keep their previous configuration.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) {
	configure(cfg, appName)

	current := snapshot()

	GetLogger("infra.logging").With(Group("config",
		"appName", current.AppName,
		"output", current.Output,
		"level", current.Level,
		"filter", current.Filter,
		"json", current.JSON,
	)).DebugContext(ctx, "logging configured")
}

func configure(cfg LoggerConfig, appName string) {
	configLock.Lock()
	defer configLock.Unlock()

	config = cfg
	config.AppName = appName

	if config.OutputHandle != nil {
		return
	}

	switch cfg.Output {
	case "", "discard":
		config.OutputHandle = io.Discard
	case "stdout":
		config.OutputHandle = os.Stdout
	case "stderr":
		config.OutputHandle = os.Stderr
	default:
		file, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			panic(fmt.Errorf("open log file: %w", err))
		}

		config.OutputHandle = file
	}
}

func snapshot() LoggerConfig {
	configLock.RLock()
	defer configLock.RUnlock()

	return config
}

// GetLogLogger adapts a Logger for code that expects a standard library *log.Logger.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

// GetLogger returns a logger tagged with name, built from the global configuration.
// Names are dotted paths such as "svc.sessionsvc.store".
func GetLogger(name string) Logger {
	cfg := snapshot()

	if cfg.OutputHandle == nil || cfg.OutputHandle == io.Discard {
		return NewNopLogger()
	}

	level := new(slog.LevelVar)
	level.Set(parseLogLevel(cfg.Level, LevelInfo))

	var handler Handler

	if cfg.JSON {
		//nolint:exhaustruct
		handler = slog.NewJSONHandler(cfg.OutputHandle, &slog.HandlerOptions{
			AddSource: true,
			Level:     level,
		})
	} else {
		handler = NewConsoleHandler(cfg.OutputHandle, level, cfg.pkgLevels())
	}

	logger := slog.New(NewContextHandler(handler))

	if cfg.AppName != "" {
		logger = logger.With("app", cfg.AppName)
	}

	return logger.With(loggerKey, name)
}

func (cfg LoggerConfig) pkgLevels() map[string]Level {
	levels := make(map[string]Level)

	for _, entry := range strings.Split(cfg.Filter, ",") {
		pkg, levelStr, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || pkg == "" {
			continue
		}

		levels[pkg] = parseLogLevel(levelStr, LevelDebug)
	}

	return levels
}

func parseLogLevel(levelStr string, fallback Level) Level {
	level, ok := logLevelStrToLevel[strings.ToLower(strings.TrimSpace(levelStr))]
	if !ok {
		return fallback
	}

	return level
}
