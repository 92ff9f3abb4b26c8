package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
)

const (
	ansiReset     = "\033[0m"
	ansiRed       = "\033[31m"
	ansiGreen     = "\033[32m"
	ansiYellow    = "\033[33m"
	ansiCyan      = "\033[36m"
	ansiGray      = "\033[90m"
	ansiUnderline = "\033[4m"
)

//nolint:gochecknoglobals
var levelColors = map[slog.Level]string{
	slog.LevelDebug: ansiCyan,
	slog.LevelInfo:  ansiGreen,
	slog.LevelWarn:  ansiYellow,
	slog.LevelError: ansiRed,
}

// ConsoleHandler is a slog.Handler producing colored, human-readable lines
// followed by the calling function and source position.
// PkgLevels overrides Level for loggers whose name starts with a given dotted prefix.
type ConsoleHandler struct {
	output    io.Writer
	mu        *sync.Mutex
	level     slog.Leveler
	pkgLevels map[string]slog.Level

	attrs  []slog.Attr
	groups []string
}

var _ slog.Handler = (*ConsoleHandler)(nil)

// NewConsoleHandler creates a ConsoleHandler writing to output.
func NewConsoleHandler(output io.Writer, level slog.Leveler, pkgLevels map[string]slog.Level) *ConsoleHandler {
	return &ConsoleHandler{
		output:    output,
		mu:        new(sync.Mutex),
		level:     level,
		pkgLevels: pkgLevels,
	}
}

// Enabled implements slog.Handler.Enabled. A record passes if any configured level admits it;
// Handle applies the per-logger decision.
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	if level >= h.level.Level() {
		return true
	}

	for _, pkgLevel := range h.pkgLevels {
		if level >= pkgLevel {
			return true
		}
	}

	return false
}

// Handle implements slog.Handler.
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	attrs := make([]slog.Attr, 0, len(h.attrs)+r.NumAttrs())
	attrs = append(attrs, h.attrs...)

	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)

		return true
	})

	if r.Level < h.levelFor(loggerName(attrs)) {
		return nil
	}

	var line strings.Builder

	line.WriteString(ansiGray + r.Time.Format("15:04:05.000000") + ansiReset)
	line.WriteString(" " + levelColors[r.Level] + "[" + r.Level.String() + "]" + ansiReset)
	line.WriteString(" " + r.Message)

	if len(attrs) > 0 {
		var prefix string
		if len(h.groups) > 0 {
			prefix = strings.Join(h.groups, ".") + "."
		}

		line.WriteString(" " + ansiGray + "|" + ansiReset)
		writeAttrs(&line, prefix, attrs)
	}

	if r.PC != 0 {
		frame, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		line.WriteString("\n-> " + ansiGray + filepath.Base(frame.Function) + "()")
		line.WriteString(" in " + ansiUnderline + frame.File + ":" + strconv.Itoa(frame.Line) + ansiReset)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := fmt.Fprintln(h.output, line.String())

	return err //nolint:wrapcheck
}

// levelFor returns the minimum level for a logger, using the longest matching
// dotted prefix in pkgLevels and falling back to the handler level.
func (h *ConsoleHandler) levelFor(name string) slog.Level {
	for key := name; key != ""; {
		if level, ok := h.pkgLevels[key]; ok {
			return level
		}

		idx := strings.LastIndex(key, ".")
		if idx < 0 {
			break
		}

		key = key[:idx]
	}

	return h.level.Level()
}

func loggerName(attrs []slog.Attr) string {
	for _, attr := range attrs {
		if attr.Key == loggerKey {
			return attr.Value.String()
		}
	}

	return ""
}

func writeAttrs(line *strings.Builder, prefix string, attrs []slog.Attr) {
	for _, attr := range attrs {
		if attr.Value.Kind() == slog.KindGroup {
			writeAttrs(line, prefix+attr.Key+".", attr.Value.Group())

			continue
		}

		line.WriteString(" " + prefix + attr.Key + "=" + ansiGray + attr.Value.String() + ansiReset)
	}
}

// WithAttrs implements slog.Handler.WithAttrs.
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) Handler {
	clone := *h
	clone.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)

	return &clone
}

// WithGroup implements slog.Handler.WithGroup.
func (h *ConsoleHandler) WithGroup(name string) Handler {
	clone := *h
	clone.groups = append(append([]string{}, h.groups...), name)

	return &clone
}
