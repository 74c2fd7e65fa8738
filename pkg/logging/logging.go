// Package logging renders slog records as single lines of the form
//
//	[2006-01-02][15:04:05][oscward::lua][INFO] message key=value
//
// The bracketed module prefix is what the log router keys on, so every
// component logs through a logger returned by For.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// ModuleKey is the attribute key that carries the module name.
const ModuleKey = "module"

// Module names used across the runtime.
const (
	ModuleLua    = "oscward::lua"
	ModuleOSC    = "oscward::osc"
	ModuleDefs   = "oscward::defs"
	ModuleEngine = "oscward::engine"
	ModuleLogs   = "oscward::logs"
)

// EnvLogLevel overrides the configured level when set.
const EnvLogLevel = "OSCWARD_LOG_LEVEL"

// For returns the current default logger tagged with module.
func For(module string) *slog.Logger {
	return slog.Default().With(ModuleKey, module)
}

// ParseLevel parses a level name. It reports false for unknown or empty
// input.
func ParseLevel(raw string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace", "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// ResolveLevel returns the level from the environment if set and valid,
// otherwise from configured, otherwise Info.
func ResolveLevel(configured string) slog.Level {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		return lvl
	}
	if lvl, ok := ParseLevel(configured); ok {
		return lvl
	}
	return slog.LevelInfo
}

// Setup installs a Handler writing to w as the slog default and returns it.
func Setup(w io.Writer, level slog.Leveler) *slog.Logger {
	l := slog.New(NewHandler(w, level))
	slog.SetDefault(l)
	return l
}

// Handler is a slog.Handler producing bracketed single-line records.
type Handler struct {
	w      io.Writer
	mu     *sync.Mutex
	level  slog.Leveler
	module string
	prefix string // preformatted attrs from WithAttrs
	group  string
	now    func() time.Time
}

var _ slog.Handler = (*Handler)(nil)

// NewHandler creates a Handler writing to w. A nil level means Info.
func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	if level == nil {
		level = slog.LevelInfo
	}

	return &Handler{w: w, mu: &sync.Mutex{}, level: level, module: "oscward", now: time.Now}
}

// Enabled reports whether records at level are written.
func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle formats r and writes it as one line.
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	t := r.Time
	if t.IsZero() {
		t = h.now()
	}

	module := h.module
	var sb strings.Builder
	sb.WriteString(h.prefix)

	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ModuleKey && h.group == "" {
			module = a.Value.String()
			return true
		}
		appendAttr(&sb, h.group, a)
		return true
	})

	line := fmt.Sprintf("[%s][%s][%s][%s] %s%s\n",
		t.Format("2006-01-02"), t.Format("15:04:05"), module, r.Level.String(), r.Message, sb.String())

	h.mu.Lock()
	defer h.mu.Unlock()

	_, err := io.WriteString(h.w, line)
	return err
}

// WithAttrs returns a Handler that includes attrs in every record. A module
// attribute replaces the bracketed module name.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	nh := *h

	var sb strings.Builder
	sb.WriteString(h.prefix)
	for _, a := range attrs {
		if a.Key == ModuleKey && h.group == "" {
			nh.module = a.Value.String()
			continue
		}
		appendAttr(&sb, h.group, a)
	}
	nh.prefix = sb.String()

	return &nh
}

// WithGroup returns a Handler that qualifies subsequent attribute keys.
func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	nh := *h
	if nh.group == "" {
		nh.group = name
	} else {
		nh.group += "." + name
	}

	return &nh
}

func appendAttr(sb *strings.Builder, group string, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := a.Key
	if group != "" {
		key = group + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			appendAttr(sb, key, ga)
		}
		return
	}

	sb.WriteByte(' ')
	sb.WriteString(key)
	sb.WriteByte('=')
	sb.WriteString(formatValue(a.Value))
}

func formatValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		s := v.String()
		if strings.ContainsAny(s, " \t\n\"") {
			return strconv.Quote(s)
		}
		return s
	}
}
