package conductor

import (
	"cmp"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig configures the logger returned by NewLogger.
type LogConfig struct {
	// Level is the minimum level: debug, info, warn or error. Empty uses
	// info in development and test, error in production.
	Level string

	// Directory receives the rotated log file in production. Defaults to "logs".
	Directory string

	MaxSizeMB  int // defaults to 100
	MaxBackups int // defaults to 3
	MaxAgeDays int // defaults to 28

	// AppName names the log file. Defaults to "conductor".
	AppName string
}

// NewLogger creates a logger for environment.
//
// Development and test log colored text to w (stdout when nil). Production
// logs JSON to w and to a rotating file under cfg.Directory.
func NewLogger(environment string, cfg LogConfig, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	level := ParseLevel(cfg.Level, environment)
	if environment == "production" {
		return newProdLogger(level, cfg, w)
	}
	return newDevLogger(level, w)
}

// ParseLevel parses a level name. An empty or unknown name falls back to the
// environment default.
func ParseLevel(name, environment string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if environment == "production" {
		return slog.LevelError
	}
	return slog.LevelInfo
}

func newDevLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(newColorHandler(w, &slog.HandlerOptions{Level: level}))
}

// newProdLogger writes JSON to w and to a rotating file. It falls back to w
// alone when the log directory cannot be created.
func newProdLogger(level slog.Level, cfg LogConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}

	dir := cmp.Or(cfg.Directory, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	rotator := &lumberjack.Logger{
		Filename:   filepath.Join(dir, cmp.Or(cfg.AppName, "conductor")+".log"),
		MaxSize:    positiveOr(cfg.MaxSizeMB, 100),
		MaxBackups: positiveOr(cfg.MaxBackups, 3),
		MaxAge:     positiveOr(cfg.MaxAgeDays, 28),
		Compress:   true,
	}
	return slog.New(slog.NewJSONHandler(io.MultiWriter(w, rotator), opts))
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
)

// colorHandler writes one colored line per record:
//
//	15:04:05 INFO router activated file=router.json routes=4
type colorHandler struct {
	mu     *sync.Mutex
	w      io.Writer
	level  slog.Leveler
	prefix string // pre-formatted attributes from WithAttrs
	group  string
}

func newColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	var level slog.Leveler = slog.LevelInfo
	if opts != nil && opts.Level != nil {
		level = opts.Level
	}
	return &colorHandler{mu: &sync.Mutex{}, w: w, level: level}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor string
	switch {
	case r.Level >= slog.LevelError:
		levelColor = colorRed
	case r.Level >= slog.LevelWarn:
		levelColor = colorYellow
	case r.Level >= slog.LevelInfo:
		levelColor = colorBlue
	default:
		levelColor = colorGray
	}

	var buf strings.Builder
	buf.WriteString(colorGray + r.Time.Format("15:04:05") + colorReset + " ")
	buf.WriteString(levelColor + r.Level.String() + colorReset + " ")
	buf.WriteString(r.Message)
	buf.WriteString(h.prefix)
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&buf, a)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *colorHandler) appendAttr(buf *strings.Builder, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	key := a.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	buf.WriteString(" " + colorGray + key + "=" + colorReset + a.Value.Resolve().String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	var buf strings.Builder
	buf.WriteString(h.prefix)
	for _, a := range attrs {
		h.appendAttr(&buf, a)
	}
	clone := *h
	clone.prefix = buf.String()
	return &clone
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	clone := *h
	if clone.group != "" {
		name = clone.group + "." + name
	}
	clone.group = name
	return &clone
}
