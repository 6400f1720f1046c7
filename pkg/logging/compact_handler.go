package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"
)

// CompactHandler writes one readable line per record:
//
//	[LEVEL] HH:MM:SS message | key=value key=value
type CompactHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr
	prefix string // dotted group path applied to record attributes
}

// NewCompactHandler creates a compact handler writing to w
func NewCompactHandler(w io.Writer, opts *slog.HandlerOptions) *CompactHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &CompactHandler{opts: *opts, mu: &sync.Mutex{}, out: w}
}

func (h *CompactHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *CompactHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder
	sb.Grow(256)

	sb.WriteString(levelTag(r.Level))
	sb.WriteString(r.Time.Format("15:04:05"))
	sb.WriteByte(' ')
	sb.WriteString(r.Message)

	first := true
	write := func(key string, v slog.Value) {
		if first {
			sb.WriteString(" |")
			first = false
		}
		sb.WriteByte(' ')
		appendAttr(&sb, key, v)
	}

	for _, a := range h.attrs {
		write(a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		write(h.prefix+a.Key, a.Value)
		return true
	})
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, sb.String())
	return err
}

func levelTag(level slog.Level) string {
	switch {
	case level < slog.LevelDebug:
		return "[TRACE] "
	case level < slog.LevelInfo:
		return "[DEBUG] "
	case level < slog.LevelWarn:
		return "[INFO]  "
	case level < slog.LevelError:
		return "[WARN]  "
	default:
		return "[ERROR] "
	}
}

func appendAttr(sb *strings.Builder, key string, v slog.Value) {
	v = v.Resolve()

	switch key {
	case "requestID":
		if s := v.String(); len(s) > 8 {
			sb.WriteString("req=")
			sb.WriteString(s[:8])
			return
		}
	case "durationMs":
		sb.WriteString("duration=")
		sb.WriteString(v.String())
		sb.WriteString("ms")
		return
	case "error":
		sb.WriteString("error=")
		sb.WriteString(strconv.Quote(fmt.Sprint(v.Any())))
		return
	}

	sb.WriteString(key)
	sb.WriteByte('=')

	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if needsQuoting(s) {
			s = strconv.Quote(s)
		}
		sb.WriteString(s)
	case slog.KindFloat64:
		sb.WriteString(strconv.FormatFloat(v.Float64(), 'g', -1, 64))
	case slog.KindTime:
		sb.WriteString(v.Time().Format(time.RFC3339))
	default:
		sb.WriteString(v.String())
	}
}

func needsQuoting(s string) bool {
	if s == "" {
		return true
	}
	return strings.ContainsAny(s, " \t\n\"=")
}

func (h *CompactHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, a := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.prefix + a.Key, Value: a.Value})
	}
	return &next
}

func (h *CompactHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}
