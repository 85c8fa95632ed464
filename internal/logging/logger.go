// Package logging provides structured logging configuration using log/slog.
//
// Every record goes to the console handler and to an in-memory Collector, so
// a command can save the log of its run as a report.
package logging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Log formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ParseLevel converts a string log level to slog.Level.
//
// Level values: "debug", "info", "warn", "error". The empty string is "info".
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level: %s", level)
	}
}

// NewHandler returns a text or json handler writing to w.
// The empty format is "text".
func NewHandler(w io.Writer, level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", FormatText:
		return slog.NewTextHandler(w, opts), nil
	case FormatJSON:
		return slog.NewJSONHandler(w, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format: %s", format)
	}
}

// Collector keeps a text copy of every record logged through its logger.
type Collector struct {
	buf    *lockedBuffer
	logger *slog.Logger
}

// NewCollector returns a Collector whose logger writes to console in the given
// format and collects the same records as text.
func NewCollector(console io.Writer, level, format string) (*Collector, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler, err := NewHandler(console, lvl, format)
	if err != nil {
		return nil, err
	}

	buf := &lockedBuffer{}
	collected := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: lvl})
	return &Collector{
		buf:    buf,
		logger: slog.New(teeHandler{handler, collected}),
	}, nil
}

// Logger returns the logger feeding the collector.
func (c *Collector) Logger() *slog.Logger {
	return c.logger
}

// String returns the collected log.
func (c *Collector) String() string {
	return c.buf.String()
}

// WriteTo writes the collected log to w.
func (c *Collector) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, c.String())
	return int64(n), err
}

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// teeHandler sends every record to all of its handlers.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
