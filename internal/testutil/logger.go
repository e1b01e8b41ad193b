// Package testutil provides test utilities for structured logging.
package testutil

import (
	"context"
	"log/slog"
	"sync"
	"testing"
)

// NewTestLogger returns a logger that writes to t.Log().
// Logs only appear on test failure or when running with -v.
func NewTestLogger(t testing.TB) *slog.Logger {
	t.Helper()
	return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(p []byte) (n int, err error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}

// Entry is one captured log record.
type Entry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// Capture records every log entry it handles so tests can assert on them.
type Capture struct {
	mu      sync.Mutex
	entries []Entry
	attrs   []slog.Attr
	root    *Capture
}

// NewCaptureLogger returns a logger backed by a Capture.
func NewCaptureLogger() (*slog.Logger, *Capture) {
	c := &Capture{}
	c.root = c
	return slog.New(c), c
}

func (c *Capture) Enabled(context.Context, slog.Level) bool { return true }

func (c *Capture) Handle(_ context.Context, r slog.Record) error {
	attrs := make(map[string]any, r.NumAttrs()+len(c.attrs))
	for _, a := range c.attrs {
		attrs[a.Key] = a.Value.Any()
	}
	r.Attrs(func(a slog.Attr) bool {
		attrs[a.Key] = a.Value.Any()
		return true
	})
	c.root.mu.Lock()
	c.root.entries = append(c.root.entries, Entry{Level: r.Level, Message: r.Message, Attrs: attrs})
	c.root.mu.Unlock()
	return nil
}

func (c *Capture) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Capture{attrs: append(append([]slog.Attr{}, c.attrs...), attrs...), root: c.root}
}

func (c *Capture) WithGroup(string) slog.Handler { return c }

// Entries returns the captured entries in order.
func (c *Capture) Entries() []Entry {
	c.root.mu.Lock()
	defer c.root.mu.Unlock()
	return append([]Entry(nil), c.root.entries...)
}

// Messages returns the message of every captured entry.
func (c *Capture) Messages() []string {
	var out []string
	for _, e := range c.Entries() {
		out = append(out, e.Message)
	}
	return out
}
