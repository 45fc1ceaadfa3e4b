package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// TestLogBuffer is a thread-safe buffer for capturing log output in tests.
type TestLogBuffer struct {
	buf bytes.Buffer
	mu  sync.Mutex
}

// Write implements io.Writer for TestLogBuffer.
func (b *TestLogBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// String returns the buffer contents as a string.
func (b *TestLogBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Entries parses the buffer as one JSON log entry per line.
func (b *TestLogBuffer) Entries() ([]map[string]any, error) {
	lines := strings.Split(b.String(), "\n")
	entries := make([]map[string]any, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Find returns the first entry whose msg equals msg.
func (b *TestLogBuffer) Find(msg string) (map[string]any, bool) {
	entries, err := b.Entries()
	if err != nil {
		return nil, false
	}
	for _, e := range entries {
		if e["msg"] == msg {
			return e, true
		}
	}
	return nil, false
}

// NewTestLogger returns a debug-level JSON logger writing into a fresh buffer.
func NewTestLogger(t testing.TB) (*slog.Logger, *TestLogBuffer) {
	t.Helper()
	buf := &TestLogBuffer{}
	return New(buf, slog.LevelDebug), buf
}
