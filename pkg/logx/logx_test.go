package logx

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("foundry", &buf)

	logger.Info("request %s took %dms", "/v1/health", 42)

	output := buf.String()
	if !strings.Contains(output, "[foundry]") {
		t.Errorf("Expected component tag in output, got: %s", output)
	}
	if !strings.Contains(output, "INFO") {
		t.Errorf("Expected level in output, got: %s", output)
	}
	if !strings.Contains(output, "request /v1/health took 42ms") {
		t.Errorf("Expected formatted message in output, got: %s", output)
	}
	if !strings.Contains(output, "T") || !strings.Contains(output, "Z") {
		t.Errorf("Expected ISO timestamp in output, got: %s", output)
	}
}

func TestLogLevels(t *testing.T) {
	tests := []struct {
		level    Level
		call     func(*Logger)
		expected string
	}{
		{LevelDebug, func(l *Logger) { l.Debug("msg") }, "DEBUG"},
		{LevelInfo, func(l *Logger) { l.Info("msg") }, "INFO"},
		{LevelWarn, func(l *Logger) { l.Warn("msg") }, "WARN"},
		{LevelError, func(l *Logger) { l.Error("msg") }, "ERROR"},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLoggerWithWriter("test", &buf)

			if tt.level == LevelDebug {
				SetDebug(true)
				defer SetDebug(false)
			}

			tt.call(logger)

			if !strings.Contains(buf.String(), tt.expected) {
				t.Errorf("Expected level %q in output, got: %s", tt.expected, buf.String())
			}
		})
	}
}

func TestDebugSuppressedWhenDisabled(t *testing.T) {
	SetDebug(false)
	var buf bytes.Buffer
	NewLoggerWithWriter("test", &buf).Debug("hidden")
	if buf.Len() != 0 {
		t.Errorf("Expected no debug output, got: %s", buf.String())
	}
}

func TestDebugDomains(t *testing.T) {
	SetDebug(true, "foundry")
	defer SetDebug(false)

	if !IsDebugEnabledForDomain("foundry") {
		t.Error("Expected foundry domain enabled")
	}
	if IsDebugEnabledForDomain("orchestrator") {
		t.Error("Expected orchestrator domain disabled")
	}

	SetDebug(true)
	if !IsDebugEnabledForDomain("orchestrator") {
		t.Error("Expected every domain enabled with no filter")
	}
}

func TestWithComponent(t *testing.T) {
	var buf bytes.Buffer
	original := NewLoggerWithWriter("original", &buf)
	derived := original.WithComponent("derived")

	if original.Component() != "original" {
		t.Errorf("Expected original component unchanged, got %q", original.Component())
	}

	derived.Info("hello")
	if !strings.Contains(buf.String(), "[derived]") {
		t.Errorf("Expected derived tag on shared writer, got: %s", buf.String())
	}
}

func TestSessionIDContext(t *testing.T) {
	ctx := WithSessionID(context.Background(), "sess-1")
	if got := SessionIDFrom(ctx); got != "sess-1" {
		t.Errorf("Expected sess-1, got %q", got)
	}
	if got := SessionIDFrom(context.Background()); got != "" {
		t.Errorf("Expected empty session id, got %q", got)
	}
}

func TestRecentEntriesFilter(t *testing.T) {
	start := time.Now().UTC().Add(-time.Second)
	var buf bytes.Buffer
	NewLoggerWithWriter("buffer-test-component", &buf).Warn("captured")

	entries := RecentEntries("buffer-test-component", start)
	if len(entries) == 0 {
		t.Fatal("Expected captured entry")
	}
	last := entries[len(entries)-1]
	if last.Level != string(LevelWarn) || last.Message != "captured" {
		t.Errorf("Unexpected entry: %+v", last)
	}
}

func TestBufferBounded(t *testing.T) {
	b := &InMemoryLogBuffer{maxSize: 3}
	for i := 0; i < 5; i++ {
		b.Add(&LogEntry{Component: "c", Message: string(rune('a' + i))})
	}
	entries := b.Entries("", time.Time{})
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "c" {
		t.Errorf("Expected oldest retained entry 'c', got %q", entries[0].Message)
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "noop") != nil {
		t.Error("Expected nil for nil error")
	}
	base := errors.New("boom")
	err := Wrap(base, "open store")
	if !errors.Is(err, base) {
		t.Error("Expected wrapped error to match base")
	}
	if err.Error() != "open store: boom" {
		t.Errorf("Unexpected message %q", err.Error())
	}
}
