package observe

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("failed to parse log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

// TestLogger_IncludesMetaFields verifies scope, capability count and key
// hash are stamped on every entry.
func TestLogger_IncludesMetaFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf).WithMeta(Meta{
		Scope:        "plugin-loader",
		Capabilities: []string{"Reader", "Closer"},
		KeyHash:      0xbeef,
	})

	logger.Info(context.Background(), "artifact generated")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e[AttrScope] != "plugin-loader" {
		t.Errorf("%s = %v, want plugin-loader", AttrScope, e[AttrScope])
	}
	if e[AttrCapabilityCount] != float64(2) {
		t.Errorf("%s = %v, want 2", AttrCapabilityCount, e[AttrCapabilityCount])
	}
	if e[AttrKeyHash] != "beef" {
		t.Errorf("%s = %v, want beef", AttrKeyHash, e[AttrKeyHash])
	}
	if e["level"] != "info" || e["msg"] != "artifact generated" {
		t.Errorf("unexpected level/msg: %v", e)
	}
	if _, ok := e["timestamp"]; !ok {
		t.Error("missing timestamp")
	}
}

// TestLogger_LevelFiltering verifies entries below the configured level are dropped.
func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("warn", &buf)
	ctx := context.Background()

	logger.Debug(ctx, "debug")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn")
	logger.Error(ctx, "error")

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["level"] != "warn" || entries[1]["level"] != "error" {
		t.Errorf("unexpected levels: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

// TestLogger_Redaction verifies sensitive keys never reach the writer.
func TestLogger_Redaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("debug", &buf)

	logger.Info(context.Background(), "bound",
		Field{Key: "handler", Value: "dispatcher@0x1"},
		Field{Key: "token", Value: "s3cr3t"},
		Field{Key: "capability", Value: "Reader"},
	)

	out := buf.String()
	if strings.Contains(out, "s3cr3t") || strings.Contains(out, "dispatcher@0x1") {
		t.Fatalf("sensitive value leaked: %s", out)
	}
	e := decodeLines(t, &buf)[0]
	if e["handler"] != "[REDACTED]" || e["token"] != "[REDACTED]" {
		t.Errorf("expected redacted fields, got %v", e)
	}
	if e["capability"] != "Reader" {
		t.Errorf("capability = %v, want Reader", e["capability"])
	}
}

// TestLogger_WithMetaDoesNotMutateParent verifies derived loggers are independent.
func TestLogger_WithMetaDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerWithWriter("info", &buf)
	_ = parent.WithMeta(Meta{Scope: "child"})

	parent.Info(context.Background(), "parent")
	e := decodeLines(t, &buf)[0]
	if _, ok := e[AttrScope]; ok {
		t.Errorf("parent logger carries child scope: %v", e)
	}
}

// TestLogger_ConcurrentWrites verifies each entry is written as one whole line.
func TestLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter("info", &buf)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.WithMeta(Meta{Scope: "s"}).Info(context.Background(), "line", Field{Key: "i", Value: i})
		}(i)
	}
	wg.Wait()

	if got := len(decodeLines(t, &buf)); got != 50 {
		t.Fatalf("expected 50 entries, got %d", got)
	}
}

// TestParseLogLevel verifies level names round-trip and unknown names default to info.
func TestParseLogLevel(t *testing.T) {
	for _, name := range []string{"debug", "info", "warn", "error"} {
		if got := ParseLogLevel(name).String(); got != name {
			t.Errorf("ParseLogLevel(%q).String() = %q", name, got)
		}
	}
	if ParseLogLevel("verbose") != LevelInfo {
		t.Error("unknown level should map to info")
	}
}
