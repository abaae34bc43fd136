package goSession

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewLoggerFormatsAndLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LoggingConfig{Level: "warn", Format: "json"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info must be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"shown"`) || !strings.Contains(out, `"k":"v"`) {
		t.Fatalf("expected json record, got %s", out)
	}

	buf.Reset()
	NewLogger(LoggingConfig{Level: "debug", Format: "text"}, &buf).Debug("plain")
	if !strings.Contains(buf.String(), "msg=plain") {
		t.Fatalf("expected text record, got %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	for _, ok := range []string{"", "debug", "INFO", " warning ", "error"} {
		if _, err := parseLevel(ok); err != nil {
			t.Fatalf("level %q: unexpected error %v", ok, err)
		}
	}
	if _, err := parseLevel("trace"); err == nil {
		t.Fatal("expected error for unknown level")
	}
}
