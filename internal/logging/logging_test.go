package logging

import (
	"bytes"
	"encoding/json"
	"log"
	"log/slog"
	"strings"
	"testing"
)

func TestInitJSONDefault(t *testing.T) {
	var buf bytes.Buffer
	logger := Init("engine", &buf)
	logger.Info("hello", "key", "value")
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["service"] != "engine" {
		t.Fatalf("service attr: %v", entry["service"])
	}
	if entry["key"] != "value" {
		t.Fatalf("key attr: %v", entry["key"])
	}
}

func TestInitTextFormat(t *testing.T) {
	t.Setenv("LOG_FORMAT", "text")
	var buf bytes.Buffer
	logger := Init("engine", &buf)
	logger.Info("hello")
	if !strings.Contains(buf.String(), "msg=hello") {
		t.Fatalf("expected text output, got %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		if got := parseLevel(input); got != want {
			t.Fatalf("parseLevel(%q): got %v, want %v", input, got, want)
		}
	}
}

func TestStdlibRedirect(t *testing.T) {
	var buf bytes.Buffer
	Init("engine", &buf)
	log.Printf("plain message")
	if !strings.Contains(buf.String(), "plain message") {
		t.Fatalf("stdlib log not redirected: %q", buf.String())
	}
	if !strings.Contains(buf.String(), "stdlib") {
		t.Fatalf("missing source attr: %q", buf.String())
	}
}
