package util

import (
	"bytes"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"":      slog.LevelInfo,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for name, want := range cases {
		got, err := ParseLevel(name)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestLogError(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info")
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	LogError(logger, "close store", nil)
	if buf.Len() != 0 {
		t.Fatalf("expected nothing logged for nil error")
	}
	LogError(logger, "close store", errors.New("boom"))
	if !strings.Contains(buf.String(), "close store") || !strings.Contains(buf.String(), "boom") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}

func TestDataDirUsesXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_DATA_HOME", dir)
	if got := DataDir("sprintledger"); got != filepath.Join(dir, "sprintledger") {
		t.Fatalf("unexpected data dir %q", got)
	}
	if got := ReportsDir("sprintledger", ""); got != filepath.Join(dir, "sprintledger", "reports") {
		t.Fatalf("unexpected reports dir %q", got)
	}
	if got := ReportsDir("sprintledger", "/srv/reports"); got != "/srv/reports" {
		t.Fatalf("expected configured dir, got %q", got)
	}
}

func TestExpandHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	if got := expandHome("~/reports"); got != filepath.Join(home, "reports") {
		t.Fatalf("unexpected expansion %q", got)
	}
	if got := expandHome("/abs"); got != "/abs" {
		t.Fatalf("expected path unchanged, got %q", got)
	}
}
