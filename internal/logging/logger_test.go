package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{" warn ", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}
	for _, tc := range cases {
		if got := ParseLevel(tc.in); got != tc.want {
			t.Fatalf("ParseLevel(%q)=%v want %v", tc.in, got, tc.want)
		}
	}
}

func TestWithMinLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := WithMinLevel(NewText(&buf, slog.LevelDebug), slog.LevelWarn)

	l.Debug("quiet")
	l.Info("quiet")
	if buf.Len() != 0 {
		t.Fatalf("records below the minimum leaked: %q", buf.String())
	}

	l.Warn("loud", "key", "value")
	l.Error("louder")
	out := buf.String()
	if !strings.Contains(out, "loud") || !strings.Contains(out, "louder") {
		t.Fatalf("records at or above the minimum missing: %q", out)
	}
}

func TestWithMinLevelPreservesAttrs(t *testing.T) {
	var buf bytes.Buffer
	l := WithMinLevel(NewText(&buf, slog.LevelDebug), slog.LevelInfo).With("vaultID", "v1")
	l.Info("hello")
	if !strings.Contains(buf.String(), "vaultID=v1") {
		t.Fatalf("missing attr in %q", buf.String())
	}
}
