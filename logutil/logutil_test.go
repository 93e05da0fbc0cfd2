package logutil

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestTraceLevel(t *testing.T) {
	var b bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&b, LevelTrace))
	Trace("sampling step", "step", 3)

	out := b.String()
	if !strings.Contains(out, "level=TRACE") {
		t.Errorf("Ausgabe enthaelt kein TRACE-Level: %q", out)
	}
	if !strings.Contains(out, "source=logutil_test.go:") {
		t.Errorf("Quelle sollte der Aufrufer sein: %q", out)
	}
}

func TestTraceDisabled(t *testing.T) {
	var b bytes.Buffer
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	slog.SetDefault(NewLogger(&b, slog.LevelInfo))
	Trace("hidden")
	if b.Len() != 0 {
		t.Errorf("TRACE sollte bei INFO unterdrueckt werden: %q", b.String())
	}
}
