package progress

import (
	"bufio"
	"bytes"
	"strings"
	"testing"
)

func TestBar(t *testing.T) {
	b := NewBar("generating", 8)
	if got := b.String(); !strings.Contains(got, "  0% ") || !strings.Contains(got, "(0/8)") {
		t.Errorf("unerwartete Ausgabe %q", got)
	}

	b.Set(4)
	if got := b.String(); !strings.HasPrefix(got, "generating  50% ") || !strings.Contains(got, "(4/8") {
		t.Errorf("unerwartete Ausgabe %q", got)
	}

	b.Set(100)
	if got := b.String(); !strings.Contains(got, "100% ") || !strings.Contains(got, "(8/8") {
		t.Errorf("Wert sollte auf das Maximum begrenzt sein: %q", got)
	}
}

func TestSpinner(t *testing.T) {
	s := NewSpinner("loading")
	if got := s.String(); !strings.HasPrefix(got, "loading ") || len(got) <= len("loading ") {
		t.Errorf("unerwartete Ausgabe %q", got)
	}

	s.Stop()
	if got := s.String(); got != "loading " {
		t.Errorf("gestoppter Spinner: %q", got)
	}
}

func TestProgressStopAndClear(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf)
	p.Add(NewSpinner("loading"))
	p.Add(NewBar("generating", 4))

	if !p.StopAndClear() {
		t.Fatal("erwartet gestoppt")
	}
	if p.StopAndClear() {
		t.Error("zweites Stoppen sollte false liefern")
	}

	if out := buf.String(); !strings.HasSuffix(out, "\033[?25h") {
		t.Errorf("Cursor sollte wieder sichtbar sein: %q", out)
	}
}

type staticState string

func (s staticState) String() string { return string(s) }

func TestProgressDraw(t *testing.T) {
	var buf bytes.Buffer
	p := &Progress{w: bufio.NewWriter(&buf), done: make(chan struct{})}
	p.Add(staticState("eins"))
	p.Add(staticState("zwei"))

	p.mu.Lock()
	p.draw()
	p.draw()
	lines := p.lines
	p.mu.Unlock()

	if lines != 2 {
		t.Errorf("lines = %d, erwartet 2", lines)
	}

	out := buf.String()
	if n := strings.Count(out, "eins"+clearToEnd+"\nzwei"+clearToEnd); n != 2 {
		t.Errorf("erwartet zwei vollstaendige Frames, erhalten %d: %q", n, out)
	}

	buf.Reset()
	p.StopAndClear()
	if want := clearLine + cursorUp + clearLine + lineStart + showCursor; buf.String() != want {
		t.Errorf("StopAndClear = %q, erwartet %q", buf.String(), want)
	}
}
