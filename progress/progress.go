// Package progress - Fortschrittsanzeige im Terminal
//
// Dieses Paket enthaelt:
// - Progress: Zeichnet mehrere Zustaende zeilenweise, alle 100ms neu
// - Bar: Fortschrittsbalken fuer Sampling-Schritte
// - Spinner: Wartesymbol fuer Ladevorgaenge
package progress

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

const (
	refreshInterval   = 100 * time.Millisecond
	defaultTermHeight = 24

	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	cursorUp   = "\033[A"
	lineStart  = "\033[1G"
	clearLine  = "\033[2K"
	clearToEnd = "\033[K"
)

type State interface {
	String() string
}

type Progress struct {
	mu sync.Mutex
	w  *bufio.Writer

	states  []State
	lines   int
	stopped bool
	done    chan struct{}
}

// NewProgress versteckt den Cursor und zeichnet bis StopAndClear periodisch nach w
func NewProgress(w io.Writer) *Progress {
	p := &Progress{w: bufio.NewWriter(w), done: make(chan struct{})}
	fmt.Fprint(p.w, hideCursor)
	go p.loop()
	return p
}

func (p *Progress) loop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.mu.Lock()
			if !p.stopped {
				p.draw()
			}
			p.mu.Unlock()
		}
	}
}

func (p *Progress) Add(state State) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.states = append(p.states, state)
}

// StopAndClear beendet die Anzeige, loescht die gezeichneten Zeilen und
// zeigt den Cursor wieder an. Nur der erste Aufruf liefert true.
func (p *Progress) StopAndClear() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	defer p.w.Flush()

	if p.stopped {
		fmt.Fprint(p.w, showCursor)
		return false
	}

	p.stopped = true
	close(p.done)
	for _, state := range p.states {
		if spinner, ok := state.(*Spinner); ok {
			spinner.Stop()
		}
	}

	for i := range p.lines {
		if i > 0 {
			fmt.Fprint(p.w, cursorUp)
		}
		fmt.Fprint(p.w, clearLine)
	}
	fmt.Fprint(p.w, lineStart, showCursor)
	return true
}

// draw ueberschreibt die zuletzt gezeichneten Zeilen, p.mu muss gehalten werden
func (p *Progress) draw() {
	height := defaultTermHeight
	if _, h, err := term.GetSize(int(os.Stderr.Fd())); err == nil && h > 0 {
		height = h
	}

	for range p.lines - 1 {
		fmt.Fprint(p.w, cursorUp)
	}
	fmt.Fprint(p.w, lineStart)

	visible := p.states[max(len(p.states)-height, 0):]
	for i, state := range visible {
		if i > 0 {
			fmt.Fprint(p.w, "\n")
		}
		fmt.Fprint(p.w, state.String(), clearToEnd)
	}

	p.lines = len(visible)
	p.w.Flush()
}
