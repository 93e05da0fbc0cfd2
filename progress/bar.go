package progress

import (
	"fmt"
	"math"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/term"
)

// Bar zeigt den Fortschritt der Sampling-Schritte an
type Bar struct {
	message string

	maxValue     int64
	currentValue atomic.Int64

	started time.Time
}

func NewBar(message string, maxValue int64) *Bar {
	return &Bar{
		message:  message,
		maxValue: maxValue,
		started:  time.Now(),
	}
}

// formatDuration limits the rendering of a time.Duration to 2 units
func formatDuration(d time.Duration) string {
	if d >= 100*time.Hour {
		return "99h+"
	}

	if d >= time.Hour {
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}

	return d.Round(time.Second).String()
}

func (b *Bar) String() string {
	termWidth, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil {
		termWidth = 80
	}

	var pre, mid, suf strings.Builder

	if b.message != "" {
		pre.WriteString(strings.TrimSpace(b.message))
		pre.WriteString(" ")
	}

	fmt.Fprintf(&pre, "%3.0f%% ", math.Floor(b.percent()))

	current := b.currentValue.Load()
	fmt.Fprintf(&suf, "(%d/%d", current, b.maxValue)

	elapsed := time.Since(b.started)
	if current > 0 && elapsed > 0 {
		fmt.Fprintf(&suf, ", %.1f steps/s", float64(current)/elapsed.Seconds())
	}
	suf.WriteString(")")

	if current > 0 && current < b.maxValue {
		remaining := time.Duration(float64(elapsed) / float64(current) * float64(b.maxValue-current))
		fmt.Fprintf(&suf, " [%s:%s]", formatDuration(elapsed), formatDuration(remaining))
	}

	// add 3 extra spaces: 2 boundary characters and 1 space at the end
	f := termWidth - pre.Len() - suf.Len() - 3
	n := int(float64(f) * b.percent() / 100)

	if f > 0 {
		mid.WriteString("▕")
		mid.WriteString(strings.Repeat("█", n))
		if f-n > 0 {
			mid.WriteString(strings.Repeat(" ", f-n))
		}
		mid.WriteString("▏")
	}

	return pre.String() + mid.String() + suf.String()
}

func (b *Bar) Set(value int64) {
	b.currentValue.Store(min(value, b.maxValue))
}

func (b *Bar) percent() float64 {
	if b.maxValue > 0 {
		return float64(b.currentValue.Load()) / float64(b.maxValue) * 100
	}

	return 0
}
