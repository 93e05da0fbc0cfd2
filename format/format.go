// Package format - Menschenlesbare Darstellung von Groessen, Anzahlen und Zeiten
// fuer die Tabellen der CLI.
package format

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

type scale struct {
	factor float64
	suffix string
}

// Dezimale Einheiten, groesste zuerst
var (
	byteScales   = []scale{{1e9, " GB"}, {1e6, " MB"}, {1e3, " KB"}}
	numberScales = []scale{{1e9, "B"}, {1e6, "M"}, {1e3, "K"}}
)

// HumanBytes formatiert eine Dateigroesse, z.B. 2048 -> "2.0 KB"
func HumanBytes(b int64) string {
	for _, s := range byteScales {
		if float64(b) > s.factor {
			return strconv.FormatFloat(float64(b)/s.factor, 'f', 1, 64) + s.suffix
		}
	}
	return strconv.FormatInt(b, 10) + " B"
}

// HumanNumber kuerzt Parameter-Anzahlen auf drei signifikante Stellen,
// z.B. 1234567 -> "1.23M", 123456789 -> "123M"
func HumanNumber(n uint64) string {
	for _, s := range numberScales {
		if v := float64(n) / s.factor; v >= 1 {
			prec := 2
			if v >= 100 {
				prec = 0
			} else if v >= 10 {
				prec = 1
			}
			return strconv.FormatFloat(v, 'f', prec, 64) + s.suffix
		}
	}
	return strconv.FormatUint(n, 10)
}

// Ab 48 Stunden wird in groeberen Einheiten gezaehlt
var hourSpans = []struct {
	below, per int
	unit       string
}{
	{48, 1, "hours"},
	{24 * 14, 24, "days"},
	{24 * 60, 24 * 7, "weeks"},
	{24 * 730, 24 * 30, "months"},
}

// HumanDuration gibt eine grobe Naeherung von d zurueck ("About a minute", "4 hours")
func HumanDuration(d time.Duration) string {
	switch s := int(d.Seconds()); {
	case s < 1:
		return "Less than a second"
	case s == 1:
		return "1 second"
	case s < 60:
		return fmt.Sprintf("%d seconds", s)
	}

	switch m := int(d.Minutes()); {
	case m == 1:
		return "About a minute"
	case m < 60:
		return fmt.Sprintf("%d minutes", m)
	}

	h := int(math.Round(d.Hours()))
	if h == 1 {
		return "About an hour"
	}
	for _, span := range hourSpans {
		if h < span.below {
			return fmt.Sprintf("%d %s", h/span.per, span.unit)
		}
	}
	return fmt.Sprintf("%d years", h/(24*365))
}

// HumanTime beschreibt t relativ zu jetzt, zeroValue fuer den Nullwert
func HumanTime(t time.Time, zeroValue string) string {
	if t.IsZero() {
		return zeroValue
	}

	delta := time.Since(t)
	if delta < 0 {
		return HumanDuration(-delta) + " from now"
	}
	return HumanDuration(delta) + " ago"
}
