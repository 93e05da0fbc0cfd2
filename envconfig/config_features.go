// config_features.go - Sampling- und Laufzeit-Konfiguration
//
// Dieses Modul enthaelt:
// - Standardwerte fuer die Generierung (Schwelle, Temperatur, Seed)
// - Laufzeit-Einstellungen (Threads, Samples pro Anfrage)
package envconfig

import (
	"log/slog"
	"strconv"
)

// =============================================================================
// Generierung
// =============================================================================

var (
	// FilterThreshold ist die Standard-Schwelle des Top-k-Filters
	FilterThreshold = Float("DALLE_FILTER_THRESHOLD", 0.5)

	// Temperature ist die Standard-Sampling-Temperatur
	Temperature = Float("DALLE_TEMPERATURE", 1)

	// MaxSamples begrenzt die Bilder pro Generierungs-Anfrage
	MaxSamples = Uint("DALLE_MAX_SAMPLES", 8)
)

// Seed gibt den festen Sampling-Seed zurueck, nil wenn DALLE_SEED nicht gesetzt ist
func Seed() *uint64 {
	s := Var("DALLE_SEED")
	if s == "" {
		return nil
	}

	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		slog.Warn("invalid environment variable, ignoring", "key", "DALLE_SEED", "value", s)
		return nil
	}
	return &n
}

// =============================================================================
// Laufzeit
// =============================================================================

var (
	// NumThreads setzt die Anzahl der Worker fuer Tensor-Kernel (0 = alle CPUs)
	NumThreads = Uint("DALLE_NUM_THREADS", 0)

	// NoColor deaktiviert farbige Terminal-Ausgabe
	NoColor = Bool("DALLE_NOCOLOR")
)
