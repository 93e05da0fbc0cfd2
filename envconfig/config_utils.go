// config_utils.go - Utility-Funktionen und Export fuer Konfiguration
//
// Dieses Modul enthaelt:
// - BoolWithDefault/Bool: Boolean-Getter mit Default-Wert
// - String: String-Getter
// - Uint/Float: Zahlen-Getter mit Default-Wert
// - EnvVar: Struktur fuer Environment-Variablen-Info
// - AsMap: Gibt alle Konfigurationen als Map zurueck
// - Values: Gibt alle Konfigurationswerte als String-Map zurueck
package envconfig

import (
	"fmt"
	"log/slog"
	"strconv"
)

// =============================================================================
// Boolean-Getter
// =============================================================================

// BoolWithDefault gibt eine Funktion zurueck, die einen Bool mit Default-Wert liest
func BoolWithDefault(k string) func(defaultValue bool) bool {
	return func(defaultValue bool) bool {
		if s := Var(k); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				return true
			}
			return b
		}
		return defaultValue
	}
}

// Bool gibt eine Funktion zurueck, die einen Bool liest (Default: false)
func Bool(k string) func() bool {
	withDefault := BoolWithDefault(k)
	return func() bool {
		return withDefault(false)
	}
}

// =============================================================================
// String-Getter
// =============================================================================

// String gibt eine Funktion zurueck, die einen String liest
func String(s string) func() string {
	return func() string {
		return Var(s)
	}
}

// =============================================================================
// Zahlen-Getter
// =============================================================================

// parsed gibt eine Funktion zurueck, die key mit parse liest. Leere oder
// ungueltige Werte ergeben defaultValue.
func parsed[T any](key string, defaultValue T, parse func(string) (T, error)) func() T {
	return func() T {
		s := Var(key)
		if s == "" {
			return defaultValue
		}

		v, err := parse(s)
		if err != nil {
			slog.Warn("invalid environment variable, using default", "key", key, "value", s, "default", defaultValue)
			return defaultValue
		}
		return v
	}
}

// Uint liest einen uint mit Default-Wert
func Uint(key string, defaultValue uint) func() uint {
	return parsed(key, defaultValue, func(s string) (uint, error) {
		n, err := strconv.ParseUint(s, 10, 64)
		return uint(n), err
	})
}

// Float liest einen float64 mit Default-Wert
func Float(key string, defaultValue float64) func() float64 {
	return parsed(key, defaultValue, func(s string) (float64, error) {
		return strconv.ParseFloat(s, 64)
	})
}

// =============================================================================
// Export-Strukturen und -Funktionen
// =============================================================================

// EnvVar repraesentiert eine Environment-Variable mit Metadaten
type EnvVar struct {
	Name        string
	Value       any
	Description string
}

// AsMap gibt alle Konfigurationen als Map zurueck
// Enthaelt Namen, aktuelle Werte und Beschreibungen
func AsMap() map[string]EnvVar {
	seed := "random"
	if s := Seed(); s != nil {
		seed = strconv.FormatUint(*s, 10)
	}

	return map[string]EnvVar{
		"DALLE_DEBUG":            {"DALLE_DEBUG", LogLevel(), "Show additional debug information (e.g. DALLE_DEBUG=1)"},
		"DALLE_HOST":             {"DALLE_HOST", Host(), "IP Address for the dalle server (default 127.0.0.1:11500)"},
		"DALLE_ORIGINS":          {"DALLE_ORIGINS", AllowedOrigins(), "A comma separated list of allowed origins"},
		"DALLE_MODELS":           {"DALLE_MODELS", Models(), "The path to the models directory"},
		"DALLE_LOAD_TIMEOUT":     {"DALLE_LOAD_TIMEOUT", LoadTimeout(), "How long to allow model loads to stall before giving up (default \"5m\")"},
		"DALLE_FILTER_THRESHOLD": {"DALLE_FILTER_THRESHOLD", FilterThreshold(), "Default top-k filter threshold for sampling (default 0.5)"},
		"DALLE_TEMPERATURE":      {"DALLE_TEMPERATURE", Temperature(), "Default sampling temperature (default 1)"},
		"DALLE_SEED":             {"DALLE_SEED", seed, "Fixed sampling seed"},
		"DALLE_MAX_SAMPLES":      {"DALLE_MAX_SAMPLES", MaxSamples(), "Maximum number of images per generate request"},
		"DALLE_NUM_THREADS":      {"DALLE_NUM_THREADS", NumThreads(), "Number of tensor kernel workers (default: all CPUs)"},
		"DALLE_NOCOLOR":          {"DALLE_NOCOLOR", NoColor(), "Disable colored terminal output"},
	}
}

// Values gibt alle Konfigurationswerte als String-Map zurueck
func Values() map[string]string {
	vals := make(map[string]string)
	for k, v := range AsMap() {
		vals[k] = fmt.Sprintf("%v", v.Value)
	}
	return vals
}
