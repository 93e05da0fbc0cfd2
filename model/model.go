// Package model - Model-Interface, Registry und Persistenz
//
// Dieses Paket definiert das Model-Interface und stellt Funktionen
// zum Erstellen, Speichern und Laden registrierter Architekturen bereit.
//
// Hauptkomponenten:
// - Model: Interface fuer alle Modell-Architekturen
// - Register: Registriert Modell-Konstruktoren
// - New: Erstellt ein Modell aus Architektur und Konfiguration
// - Save/Load: Safetensors-Dateien mit Architektur und Konfiguration
// - Eval/Train: Scoped Umschalten des Modus

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/ml/nn"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrNoArchitecture   = errors.New("model file has no architecture")
)

const (
	keyArchitecture = "architecture"
	keyConfig       = "config"
	keyFormat       = "format"

	format = "dalle"
)

// Model definiert das Interface fuer spezifische Modell-Architekturen
type Model interface {
	nn.Trainer

	Architecture() string
	Config() any
}

// Validator ist ein optionales Interface fuer Post-Load-Validierung
type Validator interface {
	Validate() error
}

// Constructor erstellt ein Modell aus seiner JSON-Konfiguration
type Constructor func(config []byte, src *ml.Source) (Model, error)

// models speichert registrierte Modell-Konstruktoren
var models = make(map[string]Constructor)

// Register registriert einen Modell-Konstruktor fuer eine Architektur
func Register(name string, f Constructor) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// Architectures gibt alle registrierten Architekturen sortiert zurueck
func Architectures() []string {
	names := make([]string, 0, len(models))
	for name := range models {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// New erstellt ein zufaellig initialisiertes Modell der Architektur arch
func New(arch string, config []byte, src *ml.Source) (Model, error) {
	f, ok := models[arch]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedModel, arch)
	}
	return f(config, src)
}

// Info beschreibt eine Modell-Datei ohne die Gewichte zu interpretieren
type Info struct {
	Architecture string
	Config       json.RawMessage
	Parameters   []ml.NamedArray
}

// Save schreibt m mit Architektur und Konfiguration als Safetensors nach path
func Save(path string, m Model, dtype ml.DType) error {
	config, err := json.Marshal(m.Config())
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".model-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	metadata := map[string]string{
		keyArchitecture: m.Architecture(),
		keyConfig:       string(config),
		keyFormat:       format,
	}
	if err := ml.WriteSafetensors(f, Parameters(m), dtype, metadata); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	slog.Debug("saved model", "path", path, "architecture", m.Architecture(), "dtype", dtype)
	return os.Rename(f.Name(), path)
}

func read(path string) (*ml.Safetensors, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return ml.ReadSafetensors(f)
}

// Inspect liest Architektur, Konfiguration und Parameter einer Modell-Datei
func Inspect(path string) (*Info, error) {
	st, err := read(path)
	if err != nil {
		return nil, err
	}

	arch := st.Metadata[keyArchitecture]
	if arch == "" {
		return nil, ErrNoArchitecture
	}

	info := &Info{Architecture: arch, Config: json.RawMessage(st.Metadata[keyConfig])}
	for _, name := range st.Names() {
		a, _ := st.Get(name)
		info.Parameters = append(info.Parameters, ml.NamedArray{Name: name, Array: a})
	}
	return info, nil
}

// Load liest eine mit Save geschriebene Modell-Datei
func Load(path string) (Model, error) {
	st, err := read(path)
	if err != nil {
		return nil, err
	}

	arch := st.Metadata[keyArchitecture]
	if arch == "" {
		return nil, ErrNoArchitecture
	}

	m, err := New(arch, []byte(st.Metadata[keyConfig]), ml.NewSource(0))
	if err != nil {
		return nil, err
	}

	loaded, err := Populate(m, st)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if n := st.Len() - len(loaded); n > 0 {
		slog.Warn("model file has unused parameters", "path", path, "count", n)
	}

	if validator, ok := m.(Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, err
		}
	}

	slog.Debug("loaded model", "path", path, "architecture", arch, "parameters", CountParameters(m))
	return m, nil
}
