// Package convert - Import von PyTorch-Checkpoints
//
// Dieses Paket laedt state_dicts, benennt die Schluessel um und befuellt ein
// registriertes Modell. Fehlende Parameter behalten ihre Initialisierung und
// werden im Report gemeldet.
//
// Hauptkomponenten:
// - FromTorch: Laedt eine .pt/.pth-Datei in ein neues Modell
// - FromArrays: Befuellt ein neues Modell aus bereits gelesenen Arrays
// - Report: Geladene, fehlende und unbekannte Namen
package convert

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
)

// Report beschreibt das Ergebnis einer Konvertierung
type Report struct {
	// Loaded sind die Namen, unter denen Parameter gefunden wurden
	Loaded []string

	// Missing sind Parameter ohne passenden Tensor, sie behalten ihre Initialisierung
	Missing []string

	// Unused sind Tensoren ohne passenden Parameter (Checkpoint-Namen)
	Unused []string
}

// FromTorch liest den Checkpoint path und erstellt ein Modell der Architektur arch
func FromTorch(path, arch string, config []byte) (model.Model, *Report, error) {
	arrays, err := readTorch(path)
	if err != nil {
		return nil, nil, err
	}
	return FromArrays(arrays, arch, config)
}

// numLayers liest die Anzahl der VAE-Schichten aus der Konfiguration.
// Fuer Modelle mit eingebettetem VAE steht sie unter "vae".
func numLayers(config []byte) int {
	var c struct {
		NumLayers int `json:"num_layers"`
		VAE       *struct {
			NumLayers int `json:"num_layers"`
		} `json:"vae"`
	}
	if err := json.Unmarshal(config, &c); err != nil {
		return 0
	}
	if c.VAE != nil {
		return c.VAE.NumLayers
	}
	return c.NumLayers
}

// FromArrays erstellt ein Modell der Architektur arch und kopiert arrays hinein
func FromArrays(arrays []ml.NamedArray, arch string, config []byte) (model.Model, *Report, error) {
	m, err := model.New(arch, config, ml.NewSource(0))
	if err != nil {
		return nil, nil, err
	}

	r := renamer{numLayers: numLayers(config)}
	src := make(model.Arrays, len(arrays))
	names := make(map[string]string, len(arrays))
	for _, na := range arrays {
		name := r.rename(na.Name)
		if name != na.Name {
			slog.Debug("renamed tensor", "from", na.Name, "to", name)
		}
		src[name] = na.Array
		names[name] = na.Name
	}

	report := &Report{}
	loaded, err := model.Populate(m, src)
	var missing *model.MissingError
	if errors.As(err, &missing) {
		report.Missing = missing.Names
		loaded, err = model.Populate(m, src, model.AllowMissing())
	}
	if err != nil {
		return nil, nil, err
	}
	report.Loaded = loaded

	known := model.Names(m)
	for name, orig := range names {
		if !slices.Contains(known, name) {
			report.Unused = append(report.Unused, orig)
		}
	}
	slices.Sort(report.Unused)

	if len(report.Missing) > 0 {
		slog.Warn("checkpoint is missing parameters", "architecture", arch, "count", len(report.Missing))
	}
	if len(report.Unused) > 0 {
		slog.Warn("checkpoint has unused tensors", "architecture", arch, "count", len(report.Unused))
	}
	return m, report, nil
}
