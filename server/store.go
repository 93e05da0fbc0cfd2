// store.go - Lokales Model-Verzeichnis
//
// Dieses Modul enthaelt:
// - ModelPath: Loest einen Modellnamen in einen Dateipfad auf
// - ExistingModelPath: Wie ModelPath, aber die Datei muss existieren
// - Models: Listet alle gespeicherten Modelle
// - DeleteModel: Entfernt eine Modell-Datei
//
// Layout: $DALLE_MODELS/<namespace>/<model>/<tag>.safetensors
package server

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/types/errtypes"
	"github.com/ollama/dalle/types/model"
)

var errInvalidModelName = errors.New(errtypes.InvalidModelNameErrMsg)

// StoredModel beschreibt eine Modell-Datei im Model-Verzeichnis
type StoredModel struct {
	Name       model.Name
	Path       string
	Size       int64
	ModifiedAt time.Time
}

// ModelPath gibt Namen und Dateipfad fuer s zurueck
func ModelPath(s string) (model.Name, string, error) {
	name := model.ParseName(s)
	if !name.IsValid() {
		return model.Name{}, "", errInvalidModelName
	}

	return name, filepath.Join(envconfig.Models(), name.Filepath()), nil
}

// ExistingModelPath ist ModelPath fuer bereits gespeicherte Modelle
func ExistingModelPath(s string) (model.Name, string, error) {
	name, path, err := ModelPath(s)
	if err != nil {
		return name, "", err
	}

	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return name, "", &errtypes.ModelNotFoundError{Model: name.DisplayShortest()}
	} else if err != nil {
		return name, "", err
	}

	return name, path, nil
}

// Models listet alle gueltigen Modell-Dateien sortiert nach Namen
func Models() ([]StoredModel, error) {
	root := envconfig.Models()

	var models []StoredModel
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == root {
				return fs.SkipAll
			}
			return err
		}

		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}

		name := model.ParseNameFromFilepath(rel)
		if !name.IsValid() {
			slog.Debug("skipping unknown file in models directory", "path", path)
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		models = append(models, StoredModel{
			Name:       name,
			Path:       path,
			Size:       info.Size(),
			ModifiedAt: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(models, func(a, b StoredModel) int {
		return strings.Compare(a.Name.String(), b.Name.String())
	})
	return models, nil
}

// DeleteModel entfernt die Modell-Datei und leere Elternverzeichnisse
func DeleteModel(s string) error {
	_, path, err := ExistingModelPath(s)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil {
		return err
	}

	root := envconfig.Models()
	for dir := filepath.Dir(path); dir != root && len(dir) > len(root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return nil
}
