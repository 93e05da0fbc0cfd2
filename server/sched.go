// Package server - Scheduler fuer geladene Modelle
//
// Diese Datei enthaelt:
// - Scheduler: Cache der geladenen Modelle mit Keep-Alive
// - runnerRef: Referenz auf ein geladenes Modell
// - Use: Laedt ein Modell bei Bedarf und fuehrt fn exklusiv darauf aus
//
// Ein Modell wird pro Anfrage exklusiv verwendet, da Generate und Score
// den Modus des Modells umschalten. Nur ein Modell wird gleichzeitig geladen.
package server

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/types/errtypes"
	typesmodel "github.com/ollama/dalle/types/model"
)

var defaultSessionDuration = 5 * time.Minute

// runnerRef ist ein geladenes Modell
type runnerRef struct {
	// mu serialisiert Anfragen auf model
	mu sync.Mutex

	name      typesmodel.Name
	path      string
	model     model.Model
	expiresAt time.Time
	timer     *time.Timer
}

// Scheduler verwaltet das Laden und Entladen von Modellen
type Scheduler struct {
	// loadedMu schuetzt loaded, gehalten waehrend ein Modell geladen wird
	loadedMu sync.Mutex
	loaded   map[string]*runnerRef

	loadFn func(path string) (model.Model, error)
}

// InitScheduler erstellt einen neuen Scheduler
func InitScheduler() *Scheduler {
	return &Scheduler{
		loaded: make(map[string]*runnerRef),
		loadFn: model.Load,
	}
}

// Use laedt das Modell name falls noetig und ruft fn exklusiv damit auf.
// Zurueckgegeben wird die Ladezeit, 0 wenn das Modell bereits geladen war.
func (s *Scheduler) Use(ctx context.Context, name string, keepAlive *api.Duration, fn func(model.Model) error) (time.Duration, error) {
	ref, loadDuration, err := s.acquire(ctx, name)
	if err != nil {
		return 0, err
	}

	ref.mu.Lock()
	defer func() {
		ref.mu.Unlock()
		s.expireAfter(ref, sessionDuration(keepAlive))
	}()

	return loadDuration, fn(ref.model)
}

func sessionDuration(keepAlive *api.Duration) time.Duration {
	if keepAlive == nil {
		return defaultSessionDuration
	}
	return keepAlive.Duration
}

func (s *Scheduler) acquire(ctx context.Context, name string) (*runnerRef, time.Duration, error) {
	n, path, err := ExistingModelPath(name)
	if err != nil {
		return nil, 0, err
	}

	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	if ref, ok := s.loaded[path]; ok {
		if ref.timer != nil {
			ref.timer.Stop()
		}
		return ref, 0, nil
	}

	type result struct {
		m   model.Model
		err error
	}

	start := time.Now()
	ch := make(chan result, 1)
	load := s.loadFn
	go func() {
		m, err := load(path)
		ch <- result{m, err}
	}()

	timeout := time.NewTimer(envconfig.LoadTimeout())
	defer timeout.Stop()

	var r result
	select {
	case r = <-ch:
	case <-ctx.Done():
		return nil, 0, ctx.Err()
	case <-timeout.C:
		return nil, 0, &errtypes.ModelLoadError{Model: n.DisplayShortest(), Reason: "timed out waiting for model to load"}
	}

	if r.err != nil {
		var notFound *errtypes.ModelNotFoundError
		if errors.As(r.err, &notFound) {
			return nil, 0, r.err
		}
		return nil, 0, &errtypes.ModelLoadError{Model: n.DisplayShortest(), Reason: r.err.Error()}
	}

	ref := &runnerRef{name: n, path: path, model: r.m}
	s.loaded[path] = ref

	loadDuration := time.Since(start)
	slog.Info("loaded model", "model", n, "architecture", r.m.Architecture(), "duration", loadDuration)
	return ref, loadDuration, nil
}

// expireAfter entlaedt ref nach d, sofort fuer d <= 0
func (s *Scheduler) expireAfter(ref *runnerRef, d time.Duration) {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	if s.loaded[ref.path] != ref {
		return
	}

	if ref.timer != nil {
		ref.timer.Stop()
	}

	if d <= 0 {
		s.unload(ref)
		return
	}

	ref.expiresAt = time.Now().Add(d)
	ref.timer = time.AfterFunc(d, func() {
		s.loadedMu.Lock()
		defer s.loadedMu.Unlock()

		if s.loaded[ref.path] == ref && !time.Now().Before(ref.expiresAt) {
			s.unload(ref)
		}
	})
}

// unload entfernt ref, loadedMu muss gehalten werden
func (s *Scheduler) unload(ref *runnerRef) {
	slog.Debug("unloading model", "model", ref.name)
	delete(s.loaded, ref.path)
}

// Running gibt die geladenen Modelle sortiert nach Namen zurueck
func (s *Scheduler) Running() []api.ProcessModelResponse {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	models := make([]api.ProcessModelResponse, 0, len(s.loaded))
	for _, ref := range s.loaded {
		models = append(models, api.ProcessModelResponse{
			Name:  ref.name.DisplayShortest(),
			Model: ref.name.String(),
			Details: api.ModelDetails{
				Architecture:   ref.model.Architecture(),
				ParameterCount: int64(model.CountParameters(ref.model)),
			},
			ExpiresAt: ref.expiresAt,
		})
	}

	slices.SortFunc(models, func(a, b api.ProcessModelResponse) int {
		return strings.Compare(a.Name, b.Name)
	})
	return models
}

// Unload entfernt name aus dem Cache, z.B. nach dem Loeschen der Datei
func (s *Scheduler) Unload(path string) {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	if ref, ok := s.loaded[path]; ok {
		if ref.timer != nil {
			ref.timer.Stop()
		}
		s.unload(ref)
	}
}

// unloadAllRunners entlaedt alle Modelle beim Herunterfahren
func (s *Scheduler) unloadAllRunners() {
	s.loadedMu.Lock()
	defer s.loadedMu.Unlock()

	for _, ref := range s.loaded {
		if ref.timer != nil {
			ref.timer.Stop()
		}
		s.unload(ref)
	}
}
