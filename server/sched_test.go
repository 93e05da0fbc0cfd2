package server

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

func touchModel(t *testing.T, name string) string {
	t.Helper()
	_, path, err := ModelPath(name)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func countingScheduler(t *testing.T, delay time.Duration) (*Scheduler, *atomic.Int32) {
	t.Helper()

	var loads atomic.Int32
	s := InitScheduler()
	s.loadFn = func(path string) (model.Model, error) {
		loads.Add(1)
		time.Sleep(delay)
		return dvae.New(testVAEConfig, ml.NewSource(1))
	}
	return s, &loads
}

func TestSchedulerKeepAlive(t *testing.T) {
	t.Setenv("DALLE_MODELS", t.TempDir())
	touchModel(t, "vae")
	s, loads := countingScheduler(t, 0)

	use := func(keepAlive *api.Duration) time.Duration {
		t.Helper()
		d, err := s.Use(context.Background(), "vae", keepAlive, func(m model.Model) error {
			if m.Architecture() != dvae.Architecture {
				t.Errorf("architecture = %q", m.Architecture())
			}
			return nil
		})
		if err != nil {
			t.Fatal(err)
		}
		return d
	}

	use(nil)
	use(nil)
	if n := loads.Load(); n != 1 {
		t.Fatalf("erwartet 1 Ladevorgang, erhalten %d", n)
	}

	running := s.Running()
	if len(running) != 1 || running[0].Name != "vae:latest" {
		t.Fatalf("unerwartete Modelle %+v", running)
	}
	if until := time.Until(running[0].ExpiresAt); until <= 0 || until > defaultSessionDuration {
		t.Errorf("expires in %v", until)
	}

	use(&api.Duration{Duration: 0})
	if n := len(s.Running()); n != 0 {
		t.Fatalf("keep_alive 0 sollte entladen, %d geladen", n)
	}

	use(&api.Duration{Duration: 10 * time.Millisecond})
	if n := loads.Load(); n != 2 {
		t.Fatalf("erwartet 2 Ladevorgaenge, erhalten %d", n)
	}

	deadline := time.Now().Add(5 * time.Second)
	for len(s.Running()) > 0 {
		if time.Now().After(deadline) {
			t.Fatal("Modell wurde nicht entladen")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSchedulerErrors(t *testing.T) {
	t.Setenv("DALLE_MODELS", t.TempDir())
	touchModel(t, "slow")

	s, _ := countingScheduler(t, 200*time.Millisecond)

	var notFound *errtypes.ModelNotFoundError
	if _, err := s.Use(context.Background(), "missing", nil, nil); !errors.As(err, &notFound) {
		t.Errorf("erwartet ModelNotFoundError, erhalten %v", err)
	}

	t.Setenv("DALLE_LOAD_TIMEOUT", "10ms")
	var loadErr *errtypes.ModelLoadError
	if _, err := s.Use(context.Background(), "slow", nil, nil); !errors.As(err, &loadErr) {
		t.Errorf("erwartet ModelLoadError, erhalten %v", err)
	}

	t.Setenv("DALLE_LOAD_TIMEOUT", "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Use(ctx, "slow", nil, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("erwartet context.Canceled, erhalten %v", err)
	}

	s.loadFn = func(string) (model.Model, error) { return nil, errors.New("corrupt file") }
	if _, err := s.Use(context.Background(), "slow", nil, nil); !errors.As(err, &loadErr) || errorStatus(err) != 500 {
		t.Errorf("erwartet ModelLoadError mit Status 500, erhalten %v", err)
	}
}
