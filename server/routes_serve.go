// routes_serve.go - Server-Start und Lifecycle-Management
// Enthaelt: Serve() - Hauptfunktion zum Starten des HTTP-Servers

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/logutil"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/version"
)

// Serve startet den HTTP-Server und Scheduler
func Serve(ln net.Listener) error {
	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
	slog.Info("server config", "env", envconfig.Values())

	if n := envconfig.NumThreads(); n > 0 {
		ml.SetNumThreads(int(n))
	}

	if err := os.MkdirAll(envconfig.Models(), 0o755); err != nil {
		return err
	}

	s := &Server{addr: ln.Addr(), sched: InitScheduler()}

	h, err := s.GenerateRoutes()
	if err != nil {
		return err
	}

	ctx, done := context.WithCancel(context.Background())

	slog.Info(fmt.Sprintf("Listening on %s (version %s)", ln.Addr(), version.Version))
	srvr := &http.Server{Handler: h}

	// listen for a ctrl+c and unload all models
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		srvr.Close()
		s.sched.unloadAllRunners()
		done()
	}()

	err = srvr.Serve(ln)
	// If server is closed from the signal handler, wait for the ctx to be done
	// otherwise error out quickly
	if !slices.Contains([]error{http.ErrServerClosed}, err) {
		return err
	}
	<-ctx.Done()
	return nil
}
