// Package server - Haupt-Router und Server-Setup fuer dalle
// Beinhaltet: Server-Struct, Router-Registrierung, Request-IDs, Fehler-Mapping
package server

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/types/errtypes"
	"github.com/ollama/dalle/version"
)

var mode string = gin.DebugMode

// Fehler fuer Modelle der falschen Architektur
var (
	errCapabilities         = errors.New("does not support")
	errCapabilityGeneration = errors.New("image generation")
	errCapabilityScoring    = errors.New("scoring")
)

const requestIDKey = "request_id"

// Server verwaltet den HTTP-Server und Scheduler
type Server struct {
	addr  net.Addr
	sched *Scheduler
}

func init() {
	switch mode {
	case gin.DebugMode:
	case gin.ReleaseMode:
	case gin.TestMode:
	default:
		mode = gin.DebugMode
	}

	gin.SetMode(mode)
}

// GenerateRoutes erstellt und konfiguriert den HTTP-Router
func (s *Server) GenerateRoutes() (http.Handler, error) {
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowWildcard = true
	corsConfig.AllowBrowserExtensions = true
	corsConfig.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"User-Agent",
		"Accept",
		"X-Requested-With",
		"X-Request-Id",
	}
	corsConfig.ExposeHeaders = []string{"X-Request-Id"}
	corsConfig.AllowOrigins = envconfig.AllowedOrigins()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(
		gin.Recovery(),
		requestIDMiddleware(),
		requestLogger(),
		cors.New(corsConfig),
		allowedHostsMiddleware(s.addr),
	)

	// General
	r.HEAD("/", func(c *gin.Context) { c.String(http.StatusOK, "dalle is running") })
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, "dalle is running") })
	r.HEAD("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })
	r.GET("/api/version", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"version": version.Version}) })

	// Local model store
	r.HEAD("/api/tags", s.ListHandler)
	r.GET("/api/tags", s.ListHandler)
	r.POST("/api/show", s.ShowHandler)
	r.DELETE("/api/delete", s.DeleteHandler)

	// Inference
	r.GET("/api/ps", s.PsHandler)
	r.POST("/api/generate", s.GenerateHandler)
	r.POST("/api/score", s.ScoreHandler)

	return r, nil
}

// errorStatus bildet Fehlerklassen auf HTTP-Statuscodes ab
func errorStatus(err error) int {
	var notFound *errtypes.ModelNotFoundError
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, errInvalidModelName),
		errors.Is(err, errCapabilities),
		errors.Is(err, errBadImage),
		errors.Is(err, errtypes.ErrPrecondition),
		errors.Is(err, errtypes.ErrShape),
		errors.Is(err, errtypes.ErrConfiguration):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled):
		return 499
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errorStatus(err), gin.H{"error": err.Error()})
}
