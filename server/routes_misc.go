// routes_misc.go - Hilfsfunktionen fuer Streaming und laufende Modelle
// Enthaelt: PsHandler(), waitForStream(), streamResponse()

package server

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ollama/dalle/api"
)

// PsHandler listet die geladenen Modelle
func (s *Server) PsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, api.ProcessResponse{Models: s.sched.Running()})
}

// waitForStream wartet auf die letzte Response einer nicht-streaming Anfrage
func waitForStream(c *gin.Context, ch chan any) {
	c.Header("Content-Type", "application/json")
	var latest any
	for resp := range ch {
		if h, ok := resp.(gin.H); ok {
			status, ok := h["status"].(int)
			if !ok {
				status = http.StatusInternalServerError
			}
			errorMsg, ok := h["error"].(string)
			if !ok {
				errorMsg = "unknown error"
			}
			c.JSON(status, gin.H{"error": errorMsg})
			return
		}
		latest = resp
	}

	if latest == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "no response"})
		return
	}

	c.JSON(http.StatusOK, latest)
}

// streamResponse streamt ndjson Responses
func streamResponse(c *gin.Context, ch chan any) {
	c.Header("Content-Type", "application/x-ndjson")
	c.Stream(func(w io.Writer) bool {
		val, ok := <-ch
		if !ok {
			return false
		}

		if h, ok := val.(gin.H); ok {
			if e, ok := h["error"].(string); ok {
				status, ok := h["status"].(int)
				if !ok {
					status = http.StatusInternalServerError
				}

				if !c.Writer.Written() {
					c.Header("Content-Type", "application/json")
					c.JSON(status, gin.H{"error": e})
				} else {
					if err := json.NewEncoder(c.Writer).Encode(gin.H{"error": e}); err != nil {
						slog.Error("streamResponse failed to encode json error", "error", err)
					}
				}

				return false
			}
		}

		bts, err := json.Marshal(val)
		if err != nil {
			slog.Info(fmt.Sprintf("streamResponse: json.Marshal failed with %s", err))
			return false
		}

		bts = append(bts, '\n')
		if _, err := w.Write(bts); err != nil {
			slog.Info(fmt.Sprintf("streamResponse: w.Write failed with %s", err))
			return false
		}

		return true
	})
}
