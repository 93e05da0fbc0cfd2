// routes_score.go - Bewertung von Text-Bild-Paaren mit clip
// Enthaelt: ScoreHandler(), scoreImage()

package server

import (
	"errors"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/imageproc"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/model/models/clip"
)

// ScoreHandler verarbeitet /api/score Anfragen
func (s *Server) ScoreHandler(c *gin.Context) {
	var req api.ScoreRequest
	err := c.ShouldBindJSON(&req)
	switch {
	case errors.Is(err, io.EOF):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "missing request body"})
		return
	case err != nil:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch {
	case req.Model == "":
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "model is required"})
		return
	case len(req.Prompts) == 0:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "prompts are required"})
		return
	case (len(req.Images) > 0) == (len(req.ImageTokens) > 0):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "exactly one of images or image_tokens is required"})
		return
	case len(req.Images)+len(req.ImageTokens) != len(req.Prompts):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "one image per prompt is required"})
		return
	}

	var scores []float32
	_, err = s.sched.Use(c.Request.Context(), req.Model, req.KeepAlive, func(m model.Model) error {
		cl, ok := m.(*clip.CLIP)
		if !ok {
			return fmt.Errorf("%q %w %w", req.Model, errCapabilities, errCapabilityScoring)
		}

		img, err := scoreImage(cl.Options(), req)
		if err != nil {
			return err
		}

		scores, err = cl.Score(req.Prompts, img, req.Masks)
		return err
	})
	if err != nil {
		abortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, api.ScoreResponse{
		Model:     req.Model,
		RequestID: c.GetString(requestIDKey),
		Scores:    scores,
	})
}

// scoreImage dekodiert die Bilder der Anfrage in die Aufloesung des Modells
func scoreImage(cfg clip.Config, req api.ScoreRequest) (input.Image, error) {
	if len(req.ImageTokens) > 0 {
		return input.ImageTokens{IDs: req.ImageTokens}, nil
	}

	size, channels := cfg.VisualImageSize, cfg.Channels
	if cfg.VAE != nil {
		size, channels = cfg.VAE.ImageSize, cfg.VAE.Channels
	}

	imgs := make([]image.Image, len(req.Images))
	for i, data := range req.Images {
		img, err := imageproc.DecodeBytes(data)
		if err != nil {
			return nil, &badImageError{index: i, err: err}
		}

		if imgs[i], err = imageproc.Fit(img, size); err != nil {
			return nil, err
		}
	}

	pixels, err := imageproc.ToArray(channels, imgs...)
	if err != nil {
		return nil, err
	}
	return input.RawImage{Pixels: pixels}, nil
}

type badImageError struct {
	index int
	err   error
}

func (e *badImageError) Error() string {
	return fmt.Sprintf("image %d: %v", e.index, e.err)
}

func (e *badImageError) Unwrap() error { return e.err }

func (e *badImageError) Is(target error) bool { return target == errBadImage }

var errBadImage = errors.New("invalid image")
