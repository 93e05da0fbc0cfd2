// routes_generate.go - Bild-Generierung
// Enthaelt: GenerateHandler(), generate(), rankSamples()
//
// Ein Prompt wird fuer Samples Bilder wiederholt, optional mit einem
// clip-Modell bewertet und absteigend nach Score sortiert.

package server

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/imageproc"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/models/clip"
	"github.com/ollama/dalle/model/models/dalle"
	typesmodel "github.com/ollama/dalle/types/model"
)

// GenerateHandler verarbeitet /api/generate Anfragen
func (s *Server) GenerateHandler(c *gin.Context) {
	var req api.GenerateRequest
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
	case len(req.Prompt) == 0:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "prompt is required"})
		return
	case req.Mask != nil && len(req.Mask) != len(req.Prompt):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("mask has %d entries, prompt has %d", len(req.Mask), len(req.Prompt))})
		return
	case req.Clip != "" && typesmodel.ParseName(req.Clip).EqualFold(typesmodel.ParseName(req.Model)):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "clip model must differ from model"})
		return
	}

	samples := cmp.Or(req.Samples, 1)
	if maxSamples := int(envconfig.MaxSamples()); samples < 1 || samples > maxSamples {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("samples must be between 1 and %d", maxSamples)})
		return
	}

	opts := api.DefaultOptions()
	if err := opts.FromMap(req.Options); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	requestID := c.GetString(requestIDKey)

	ch := make(chan any)
	go func() {
		defer close(ch)

		send := func(v any) bool {
			select {
			case ch <- v:
				return true
			case <-ctx.Done():
				return false
			}
		}

		resp, err := s.generate(ctx, req, samples, opts, func(step, total int) {
			send(api.GenerateResponse{
				Model:     req.Model,
				RequestID: requestID,
				CreatedAt: time.Now().UTC(),
				Completed: step,
				Total:     total,
			})
		})
		if err != nil {
			slog.Debug("generate failed", "request_id", requestID, "error", err)
			send(gin.H{"error": err.Error(), "status": errorStatus(err)})
			return
		}

		resp.RequestID = requestID
		send(resp)
	}()

	if req.Stream != nil && !*req.Stream {
		waitForStream(c, ch)
		return
	}

	streamResponse(c, ch)
}

func (s *Server) generate(ctx context.Context, req api.GenerateRequest, samples int, opts api.Options, progress func(step, total int)) (api.GenerateResponse, error) {
	start := time.Now()
	resp := api.GenerateResponse{Model: req.Model}

	text := make([][]int32, samples)
	var mask [][]bool
	for i := range text {
		text[i] = slices.Clone(req.Prompt)
		if req.Mask != nil {
			mask = append(mask, slices.Clone(req.Mask))
		}
	}

	gopts := dalle.DefaultGenerateOptions()
	gopts.FilterThreshold = float64(opts.FilterThreshold)
	gopts.Temperature = float64(opts.Temperature)
	gopts.Mask = mask
	gopts.Progress = progress
	if opts.Seed >= 0 {
		seed := uint64(opts.Seed)
		gopts.Seed = &seed
	}

	loadDuration, err := s.sched.Use(ctx, req.Model, req.KeepAlive, func(m model.Model) error {
		d, ok := m.(*dalle.DALLE)
		if !ok {
			return fmt.Errorf("%q %w %w", req.Model, errCapabilities, errCapabilityGeneration)
		}

		run := func() error {
			sampleStart := time.Now()
			gen, err := d.Generate(ctx, text, gopts)
			if err != nil {
				return err
			}

			resp.SampleDuration = time.Since(sampleStart)
			resp.SampleCount = samples * (d.Options().SeqLen() - len(req.Prompt))
			resp.Samples, err = rankSamples(gen)
			return err
		}

		if req.Clip == "" {
			return run()
		}

		clipLoad, err := s.sched.Use(ctx, req.Clip, req.KeepAlive, func(cm model.Model) error {
			scorer, ok := cm.(*clip.CLIP)
			if !ok {
				return fmt.Errorf("%q %w %w", req.Clip, errCapabilities, errCapabilityScoring)
			}

			gopts.CLIP = scorer
			return run()
		})
		resp.LoadDuration += clipLoad
		return err
	})
	if err != nil {
		return api.GenerateResponse{}, err
	}

	resp.LoadDuration += loadDuration
	resp.TotalDuration = time.Since(start)
	resp.CreatedAt = time.Now().UTC()
	resp.Done = true
	return resp, nil
}

// rankSamples kodiert die Bilder als PNG und sortiert absteigend nach Score
func rankSamples(gen *dalle.Generation) ([]api.Sample, error) {
	pngs, err := imageproc.PNGs(gen.Images)
	if err != nil {
		return nil, err
	}

	samples := make([]api.Sample, len(pngs))
	for i := range samples {
		samples[i] = api.Sample{Image: pngs[i], Tokens: gen.ImageTokens[i]}
		if gen.Scores != nil {
			samples[i].Score = &gen.Scores[i]
		}
	}

	if gen.Scores != nil {
		slices.SortStableFunc(samples, func(a, b api.Sample) int {
			return cmp.Compare(*b.Score, *a.Score)
		})
	}
	return samples, nil
}
