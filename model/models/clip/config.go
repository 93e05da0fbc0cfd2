package clip

import (
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

// ============================================================================
// Config - Strukturelle Parameter des kontrastiven Scorers
// ============================================================================

// Architecture ist der Registry-Name des Modells
const Architecture = "clip"

type Config struct {
	DimText         int          `json:"dim_text"`
	DimImage        int          `json:"dim_image"`
	DimLatent       int          `json:"dim_latent"`
	NumTextTokens   int          `json:"num_text_tokens"`
	TextEncDepth    int          `json:"text_enc_depth"`
	TextSeqLen      int          `json:"text_seq_len"`
	TextHeads       int          `json:"text_heads"`
	VisualEncDepth  int          `json:"visual_enc_depth"`
	VisualHeads     int          `json:"visual_heads"`
	VisualImageSize int          `json:"visual_image_size,omitempty"`
	VisualPatchSize int          `json:"visual_patch_size,omitempty"`
	Channels        int          `json:"channels,omitempty"`
	VAE             *dvae.Config `json:"vae,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.Channels == 0 {
		c.Channels = 3
	}
}

// Validate prueft die Konfiguration. Mit VAE werden die Patch-Parameter ignoriert.
func (c Config) Validate() error {
	switch {
	case c.DimText <= 0:
		return errtypes.Configuration(Architecture, "dim_text must be positive, got %d", c.DimText)
	case c.DimImage <= 0:
		return errtypes.Configuration(Architecture, "dim_image must be positive, got %d", c.DimImage)
	case c.DimLatent <= 0:
		return errtypes.Configuration(Architecture, "dim_latent must be positive, got %d", c.DimLatent)
	case c.NumTextTokens <= 0:
		return errtypes.Configuration(Architecture, "num_text_tokens must be positive, got %d", c.NumTextTokens)
	case c.TextSeqLen <= 0:
		return errtypes.Configuration(Architecture, "text_seq_len must be positive, got %d", c.TextSeqLen)
	}

	if c.VAE != nil {
		if c.DimImage != c.VAE.Dim {
			return errtypes.Configuration(Architecture, "dim_image %d does not match vae codebook_dim %d", c.DimImage, c.VAE.Dim)
		}
		return nil
	}

	switch {
	case c.VisualImageSize <= 0 || c.VisualPatchSize <= 0:
		return errtypes.Configuration(Architecture, "visual_image_size and visual_patch_size must be positive, got %d and %d", c.VisualImageSize, c.VisualPatchSize)
	case c.VisualImageSize%c.VisualPatchSize != 0:
		return errtypes.Configuration(Architecture, "visual_image_size %d must be divisible by visual_patch_size %d", c.VisualImageSize, c.VisualPatchSize)
	case c.Channels <= 0:
		return errtypes.Configuration(Architecture, "channels must be positive, got %d", c.Channels)
	}
	return nil
}

// NumPatches gibt die Laenge der visuellen Sequenz zurueck
func (c Config) NumPatches() int {
	if c.VAE != nil {
		return c.VAE.SeqLen()
	}
	n := c.VisualImageSize / c.VisualPatchSize
	return n * n
}

// PatchDim gibt die Laenge eines abgeflachten Patches zurueck
func (c Config) PatchDim() int {
	return c.VisualPatchSize * c.VisualPatchSize * c.Channels
}
