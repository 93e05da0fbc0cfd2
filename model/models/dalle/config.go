// config.go - Konfiguration des autoregressiven Text-zu-Bild-Modells
//
// Dieses Modul enthaelt:
// - Config: Strukturelle Parameter (Vokabulare, Sequenzlaengen, Tiefe)
// - applyDefaults: Uebernimmt fehlende Werte aus der VAE-Konfiguration
// - Validate: Prueft die Konfiguration gegen den angehaengten VAE
package dalle

import (
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

// Config enthaelt die strukturellen Parameter des Modells
type Config struct {
	Dim            int          `json:"dim"`
	NumTextTokens  int          `json:"num_text_tokens"`
	NumImageTokens int          `json:"num_image_tokens"`
	TextSeqLen     int          `json:"text_seq_len"`
	ImageSeqLen    int          `json:"image_seq_len"`
	Depth          int          `json:"depth"`
	Heads          int          `json:"heads"`
	DimHead        int          `json:"dim_head,omitempty"`
	Dropout        float64      `json:"dropout,omitempty"`
	VAE            *dvae.Config `json:"vae,omitempty"`
}

func (c *Config) applyDefaults() {
	if c.VAE == nil {
		return
	}
	if c.NumImageTokens == 0 {
		c.NumImageTokens = c.VAE.NumTokens
	}
	if c.ImageSeqLen == 0 {
		c.ImageSeqLen = c.VAE.SeqLen()
	}
}

// Validate prueft die Konfiguration
func (c Config) Validate() error {
	switch {
	case c.Dim <= 0:
		return errtypes.Configuration(Architecture, "dim must be positive, got %d", c.Dim)
	case c.NumTextTokens <= 0:
		return errtypes.Configuration(Architecture, "num_text_tokens must be positive, got %d", c.NumTextTokens)
	case c.NumImageTokens <= 0:
		return errtypes.Configuration(Architecture, "num_image_tokens must be positive, got %d", c.NumImageTokens)
	case c.TextSeqLen <= 0:
		return errtypes.Configuration(Architecture, "text_seq_len must be positive, got %d", c.TextSeqLen)
	case c.ImageSeqLen <= 0:
		return errtypes.Configuration(Architecture, "image_seq_len must be positive, got %d", c.ImageSeqLen)
	}

	if v := c.VAE; v != nil {
		switch {
		case v.NumTokens != c.NumImageTokens:
			return errtypes.Configuration(Architecture, "num_image_tokens %d does not match vae num_tokens %d", c.NumImageTokens, v.NumTokens)
		case v.Dim != c.Dim:
			return errtypes.Configuration(Architecture, "dim %d does not match vae codebook_dim %d", c.Dim, v.Dim)
		case v.SeqLen() != c.ImageSeqLen:
			return errtypes.Configuration(Architecture, "image_seq_len %d does not match vae sequence length %d", c.ImageSeqLen, v.SeqLen())
		}
	}
	return nil
}

// SeqLen gibt die Gesamtlaenge aus Text- und Bildsegment zurueck
func (c Config) SeqLen() int {
	return c.TextSeqLen + c.ImageSeqLen
}

// TotalTokens gibt die Groesse des gemeinsamen Vokabulars zurueck (inklusive EOS)
func (c Config) TotalTokens() int {
	return c.NumTextTokens + c.NumImageTokens + 1
}

// EOS gibt die Id des End-of-Sequence-Tokens zurueck (letzte Id im gemeinsamen Vokabular)
func (c Config) EOS() int32 {
	return int32(c.TotalTokens() - 1)
}
