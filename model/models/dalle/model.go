// model.go - Autoregressives Text-zu-Bild-Modell
//
// Dieses Modul enthaelt:
// - DALLE: Einbettungen, Sequenz-Transformation und Logit-Kopf
// - New: Erstellt das Modell, optional mit geteiltem VAE-Codebook
// - Forward: Maskierte Logits ueber die gesamte Eingabesequenz
// - Loss: Kreuzentropie mit vorgegebener Sequenz gegen die um eins verschobenen Labels
package dalle

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/ml/nn"
	"github.com/ollama/dalle/ml/nn/transformer"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

// Architecture ist der Registry-Name des Modells
const Architecture = "dalle"

const eps = 1e-5

type DALLE struct {
	TextEmb     *nn.Embedding     `param:"text_emb"`
	ImageEmb    *nn.Embedding     `param:"image_emb"`
	TextPosEmb  *nn.Embedding     `param:"text_pos_emb"`
	ImagePosEmb *nn.Embedding     `param:"image_pos_emb"`
	Transformer nn.Transform      `param:"transformer"`
	Norm        *nn.LayerNorm     `param:"norm,alt:to_logits.0"`
	Output      *nn.Linear        `param:"to_logits,alt:to_logits.1"`
	VAE         *dvae.DiscreteVAE `param:"vae"`

	mask     *LogitsMask
	config   Config
	training bool
}

type options struct {
	vae       *dvae.DiscreteVAE
	transform nn.Transform
}

// Option konfiguriert New
type Option func(*options)

// WithVAE haengt einen VAE an. Sein Codebook wird als Bild-Einbettung geteilt.
func WithVAE(v *dvae.DiscreteVAE) Option {
	return func(o *options) { o.vae = v }
}

// WithTransform ersetzt den kausalen Referenz-Transformer
func WithTransform(t nn.Transform) Option {
	return func(o *options) { o.transform = t }
}

// New erstellt ein zufaellig initialisiertes Modell
func New(c Config, src *ml.Source, opts ...Option) (*DALLE, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.vae != nil {
		vc := o.vae.Options()
		c.VAE = &vc
	}

	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	if o.vae == nil && c.VAE != nil {
		v, err := dvae.New(*c.VAE, src)
		if err != nil {
			return nil, err
		}
		o.vae = v
	}

	if o.transform == nil {
		t, err := transformer.New(transformer.Options{
			Dim:     c.Dim,
			Depth:   c.Depth,
			Heads:   c.Heads,
			DimHead: c.DimHead,
			Dropout: c.Dropout,
			Causal:  true,
		}, src)
		if err != nil {
			return nil, err
		}
		o.transform = t
	}

	m := &DALLE{
		TextEmb:     nn.NewEmbedding(src, c.NumTextTokens, c.Dim),
		TextPosEmb:  nn.NewEmbedding(src, c.TextSeqLen, c.Dim),
		ImagePosEmb: nn.NewEmbedding(src, c.ImageSeqLen, c.Dim),
		Transformer: o.transform,
		Norm:        nn.NewLayerNorm(c.Dim),
		Output:      nn.NewLinear(src, c.Dim, c.TotalTokens(), true),
		VAE:         o.vae,
		mask:        NewLogitsMask(c),
		config:      c,
	}

	if m.VAE != nil {
		m.ImageEmb = m.VAE.Codebook
	} else {
		m.ImageEmb = nn.NewEmbedding(src, c.NumImageTokens, c.Dim)
	}

	slog.Debug("created dalle", "dim", c.Dim, "text_seq_len", c.TextSeqLen, "image_seq_len", c.ImageSeqLen,
		"total_tokens", c.TotalTokens(), "vae", m.VAE != nil)
	return m, nil
}

func (m *DALLE) Architecture() string { return Architecture }

func (m *DALLE) Config() any { return m.config }

// Options gibt die vollstaendige Konfiguration zurueck
func (m *DALLE) Options() Config { return m.config }

// LogitsMask gibt die feste Logit-Maske zurueck
func (m *DALLE) LogitsMask() *LogitsMask { return m.mask }

func (m *DALLE) SetTraining(training bool) {
	m.training = training
	nn.SetTraining(m.Transformer, training)
	if m.VAE != nil {
		m.VAE.SetTraining(training)
	}
}

func (m *DALLE) Training() bool { return m.training }

// Forward gibt die maskierten Logits [B, L, TotalTokens] fuer text ++ image zurueck.
// mask (optional) hat die Laenge des Textsegments, true markiert sichtbare Positionen.
// Mit Bild muss der Text die volle Laenge TextSeqLen haben.
func (m *DALLE) Forward(text [][]int32, image input.Image, mask [][]bool) (*ml.Array, error) {
	if err := m.checkText("dalle forward", text); err != nil {
		return nil, err
	}

	ids, err := m.resolveImage("dalle forward", image, len(text))
	if err != nil {
		return nil, err
	}
	if ids != nil && len(text[0]) != m.config.TextSeqLen {
		return nil, errtypes.Precondition("dalle forward", "text length %d must equal text_seq_len %d when an image is given", len(text[0]), m.config.TextSeqLen)
	}

	return m.forward(text, ids, mask)
}

func (m *DALLE) forward(text, image [][]int32, mask [][]bool) (*ml.Array, error) {
	if err := checkMask("dalle forward", mask, len(text), len(text[0])); err != nil {
		return nil, err
	}

	tokens, mask, err := m.embed(text, image, mask)
	if err != nil {
		return nil, err
	}

	out, err := m.Transformer.Forward(tokens, mask)
	if err != nil {
		return nil, err
	}
	if out.NDim() != 3 || out.Dim(2) != m.config.Dim {
		return nil, errtypes.Shape("dalle forward", out.Shape(), "transform output must be [batch, length, %d]", m.config.Dim)
	}

	logits := m.Output.Forward(m.Norm.Forward(out, eps))
	if err := m.mask.Apply(logits); err != nil {
		return nil, err
	}
	return logits, nil
}

// Loss gibt die mittlere Kreuzentropie der naechsten-Token-Vorhersage zurueck.
// Text und Bild muessen die volle konfigurierte Laenge haben.
func (m *DALLE) Loss(text [][]int32, image input.Image, mask [][]bool) (float32, error) {
	if image == nil {
		return 0, errtypes.Precondition("dalle loss", "an image is required for training")
	}
	if err := m.checkText("dalle loss", text); err != nil {
		return 0, err
	}
	if n := len(text[0]); n != m.config.TextSeqLen {
		return 0, errtypes.Precondition("dalle loss", "text length %d must equal text_seq_len %d", n, m.config.TextSeqLen)
	}

	ids, err := m.resolveImage("dalle loss", image, len(text))
	if err != nil {
		return 0, err
	}
	if ids == nil || len(ids[0]) != m.config.ImageSeqLen {
		return 0, errtypes.Precondition("dalle loss", "image must have %d tokens", m.config.ImageSeqLen)
	}

	logits, err := m.forward(text, ids, mask)
	if err != nil {
		return 0, err
	}

	// labels = text ++ (image + NumTextTokens) ++ EOS, um eins nach links verschoben
	b, l := logits.Dim(0), logits.Dim(1)
	labels := make([]int32, 0, b*l)
	for i := range b {
		row := make([]int32, 0, l+1)
		row = append(row, text[i]...)
		for _, id := range ids[i] {
			row = append(row, id+int32(m.config.NumTextTokens))
		}
		row = append(row, m.config.EOS())
		labels = append(labels, row[1:]...)
	}

	return ml.CrossEntropy(logits.Reshape(b*l, -1), labels)
}

func init() {
	model.Register(Architecture, func(config []byte, src *ml.Source) (model.Model, error) {
		var c Config
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", Architecture, err)
		}

		m, err := New(c, src)
		if err != nil {
			return nil, err
		}
		return m, nil
	})
}
