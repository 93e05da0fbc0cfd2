// MODUL: clip
// ZWECK: Kontrastiver Text-Bild-Scorer mit zwei Tuermen und gemeinsamem latenten Raum
// INPUT: Text-Ids [B][L] mit optionaler Maske, Bilder als Pixel oder Codebook-Indizes
// OUTPUT: Skalierte Kosinus-Aehnlichkeiten, paarweise Matrix, kontrastiver Verlust
// NEBENEFFEKTE: Keine
// ABHAENGIGKEITEN: ml, ml/nn, ml/nn/transformer, model, model/input, dvae, types/errtypes
// HINWEISE: Mit VAE werden Bilder ueber das geteilte Codebook eingebettet,
//           sonst ueber eine lineare Patch-Projektion.
//           Die Skalierung ist exp(temperature), initial e.

package clip

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/ml/nn"
	"github.com/ollama/dalle/ml/nn/transformer"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

// ============================================================================
// CLIP - Hauptstruktur
// ============================================================================

type CLIP struct {
	TextEmb         *nn.Embedding `param:"text_emb"`
	TextPosEmb      *nn.Embedding `param:"text_pos_emb"`
	TextTransformer nn.Transform  `param:"text_transformer"`
	ToTextLatent    *nn.Linear    `param:"to_text_latent"`

	// Genau eines von VisualEmb (mit VAE) und PatchProj ist gesetzt
	VisualEmb         *nn.Embedding `param:"visual_emb"`
	PatchProj         *nn.Linear    `param:"to_visual_embedding"`
	VisualPosEmb      *nn.Embedding `param:"visual_pos_emb"`
	VisualTransformer nn.Transform  `param:"visual_transformer"`
	ToVisualLatent    *nn.Linear    `param:"to_visual_latent"`

	Temperature *ml.Array `param:"temperature"`

	VAE *dvae.DiscreteVAE `param:"vae"`

	config   Config
	training bool
}

type options struct {
	vae          *dvae.DiscreteVAE
	text, visual nn.Transform
}

// Option konfiguriert New
type Option func(*options)

// WithVAE haengt einen VAE an, dessen Codebook die Bild-Einbettung wird
func WithVAE(v *dvae.DiscreteVAE) Option {
	return func(o *options) { o.vae = v }
}

// WithTextTransform ersetzt den Text-Transformer
func WithTextTransform(t nn.Transform) Option {
	return func(o *options) { o.text = t }
}

// WithVisualTransform ersetzt den visuellen Transformer
func WithVisualTransform(t nn.Transform) Option {
	return func(o *options) { o.visual = t }
}

// New erstellt einen zufaellig initialisierten Scorer
func New(c Config, src *ml.Source, opts ...Option) (*CLIP, error) {
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

	var err error
	if o.text == nil {
		if o.text, err = transformer.New(transformer.Options{Dim: c.DimText, Depth: c.TextEncDepth, Heads: c.TextHeads}, src); err != nil {
			return nil, err
		}
	}
	if o.visual == nil {
		if o.visual, err = transformer.New(transformer.Options{Dim: c.DimImage, Depth: c.VisualEncDepth, Heads: c.VisualHeads}, src); err != nil {
			return nil, err
		}
	}

	m := &CLIP{
		TextEmb:           nn.NewEmbedding(src, c.NumTextTokens, c.DimText),
		TextPosEmb:        nn.NewEmbedding(src, c.TextSeqLen, c.DimText),
		TextTransformer:   o.text,
		ToTextLatent:      nn.NewLinear(src, c.DimText, c.DimLatent, false),
		VisualPosEmb:      nn.NewEmbedding(src, c.NumPatches(), c.DimImage),
		VisualTransformer: o.visual,
		ToVisualLatent:    nn.NewLinear(src, c.DimImage, c.DimLatent, false),
		Temperature:       ml.Full(1, 1),
		VAE:               o.vae,
		config:            c,
	}

	if m.VAE != nil {
		m.VisualEmb = m.VAE.Codebook
	} else {
		m.PatchProj = nn.NewLinear(src, c.PatchDim(), c.DimImage, true)
	}

	slog.Debug("created clip", "dim_text", c.DimText, "dim_image", c.DimImage, "dim_latent", c.DimLatent,
		"patches", c.NumPatches(), "vae", m.VAE != nil)
	return m, nil
}

func (m *CLIP) Architecture() string { return Architecture }

func (m *CLIP) Config() any { return m.config }

// Options gibt die vollstaendige Konfiguration zurueck
func (m *CLIP) Options() Config { return m.config }

func (m *CLIP) SetTraining(training bool) {
	m.training = training
	nn.SetTraining(m.TextTransformer, training)
	nn.SetTraining(m.VisualTransformer, training)
	if m.VAE != nil {
		m.VAE.SetTraining(training)
	}
}

func (m *CLIP) Training() bool { return m.training }

// Scale gibt den Faktor exp(temperature) zurueck
func (m *CLIP) Scale() float32 {
	return float32(math.Exp(float64(m.Temperature.Item())))
}

// ============================================================================
// Tuerme
// ============================================================================

func (m *CLIP) encodeText(op string, text [][]int32, mask [][]bool) (*ml.Array, error) {
	if len(text) == 0 {
		return nil, errtypes.Precondition(op, "text batch is empty")
	}

	n := len(text[0])
	for i, row := range text {
		if len(row) != n {
			return nil, errtypes.Shape(op, []int{len(text), n}, "text row %d has length %d", i, len(row))
		}
	}
	if n < 1 || n > m.config.TextSeqLen {
		return nil, errtypes.Shape(op, []int{len(text), n}, "text length must be in [1, %d]", m.config.TextSeqLen)
	}
	if mask != nil {
		if len(mask) != len(text) {
			return nil, errtypes.Shape(op, []int{len(mask)}, "mask has %d rows for batch %d", len(mask), len(text))
		}
		for i, row := range mask {
			if len(row) != n {
				return nil, errtypes.Shape(op, []int{len(text), len(row)}, "mask row %d has length %d, want %d", i, len(row), n)
			}
		}
	}

	x, err := m.TextEmb.Forward(text)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	x = ml.Add(x, ml.Slice(m.TextPosEmb.Weight, 0, 0, n))

	if x, err = m.TextTransformer.Forward(x, mask); err != nil {
		return nil, err
	}

	pooled := MaskedMean(x, mask)
	return ml.L2Normalize(m.ToTextLatent.Forward(pooled)), nil
}

func (m *CLIP) encodeImage(op string, image input.Image, batch int) (*ml.Array, error) {
	var x *ml.Array
	switch img := image.(type) {
	case nil:
		return nil, errtypes.Precondition(op, "an image is required")
	case input.ImageTokens:
		if m.VAE == nil {
			return nil, errtypes.Precondition(op, "image tokens require a VAE")
		}
		if len(img.IDs) == 0 {
			return nil, errtypes.Precondition(op, "an image is required")
		}
		if n := len(img.IDs[0]); n != m.config.NumPatches() {
			return nil, errtypes.Shape(op, []int{len(img.IDs), n}, "expected %d image tokens", m.config.NumPatches())
		}

		var err error
		if x, err = m.VisualEmb.Forward(img.IDs); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	case input.RawImage:
		if img.Pixels == nil {
			return nil, errtypes.Precondition(op, "an image is required")
		}

		if m.VAE != nil {
			ids, err := m.VAE.Encode(img.Pixels)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			return m.encodeImage(op, input.ImageTokens{IDs: ids}, batch)
		}

		patches, err := m.patchify(img.Pixels)
		if err != nil {
			return nil, err
		}
		x = m.PatchProj.Forward(patches)
	default:
		return nil, errtypes.Precondition(op, "unsupported image input %T", image)
	}

	if x.Dim(0) != batch {
		return nil, errtypes.Shape(op, x.Shape(), "image batch %d does not match text batch %d", x.Dim(0), batch)
	}

	x = ml.Add(x, m.VisualPosEmb.Weight)

	var err error
	if x, err = m.VisualTransformer.Forward(x, nil); err != nil {
		return nil, err
	}
	return ml.L2Normalize(m.ToVisualLatent.Forward(ml.Mean(x, 1))), nil
}

func (m *CLIP) latents(op string, text [][]int32, image input.Image, mask [][]bool) (*ml.Array, *ml.Array, error) {
	t, err := m.encodeText(op, text, mask)
	if err != nil {
		return nil, nil, err
	}

	i, err := m.encodeImage(op, image, len(text))
	if err != nil {
		return nil, nil, err
	}
	return t, i, nil
}

// ============================================================================
// Bewertung
// ============================================================================

// Score gibt je Paar (text[i], image[i]) die skalierte Kosinus-Aehnlichkeit zurueck
func (m *CLIP) Score(text [][]int32, image input.Image, mask [][]bool) ([]float32, error) {
	t, i, err := m.latents("clip score", text, image, mask)
	if err != nil {
		return nil, err
	}

	scale := m.Scale()
	d := t.Dim(1)
	td, id := t.Data(), i.Data()
	scores := make([]float32, t.Dim(0))
	for n := range scores {
		var dot float32
		for k := range d {
			dot += td[n*d+k] * id[n*d+k]
		}
		scores[n] = dot * scale
	}
	return scores, nil
}

// Similarity gibt die Matrix [B, B] aller skalierten Aehnlichkeiten zurueck,
// Zeilen sind Texte, Spalten Bilder.
func (m *CLIP) Similarity(text [][]int32, image input.Image, mask [][]bool) (*ml.Array, error) {
	t, i, err := m.latents("clip similarity", text, image, mask)
	if err != nil {
		return nil, err
	}
	return ml.MulScalar(ml.MatmulT(t, i), m.Scale()), nil
}

// Loss gibt die Kreuzentropie der Aehnlichkeitsmatrix zurueck, Label von
// Zeile i ist Spalte i.
func (m *CLIP) Loss(text [][]int32, image input.Image, mask [][]bool) (float32, error) {
	sim, err := m.Similarity(text, image, mask)
	if err != nil {
		return 0, err
	}

	labels := make([]int32, sim.Dim(0))
	for i := range labels {
		labels[i] = int32(i)
	}
	return ml.CrossEntropy(sim, labels)
}

// MaskedMean mittelt x [B, L, D] ueber L. Mit mask werden nur sichtbare
// Positionen gezaehlt, Zeilen ohne sichtbare Position ergeben 0.
func MaskedMean(x *ml.Array, mask [][]bool) *ml.Array {
	if mask == nil {
		return ml.Mean(x, 1)
	}

	b, l, d := x.Dim(0), x.Dim(1), x.Dim(2)
	out := ml.Zeros(b, d)
	src, dst := x.Data(), out.Data()
	for n := range b {
		var count int
		row := dst[n*d : (n+1)*d]
		for p := range l {
			if !mask[n][p] {
				continue
			}
			count++
			for k, v := range src[(n*l+p)*d : (n*l+p+1)*d] {
				row[k] += v
			}
		}
		if count > 0 {
			for k := range row {
				row[k] /= float32(count)
			}
		}
	}
	return out
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
