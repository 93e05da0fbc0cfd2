// MODUL: dvae
// ZWECK: Diskreter Autoencoder, der Bilder in Codebook-Indizes zerlegt und zurueck rekonstruiert
// INPUT: Bilder [B, C, H, W] im Bereich [0, 1] oder Index-Sequenzen [B][N]
// OUTPUT: Index-Sequenzen, rekonstruierte Bilder, Logits, Rekonstruktionsfehler
// NEBENEFFEKTE: Reconstruct zieht im Trainingsmodus Gumbel-Rauschen aus der Zufallsquelle
// ABHAENGIGKEITEN: ml, ml/nn, model, types/errtypes
// HINWEISE: Encoder: N x (Conv 4x4 s2 + ReLU) -> 1x1 Conv auf NumTokens Klassen.
//           Decoder: N x (ConvTranspose 4x4 s2 + ReLU) -> 1x1 Conv auf Channels.
//           Das Codebook kann von anderen Modellen per Pointer geteilt werden.

package dvae

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/ml/nn"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/types/errtypes"
)

// Architecture ist der Registry-Name des Modells
const Architecture = "dvae"

// Config enthaelt die strukturellen Parameter des Autoencoders
type Config struct {
	NumTokens   int     `json:"num_tokens"`
	Dim         int     `json:"codebook_dim"`
	HiddenDim   int     `json:"hidden_dim"`
	NumLayers   int     `json:"num_layers"`
	Channels    int     `json:"channels"`
	ImageSize   int     `json:"image_size"`
	Temperature float32 `json:"temperature,omitempty"`
	Straight    bool    `json:"straight_through,omitempty"`
}

// applyDefaults setzt Standardwerte fuer nicht gesetzte optionale Felder
func (c *Config) applyDefaults() {
	if c.Channels == 0 {
		c.Channels = 3
	}
	if c.Temperature == 0 {
		c.Temperature = 1
	}
}

// Validate prueft die Konfiguration
func (c Config) Validate() error {
	switch {
	case c.NumLayers < 1:
		return errtypes.Configuration(Architecture, "num_layers must be >= 1, got %d", c.NumLayers)
	case c.NumTokens <= 0:
		return errtypes.Configuration(Architecture, "num_tokens must be positive, got %d", c.NumTokens)
	case c.Dim <= 0:
		return errtypes.Configuration(Architecture, "codebook_dim must be positive, got %d", c.Dim)
	case c.HiddenDim <= 0:
		return errtypes.Configuration(Architecture, "hidden_dim must be positive, got %d", c.HiddenDim)
	case c.Channels <= 0:
		return errtypes.Configuration(Architecture, "channels must be positive, got %d", c.Channels)
	case c.Temperature <= 0:
		return errtypes.Configuration(Architecture, "temperature must be positive, got %v", c.Temperature)
	case c.NumLayers > 30 || c.ImageSize <= 0 || c.ImageSize%(1<<c.NumLayers) != 0:
		return errtypes.Configuration(Architecture, "image_size %d must be a positive multiple of 2^num_layers (%d layers)", c.ImageSize, c.NumLayers)
	}
	return nil
}

// GridSize gibt die Seitenlaenge des Token-Gitters zurueck
func (c Config) GridSize() int {
	return c.ImageSize >> c.NumLayers
}

// SeqLen gibt die Anzahl Tokens pro Bild zurueck
func (c Config) SeqLen() int {
	return c.GridSize() * c.GridSize()
}

// =============================================================================
// Modell
// =============================================================================

// DiscreteVAE ist der diskrete Bild-Tokenizer
type DiscreteVAE struct {
	Encoder    []*nn.Conv2D          `param:"encoder"`
	EncoderOut *nn.Conv2D            `param:"encoder_out"`
	Decoder    []*nn.ConvTranspose2D `param:"decoder"`
	DecoderOut *nn.Conv2D            `param:"decoder_out"`
	Codebook   *nn.Embedding         `param:"codebook"`

	config   Config
	src      *ml.Source
	training bool
}

// New erstellt einen zufaellig initialisierten Autoencoder
func New(c Config, src *ml.Source) (*DiscreteVAE, error) {
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}

	v := &DiscreteVAE{config: c, src: src}
	for i := range c.NumLayers {
		encIn, decIn := c.HiddenDim, c.HiddenDim
		if i == 0 {
			encIn, decIn = c.Channels, c.Dim
		}
		v.Encoder = append(v.Encoder, nn.NewConv2D(src, encIn, c.HiddenDim, 4, 2, 1))
		v.Decoder = append(v.Decoder, nn.NewConvTranspose2D(src, decIn, c.HiddenDim, 4, 2, 1))
	}
	v.EncoderOut = nn.NewConv2D(src, c.HiddenDim, c.NumTokens, 1, 1, 0)
	v.DecoderOut = nn.NewConv2D(src, c.HiddenDim, c.Channels, 1, 1, 0)
	v.Codebook = nn.NewEmbedding(src, c.NumTokens, c.Dim)

	slog.Debug("created discrete vae", "num_tokens", c.NumTokens, "dim", c.Dim, "layers", c.NumLayers, "seq_len", c.SeqLen())
	return v, nil
}

func (v *DiscreteVAE) Architecture() string { return Architecture }

func (v *DiscreteVAE) Config() any { return v.config }

// Options gibt die vollstaendige Konfiguration zurueck
func (v *DiscreteVAE) Options() Config { return v.config }

func (v *DiscreteVAE) SetTraining(training bool) { v.training = training }

func (v *DiscreteVAE) Training() bool { return v.training }

func (v *DiscreteVAE) checkImage(op string, img *ml.Array) error {
	if img == nil {
		return errtypes.Precondition(op, "image is required")
	}
	c := v.config
	if img.NDim() != 4 || img.Dim(0) < 1 || img.Dim(1) != c.Channels || img.Dim(2) != c.ImageSize || img.Dim(3) != c.ImageSize {
		return errtypes.Shape(op, img.Shape(), "expected [batch, %d, %d, %d]", c.Channels, c.ImageSize, c.ImageSize)
	}
	return nil
}

// Logits gibt die Klassen-Logits je Gitterposition zurueck: [B, NumTokens, h, w]
func (v *DiscreteVAE) Logits(img *ml.Array) (*ml.Array, error) {
	if err := v.checkImage("dvae logits", img); err != nil {
		return nil, err
	}

	x := img
	for _, conv := range v.Encoder {
		x = ml.ReLU(conv.Forward(x))
	}
	return v.EncoderOut.Forward(x), nil
}

// Encode gibt je Bild die row-major abgeflachten Argmax-Indizes zurueck.
// Encode laeuft immer im Auswertungsmodus.
func (v *DiscreteVAE) Encode(img *ml.Array) ([][]int32, error) {
	defer model.Eval(v)()

	logits, err := v.Logits(img)
	if err != nil {
		return nil, err
	}

	b := logits.Dim(0)
	flat := ml.Argmax(logits, 1)
	n := len(flat) / b
	ids := make([][]int32, b)
	for i := range ids {
		ids[i] = flat[i*n : (i+1)*n]
	}
	return ids, nil
}

// Decode schlaegt die Indizes im Codebook nach und rekonstruiert Bilder [B, C, H, W]
func (v *DiscreteVAE) Decode(ids [][]int32) (*ml.Array, error) {
	if len(ids) == 0 {
		return nil, errtypes.Precondition("dvae decode", "empty batch")
	}

	n := len(ids[0])
	for i, row := range ids {
		if len(row) != n {
			return nil, errtypes.Shape("dvae decode", []int{len(ids), n}, "row %d has length %d", i, len(row))
		}
	}

	side := int(math.Sqrt(float64(n)))
	if n == 0 || side*side != n {
		return nil, errtypes.Shape("dvae decode", []int{len(ids), n}, "sequence length %d is not a perfect square", n)
	}

	embeds, err := v.Codebook.Forward(ids)
	if err != nil {
		return nil, fmt.Errorf("dvae decode: %w", err)
	}

	x := ml.Transpose(embeds.Reshape(len(ids), side, side, v.config.Dim), 0, 3, 1, 2)
	return v.decode(x), nil
}

func (v *DiscreteVAE) decode(x *ml.Array) *ml.Array {
	for _, conv := range v.Decoder {
		x = ml.ReLU(conv.Forward(x))
	}
	return v.DecoderOut.Forward(x)
}

// Reconstruct rekonstruiert img ueber die Gumbel-Softmax-Relaxation.
// Gumbel-Rauschen wird nur im Trainingsmodus addiert.
func (v *DiscreteVAE) Reconstruct(img *ml.Array) (*ml.Array, error) {
	logits, err := v.Logits(img)
	if err != nil {
		return nil, err
	}

	// [B, K, h, w] -> [B, h, w, K]
	logits = ml.Transpose(logits, 0, 2, 3, 1)
	if v.training {
		logits = ml.Add(logits, v.src.Gumbel(logits.Shape()...))
	}

	soft := ml.Softmax(ml.MulScalar(logits, 1/v.config.Temperature))
	if v.config.Straight {
		soft = hard(soft)
	}

	b, h, w := soft.Dim(0), soft.Dim(1), soft.Dim(2)
	sampled := ml.Matmul(soft, v.Codebook.Weight).Reshape(b, h, w, v.config.Dim)
	return v.decode(ml.Transpose(sampled, 0, 3, 1, 2)), nil
}

// hard ersetzt jede Verteilung der letzten Achse durch den One-Hot-Vektor ihres Maximums
func hard(soft *ml.Array) *ml.Array {
	k := soft.Dim(-1)
	out := ml.Zeros(soft.Shape()...)
	for i, idx := range ml.Argmax(soft, -1) {
		out.Data()[i*k+int(idx)] = 1
	}
	return out
}

// Loss gibt den mittleren quadratischen Rekonstruktionsfehler zurueck
func (v *DiscreteVAE) Loss(img *ml.Array) (float32, error) {
	out, err := v.Reconstruct(img)
	if err != nil {
		return 0, err
	}
	return ml.MSE(img, out), nil
}

func init() {
	model.Register(Architecture, func(config []byte, src *ml.Source) (model.Model, error) {
		var c Config
		if err := json.Unmarshal(config, &c); err != nil {
			return nil, fmt.Errorf("%s: %w", Architecture, err)
		}

		v, err := New(c, src)
		if err != nil {
			return nil, err
		}
		return v, nil
	})
}
