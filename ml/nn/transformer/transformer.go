// Package transformer - Referenz-Implementierung einer Sequenz-Transformation
//
// Pre-Norm Transformer-Bloecke: LayerNorm -> Multi-Head-Attention -> Residual,
// LayerNorm -> FeedForward (GELU) -> Residual. Optional kausal.
// Dropout ist nur im Trainingsmodus aktiv.
package transformer

import (
	"fmt"
	"math"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/ml/nn"
	"github.com/ollama/dalle/types/errtypes"
)

// Options beschreibt die Struktur des Transformers.
type Options struct {
	Dim     int
	Depth   int
	Heads   int
	DimHead int
	FFMult  int
	Dropout float64
	Causal  bool
	Eps     float32
}

func (o *Options) applyDefaults() {
	if o.DimHead == 0 && o.Heads > 0 {
		o.DimHead = o.Dim / o.Heads
	}
	if o.FFMult == 0 {
		o.FFMult = 4
	}
	if o.Eps == 0 {
		o.Eps = 1e-5
	}
}

// Validate prueft die Optionen.
func (o Options) Validate() error {
	switch {
	case o.Dim <= 0:
		return errtypes.Configuration("transformer", "dim must be positive, got %d", o.Dim)
	case o.Depth <= 0:
		return errtypes.Configuration("transformer", "depth must be positive, got %d", o.Depth)
	case o.Heads <= 0:
		return errtypes.Configuration("transformer", "heads must be positive, got %d", o.Heads)
	case o.DimHead <= 0:
		return errtypes.Configuration("transformer", "dim %d is too small for %d heads", o.Dim, o.Heads)
	case o.Dropout < 0 || o.Dropout >= 1:
		return errtypes.Configuration("transformer", "dropout must be in [0, 1), got %v", o.Dropout)
	}
	return nil
}

type Attention struct {
	Query  *nn.Linear `param:"to_q"`
	Key    *nn.Linear `param:"to_k"`
	Value  *nn.Linear `param:"to_v"`
	Output *nn.Linear `param:"to_out"`
}

type FeedForward struct {
	Up   *nn.Linear `param:"up"`
	Down *nn.Linear `param:"down"`
}

type Layer struct {
	AttentionNorm *nn.LayerNorm `param:"attn_norm"`
	Attention     *Attention    `param:"attn"`
	FFNNorm       *nn.LayerNorm `param:"ffn_norm"`
	FFN           *FeedForward  `param:"ffn"`
}

type Transformer struct {
	Layers []*Layer `param:"layers"`

	opts     Options
	src      *ml.Source
	training bool
}

// New erstellt einen Transformer mit zufaellig initialisierten Gewichten.
func New(opts Options, src *ml.Source) (*Transformer, error) {
	opts.applyDefaults()
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	inner := opts.Heads * opts.DimHead
	t := &Transformer{opts: opts, src: src, Layers: make([]*Layer, opts.Depth)}
	for i := range t.Layers {
		t.Layers[i] = &Layer{
			AttentionNorm: nn.NewLayerNorm(opts.Dim),
			Attention: &Attention{
				Query:  nn.NewLinear(src, opts.Dim, inner, false),
				Key:    nn.NewLinear(src, opts.Dim, inner, false),
				Value:  nn.NewLinear(src, opts.Dim, inner, false),
				Output: nn.NewLinear(src, inner, opts.Dim, true),
			},
			FFNNorm: nn.NewLayerNorm(opts.Dim),
			FFN: &FeedForward{
				Up:   nn.NewLinear(src, opts.Dim, opts.Dim*opts.FFMult, true),
				Down: nn.NewLinear(src, opts.Dim*opts.FFMult, opts.Dim, true),
			},
		}
	}
	return t, nil
}

func (t *Transformer) Options() Options { return t.opts }

func (t *Transformer) SetTraining(training bool) { t.training = training }

func (t *Transformer) Training() bool { return t.training }

// Forward wendet alle Bloecke auf x [B, L, D] an.
func (t *Transformer) Forward(x *ml.Array, mask [][]bool) (*ml.Array, error) {
	if x.NDim() != 3 || x.Dim(2) != t.opts.Dim {
		return nil, errtypes.Shape("transformer", x.Shape(), "expected [batch, length, %d]", t.opts.Dim)
	}

	b, l := x.Dim(0), x.Dim(1)
	if mask != nil {
		if len(mask) != b {
			return nil, errtypes.Shape("transformer", x.Shape(), "mask has %d rows for batch %d", len(mask), b)
		}
		for i, row := range mask {
			if len(row) != l {
				return nil, errtypes.Shape("transformer", x.Shape(), "mask row %d has length %d, want %d", i, len(row), l)
			}
		}
	}

	bias := t.attentionBias(b, l, mask)
	for _, layer := range t.Layers {
		h := layer.AttentionNorm.Forward(x, t.opts.Eps)
		x = ml.Add(x, t.dropout(layer.Attention.Forward(h, bias, t)))

		h = layer.FFNNorm.Forward(x, t.opts.Eps)
		x = ml.Add(x, t.dropout(layer.FFN.Forward(h, t)))
	}
	return x, nil
}

func (t *Transformer) dropout(x *ml.Array) *ml.Array {
	if !t.training || t.opts.Dropout == 0 {
		return x
	}
	return t.src.Dropout(x, t.opts.Dropout)
}

// attentionBias baut den additiven Bias [B, L, L]: 0 fuer erlaubte,
// MaxNeg fuer maskierte oder (kausal) zukuenftige Schluessel-Positionen.
func (t *Transformer) attentionBias(b, l int, mask [][]bool) *ml.Array {
	if mask == nil && !t.opts.Causal {
		return nil
	}

	bias := ml.Zeros(b, l, l)
	data := bias.Data()
	for n := range b {
		for i := range l {
			for j := range l {
				if (t.opts.Causal && j > i) || (mask != nil && !mask[n][j]) {
					data[(n*l+i)*l+j] = ml.MaxNeg
				}
			}
		}
	}
	return bias
}

func (a *Attention) Forward(x, bias *ml.Array, t *Transformer) *ml.Array {
	b, l := x.Dim(0), x.Dim(1)
	heads, dimHead := t.opts.Heads, t.opts.DimHead

	split := func(y *ml.Array) *ml.Array {
		y = y.Reshape(b, l, heads, dimHead)
		return ml.Transpose(y, 0, 2, 1, 3).Reshape(b*heads, l, dimHead)
	}

	q := split(a.Query.Forward(x))
	k := split(a.Key.Forward(x))
	v := split(a.Value.Forward(x))

	scores := ml.MulScalar(ml.BatchMatmul(q, k, true), float32(1/math.Sqrt(float64(dimHead))))
	if bias != nil {
		scores = scores.Reshape(b, heads, l, l)
		data, bd := scores.Data(), bias.Data()
		for n := range b {
			for h := range heads {
				off := (n*heads + h) * l * l
				for i, m := range bd[n*l*l : (n+1)*l*l] {
					if m != 0 {
						data[off+i] = m
					}
				}
			}
		}
		scores = scores.Reshape(b*heads, l, l)
	}

	attn := t.dropout(ml.Softmax(scores))
	out := ml.BatchMatmul(attn, v, false).Reshape(b, heads, l, dimHead)
	out = ml.Transpose(out, 0, 2, 1, 3).Reshape(b, l, heads*dimHead)
	return a.Output.Forward(out)
}

func (f *FeedForward) Forward(x *ml.Array, t *Transformer) *ml.Array {
	return f.Down.Forward(t.dropout(ml.GELU(f.Up.Forward(x))))
}

func (t *Transformer) String() string {
	return fmt.Sprintf("Transformer(dim=%d, depth=%d, heads=%d, causal=%v)", t.opts.Dim, t.opts.Depth, t.opts.Heads, t.opts.Causal)
}
