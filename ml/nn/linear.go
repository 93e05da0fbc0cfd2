package nn

import (
	"math"

	"github.com/ollama/dalle/ml"
)

type Linear struct {
	Weight *ml.Array `param:"weight"`
	Bias   *ml.Array `param:"bias"`
}

// NewLinear initialisiert wie torch.nn.Linear: U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(src *ml.Source, in, out int, bias bool) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	m := &Linear{Weight: src.Uniform(-bound, bound, out, in)}
	if bias {
		m.Bias = src.Uniform(-bound, bound, out)
	}
	return m
}

func (m *Linear) Forward(t *ml.Array) *ml.Array {
	t = ml.MatmulT(t, m.Weight)
	if m.Bias != nil {
		t = ml.Add(t, m.Bias)
	}

	return t
}
