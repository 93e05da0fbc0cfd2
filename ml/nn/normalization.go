package nn

import (
	"github.com/ollama/dalle/ml"
)

type LayerNorm struct {
	Weight *ml.Array `param:"weight"`
	Bias   *ml.Array `param:"bias"`
}

func NewLayerNorm(dim int) *LayerNorm {
	return &LayerNorm{Weight: ml.Ones(dim), Bias: ml.Zeros(dim)}
}

func (m *LayerNorm) Forward(t *ml.Array, eps float32) *ml.Array {
	return ml.LayerNorm(t, m.Weight, m.Bias, eps)
}
