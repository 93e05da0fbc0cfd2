package nn

import (
	"math"

	"github.com/ollama/dalle/ml"
)

type Conv2D struct {
	Weight *ml.Array `param:"weight"`
	Bias   *ml.Array `param:"bias"`

	Stride, Padding int
}

func NewConv2D(src *ml.Source, in, out, kernel, stride, padding int) *Conv2D {
	bound := 1 / math.Sqrt(float64(in*kernel*kernel))
	return &Conv2D{
		Weight:  src.Uniform(-bound, bound, out, in, kernel, kernel),
		Bias:    src.Uniform(-bound, bound, out),
		Stride:  stride,
		Padding: padding,
	}
}

func (m *Conv2D) Forward(t *ml.Array) *ml.Array {
	return ml.Conv2d(t, m.Weight, m.Bias, m.Stride, m.Padding)
}

type ConvTranspose2D struct {
	Weight *ml.Array `param:"weight"`
	Bias   *ml.Array `param:"bias"`

	Stride, Padding int
}

func NewConvTranspose2D(src *ml.Source, in, out, kernel, stride, padding int) *ConvTranspose2D {
	bound := 1 / math.Sqrt(float64(out*kernel*kernel))
	return &ConvTranspose2D{
		Weight:  src.Uniform(-bound, bound, in, out, kernel, kernel),
		Bias:    src.Uniform(-bound, bound, out),
		Stride:  stride,
		Padding: padding,
	}
}

func (m *ConvTranspose2D) Forward(t *ml.Array) *ml.Array {
	return ml.ConvTranspose2d(t, m.Weight, m.Bias, m.Stride, m.Padding)
}
