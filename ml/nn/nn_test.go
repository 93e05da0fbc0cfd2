package nn

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ollama/dalle/ml"
)

func TestLinear(t *testing.T) {
	m := &Linear{
		Weight: ml.NewArray([]float32{1, 0, 0, 1, 1, 1}, 3, 2),
		Bias:   ml.NewArray([]float32{0, 0, 1}, 3),
	}

	got := m.Forward(ml.NewArray([]float32{2, 3}, 1, 2))
	if diff := cmp.Diff([]float32{2, 3, 6}, got.Data()); diff != "" {
		t.Errorf("Linear mismatch (-want +got):\n%s", diff)
	}

	l := NewLinear(ml.NewSource(1), 4, 8, false)
	if l.Bias != nil {
		t.Error("Bias sollte nil sein")
	}
	if diff := cmp.Diff([]int{8, 4}, l.Weight.Shape()); diff != "" {
		t.Errorf("Weight Shape mismatch (-want +got):\n%s", diff)
	}
}

func TestEmbedding(t *testing.T) {
	m := &Embedding{Weight: ml.NewArray([]float32{0, 0, 1, 1, 2, 2}, 3, 2)}

	got, err := m.Forward([][]int32{{1, 2}, {0, 0}})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{2, 2, 2}, got.Shape()); diff != "" {
		t.Errorf("Shape mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 1, 2, 2, 0, 0, 0, 0}, got.Data()); diff != "" {
		t.Errorf("Data mismatch (-want +got):\n%s", diff)
	}

	if _, err := m.Forward([][]int32{{3}}); !errors.Is(err, ml.ErrIndexOutOfRange) {
		t.Errorf("err = %v, erwartet ErrIndexOutOfRange", err)
	}
}

func TestConvShapes(t *testing.T) {
	src := ml.NewSource(1)
	x := ml.Zeros(1, 3, 8, 8)

	down := NewConv2D(src, 3, 4, 4, 2, 1).Forward(x)
	if diff := cmp.Diff([]int{1, 4, 4, 4}, down.Shape()); diff != "" {
		t.Errorf("Conv2D Shape mismatch (-want +got):\n%s", diff)
	}

	up := NewConvTranspose2D(src, 4, 3, 4, 2, 1).Forward(down)
	if diff := cmp.Diff([]int{1, 3, 8, 8}, up.Shape()); diff != "" {
		t.Errorf("ConvTranspose2D Shape mismatch (-want +got):\n%s", diff)
	}
}

func TestLayerNormIdentityParams(t *testing.T) {
	m := NewLayerNorm(2)
	got := m.Forward(ml.NewArray([]float32{1, 3}, 1, 2), 0)
	if diff := cmp.Diff([]float32{-1, 1}, got.Data()); diff != "" {
		t.Errorf("LayerNorm mismatch (-want +got):\n%s", diff)
	}
}
