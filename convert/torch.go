// torch.go - Lesen von PyTorch-Checkpoints
//
// Dieses Modul enthaelt:
// - readTorch: Laedt ein pickled state_dict ueber gopickle
// - tensorArray: Wandelt einen Torch-Tensor (mit Strides) in ein ml.Array um
package convert

import (
	"fmt"
	"log/slog"

	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/ollama/dalle/ml"
)

// readTorch liest die Tensoren eines state_dict in Dateireihenfolge.
// Nicht-Tensor-Eintraege werden uebersprungen.
func readTorch(path string) ([]ml.NamedArray, error) {
	pt, err := pytorch.Load(path)
	if err != nil {
		return nil, fmt.Errorf("unpickle %s: %w", path, err)
	}

	dict, ok := pt.(*types.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: expected a state dict, got %T", path, pt)
	}
	return dictArrays(dict)
}

func dictArrays(dict *types.Dict) ([]ml.NamedArray, error) {
	var arrays []ml.NamedArray
	for _, k := range dict.Keys() {
		name, ok := k.(string)
		if !ok {
			continue
		}

		v := dict.MustGet(k)
		t, ok := v.(*pytorch.Tensor)
		if !ok {
			slog.Debug("skipping non-tensor entry", "name", name, "type", fmt.Sprintf("%T", v))
			continue
		}

		a, err := tensorArray(t)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		arrays = append(arrays, ml.NamedArray{Name: name, Array: a})
	}
	return arrays, nil
}

func storageData(s pytorch.StorageInterface) ([]float32, error) {
	switch s := s.(type) {
	case *pytorch.FloatStorage:
		return s.Data, nil
	case *pytorch.HalfStorage:
		return s.Data, nil
	case *pytorch.BFloat16Storage:
		return s.Data, nil
	case *pytorch.DoubleStorage:
		f32s := make([]float32, len(s.Data))
		for i, v := range s.Data {
			f32s[i] = float32(v)
		}
		return f32s, nil
	default:
		return nil, fmt.Errorf("unsupported storage type %T", s)
	}
}

// tensorArray kopiert die Elemente von t in row-major Reihenfolge
func tensorArray(t *pytorch.Tensor) (*ml.Array, error) {
	data, err := storageData(t.Source)
	if err != nil {
		return nil, err
	}

	shape := t.Size
	if len(shape) == 0 {
		shape = []int{1}
	}

	n := 1
	for _, d := range shape {
		n *= d
	}

	strides := t.Stride
	if len(strides) != len(shape) {
		strides = make([]int, len(shape))
		s := 1
		for i := len(shape) - 1; i >= 0; i-- {
			strides[i] = s
			s *= shape[i]
		}
	}

	out := make([]float32, n)
	idx := make([]int, len(shape))
	for i := range out {
		off := t.StorageOffset
		for d, x := range idx {
			off += x * strides[d]
		}
		if off < 0 || off >= len(data) {
			return nil, fmt.Errorf("element %d outside storage of %d elements", i, len(data))
		}
		out[i] = data[off]

		for d := len(idx) - 1; d >= 0; d-- {
			idx[d]++
			if idx[d] < shape[d] {
				break
			}
			idx[d] = 0
		}
	}
	return ml.NewArray(out, shape...), nil
}
