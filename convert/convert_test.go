package convert

import (
	"encoding/json"
	"strconv"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/nlpodyssey/gopickle/pytorch"
	"github.com/nlpodyssey/gopickle/types"

	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/models/dalle"
	"github.com/ollama/dalle/model/models/dvae"
)

func TestRename(t *testing.T) {
	r := renamer{numLayers: 2}
	cases := map[string]string{
		"encoder.0.weight":     "encoder.0.weight",
		"encoder.2.bias":       "encoder.1.bias",
		"encoder.4.weight":     "encoder_out.weight",
		"decoder.4.bias":       "decoder_out.bias",
		"vae.decoder.2.weight": "vae.decoder.1.weight",
		"codebook.weight":      "codebook.weight",
		"to_logits.1.weight":   "to_logits.1.weight",
		"encoder.6.weight":     "encoder.6.weight",
	}

	for in, want := range cases {
		if got := r.rename(in); got != want {
			t.Errorf("rename(%q) = %q, erwartet %q", in, got, want)
		}
	}
}

func TestTensorArray(t *testing.T) {
	storage := &pytorch.FloatStorage{Data: []float32{9, 1, 2, 3, 4, 5, 6}}

	cases := []struct {
		name   string
		tensor *pytorch.Tensor
		shape  []int
		want   []float32
	}{
		{
			name:   "contiguous",
			tensor: &pytorch.Tensor{Source: storage, StorageOffset: 1, Size: []int{2, 3}, Stride: []int{3, 1}},
			shape:  []int{2, 3},
			want:   []float32{1, 2, 3, 4, 5, 6},
		},
		{
			name:   "transposed",
			tensor: &pytorch.Tensor{Source: storage, StorageOffset: 1, Size: []int{3, 2}, Stride: []int{1, 3}},
			shape:  []int{3, 2},
			want:   []float32{1, 4, 2, 5, 3, 6},
		},
		{
			name:   "scalar",
			tensor: &pytorch.Tensor{Source: storage, StorageOffset: 0},
			shape:  []int{1},
			want:   []float32{9},
		},
		{
			name:   "scalar offset",
			tensor: &pytorch.Tensor{Source: storage, StorageOffset: 6, Size: []int{}, Stride: []int{}},
			shape:  []int{1},
			want:   []float32{6},
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			a, err := tensorArray(tt.tensor)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.shape, a.Shape()); diff != "" {
				t.Errorf("Shape mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.want, a.Data()); diff != "" {
				t.Errorf("Daten (-want +got):\n%s", diff)
			}
		})
	}

	if _, err := tensorArray(&pytorch.Tensor{Source: storage, StorageOffset: 5, Size: []int{4}, Stride: []int{1}}); err == nil {
		t.Error("Erwartet Fehler ausserhalb des Speichers")
	}
}

func TestDictArrays(t *testing.T) {
	dict := types.NewDict()
	dict.Set("a.weight", &pytorch.Tensor{Source: &pytorch.DoubleStorage{Data: []float64{1, 2}}, Size: []int{2}, Stride: []int{1}})
	dict.Set("version", 3)
	dict.Set("b.bias", &pytorch.Tensor{Source: &pytorch.HalfStorage{Data: []float32{0.5}}, Size: []int{1}, Stride: []int{1}})

	arrays, err := dictArrays(dict)
	if err != nil {
		t.Fatal(err)
	}

	var names []string
	for _, na := range arrays {
		names = append(names, na.Name)
	}
	if diff := cmp.Diff([]string{"a.weight", "b.bias"}, names); diff != "" {
		t.Errorf("Namen (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{1, 2}, arrays[0].Array.Data()); diff != "" {
		t.Errorf("Daten (-want +got):\n%s", diff)
	}
}

// torchName bildet einen Parameter-Namen auf den Checkpoint-Namen ab
func torchName(name string, numLayers int) string {
	for _, block := range []string{"encoder", "decoder"} {
		if rest, ok := strings.CutPrefix(name, block+"_out."); ok {
			return block + "." + strconv.Itoa(2*numLayers) + "." + rest
		}
		if rest, ok := strings.CutPrefix(name, block+"."); ok {
			i, suffix, _ := strings.Cut(rest, ".")
			n, _ := strconv.Atoi(i)
			return block + "." + strconv.Itoa(2*n) + "." + suffix
		}
	}
	return name
}

func TestFromArraysDVAE(t *testing.T) {
	c := dvae.Config{NumTokens: 6, Dim: 4, HiddenDim: 3, NumLayers: 2, ImageSize: 8}
	src, err := dvae.New(c, ml.NewSource(5))
	if err != nil {
		t.Fatal(err)
	}

	var arrays []ml.NamedArray
	for _, p := range model.Parameters(src) {
		arrays = append(arrays, ml.NamedArray{Name: torchName(p.Name, c.NumLayers), Array: p.Array})
	}
	arrays = append(arrays, ml.NamedArray{Name: "extra.weight", Array: ml.Zeros(1)})

	config, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	m, report, err := FromArrays(arrays, dvae.Architecture, config)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Missing) != 0 {
		t.Errorf("Missing = %v", report.Missing)
	}
	if diff := cmp.Diff([]string{"extra.weight"}, report.Unused); diff != "" {
		t.Errorf("Unused (-want +got):\n%s", diff)
	}

	want, got := model.Parameters(src), model.Parameters(m)
	for i := range want {
		if diff := cmp.Diff(want[i].Array.Data(), got[i].Array.Data()); diff != "" {
			t.Errorf("%s (-want +got):\n%s", want[i].Name, diff)
		}
	}
}

func TestFromArraysDALLEPartial(t *testing.T) {
	c := dalle.Config{Dim: 4, NumTextTokens: 5, NumImageTokens: 3, TextSeqLen: 2, ImageSeqLen: 4, Depth: 1, Heads: 1}
	config, err := json.Marshal(c)
	if err != nil {
		t.Fatal(err)
	}

	norm := ml.Full(2, 4)
	arrays := []ml.NamedArray{
		{Name: "text_emb.weight", Array: ml.Ones(5, 4)},
		{Name: "to_logits.0.weight", Array: norm},
	}

	m, report, err := FromArrays(arrays, dalle.Architecture, config)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"text_emb.weight", "to_logits.0.weight"}, report.Loaded); diff != "" {
		t.Errorf("Loaded (-want +got):\n%s", diff)
	}
	if len(report.Unused) != 0 {
		t.Errorf("Unused = %v", report.Unused)
	}
	if len(report.Missing) == 0 {
		t.Error("Erwartet fehlende Parameter")
	}

	d := m.(*dalle.DALLE)
	if diff := cmp.Diff(norm.Data(), d.Norm.Weight.Data()); diff != "" {
		t.Errorf("norm (-want +got):\n%s", diff)
	}
}
