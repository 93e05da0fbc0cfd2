package dalle

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/input"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/types/errtypes"
)

var testVAEConfig = dvae.Config{
	NumTokens: 10,
	Dim:       8,
	HiddenDim: 4,
	NumLayers: 1,
	ImageSize: 4,
}

var testConfig = Config{
	Dim:           8,
	NumTextTokens: 10,
	TextSeqLen:    4,
	Depth:         1,
	Heads:         2,
}

func newTestModel(t *testing.T) *DALLE {
	t.Helper()
	src := ml.NewSource(1)
	vae, err := dvae.New(testVAEConfig, src)
	if err != nil {
		t.Fatal(err)
	}

	m, err := New(testConfig, src, WithVAE(vae))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewDefaultsFromVAE(t *testing.T) {
	m := newTestModel(t)
	c := m.Options()
	if c.NumImageTokens != 10 || c.ImageSeqLen != 4 {
		t.Errorf("NumImageTokens = %d, ImageSeqLen = %d, erwartet 10 und 4", c.NumImageTokens, c.ImageSeqLen)
	}
	if c.TotalTokens() != 21 || c.EOS() != 20 {
		t.Errorf("TotalTokens = %d, EOS = %d", c.TotalTokens(), c.EOS())
	}
}

func TestNewInvalidConfig(t *testing.T) {
	vaeConfig := testVAEConfig
	cases := map[string]Config{
		"zero dim":         {NumTextTokens: 10, NumImageTokens: 10, TextSeqLen: 4, ImageSeqLen: 4, Depth: 1, Heads: 1},
		"no text tokens":   {Dim: 8, NumImageTokens: 10, TextSeqLen: 4, ImageSeqLen: 4, Depth: 1, Heads: 1},
		"no image seq":     {Dim: 8, NumTextTokens: 10, NumImageTokens: 10, TextSeqLen: 4, Depth: 1, Heads: 1},
		"vae dim mismatch": {Dim: 16, NumTextTokens: 10, TextSeqLen: 4, Depth: 1, Heads: 1, VAE: &vaeConfig},
		"vae tokens":       {Dim: 8, NumTextTokens: 10, NumImageTokens: 12, TextSeqLen: 4, Depth: 1, Heads: 1, VAE: &vaeConfig},
		"vae seq len":      {Dim: 8, NumTextTokens: 10, TextSeqLen: 4, ImageSeqLen: 9, Depth: 1, Heads: 1, VAE: &vaeConfig},
		"no depth":         {Dim: 8, NumTextTokens: 10, NumImageTokens: 10, TextSeqLen: 4, ImageSeqLen: 4, Heads: 1},
	}

	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(c, ml.NewSource(1)); !errors.Is(err, errtypes.ErrConfiguration) {
				t.Errorf("err = %v, erwartet ErrConfiguration", err)
			}
		})
	}
}

func TestSharedCodebook(t *testing.T) {
	m := newTestModel(t)
	if m.ImageEmb != m.VAE.Codebook {
		t.Fatal("Bild-Einbettung ist nicht das VAE-Codebook")
	}

	var names []string
	for _, p := range model.Parameters(m) {
		names = append(names, p.Name)
		if p.Name == "vae.codebook.weight" {
			t.Error("geteiltes Codebook doppelt gefuehrt")
		}
	}
	if len(names) == 0 || names[1] != "image_emb.weight" {
		t.Errorf("names = %v", names)
	}
}

func TestLogitsMask(t *testing.T) {
	c := testConfig
	c.NumImageTokens, c.ImageSeqLen = 10, 4
	mask := NewLogitsMask(c)
	eos := int(c.EOS())

	if diff := cmp.Diff([]int{eos}, mask.Allowed(mask.SeqLen()-1)); diff != "" {
		t.Errorf("letzte Position (-want +got):\n%s", diff)
	}

	for p := range mask.SeqLen() - 1 {
		for id := range c.TotalTokens() {
			text := id < c.NumTextTokens
			image := id >= c.NumTextTokens && id < eos
			want := text
			if p >= c.TextSeqLen-1 {
				want = image
			}
			if got := !mask.Disallowed(p, id); got != want {
				t.Errorf("Position %d, Id %d: erlaubt = %v, erwartet %v", p, id, got, want)
			}
		}
	}
}

func TestLogitsMaskIdempotent(t *testing.T) {
	m := newTestModel(t)
	logits := ml.NewSource(3).Normal(1, 2, 6, 21)

	if err := m.LogitsMask().Apply(logits); err != nil {
		t.Fatal(err)
	}
	once := logits.Clone()
	if err := m.LogitsMask().Apply(logits); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(once.Data(), logits.Data()); diff != "" {
		t.Errorf("zweites Apply veraendert Logits (-once +twice):\n%s", diff)
	}

	if err := m.LogitsMask().Apply(ml.Zeros(1, 9, 21)); !errors.Is(err, errtypes.ErrShape) {
		t.Errorf("err = %v, erwartet ErrShape", err)
	}
}

func TestForward(t *testing.T) {
	m := newTestModel(t)
	text := [][]int32{{1, 2, 3, 4}, {5, 6, 7, 8}}

	cases := []struct {
		name  string
		image input.Image
		want  []int
	}{
		{"text only", nil, []int{2, 4, 21}},
		{"empty tokens", input.ImageTokens{}, []int{2, 4, 21}},
		{"tokens", input.ImageTokens{IDs: [][]int32{{0, 1}, {2, 3}}}, []int{2, 6, 21}},
		{"raw", input.RawImage{Pixels: ml.NewSource(2).Uniform(0, 1, 2, 3, 4, 4)}, []int{2, 8, 21}},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			logits, err := m.Forward(text, tt.image, nil)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.want, logits.Shape()); diff != "" {
				t.Errorf("Shape mismatch (-want +got):\n%s", diff)
			}

			// Position 0 darf nur Text-Ids vorhersagen
			if got := logits.At(0, 0, 15); got != ml.MaxNeg {
				t.Errorf("Logit fuer Bild-Id an Position 0 = %v", got)
			}
		})
	}
}

func TestForwardErrors(t *testing.T) {
	m := newTestModel(t)
	noVAE, err := New(Config{Dim: 8, NumTextTokens: 10, NumImageTokens: 10, TextSeqLen: 4, ImageSeqLen: 4, Depth: 1, Heads: 2}, ml.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}

	raw := input.RawImage{Pixels: ml.Zeros(1, 3, 4, 4)}
	cases := []struct {
		name  string
		m     *DALLE
		text  [][]int32
		image input.Image
		mask  [][]bool
		want  error
	}{
		{"empty batch", m, nil, nil, nil, errtypes.ErrPrecondition},
		{"text too long", m, [][]int32{{1, 2, 3, 4, 5}}, nil, nil, errtypes.ErrShape},
		{"ragged text", m, [][]int32{{1, 2}, {1}}, nil, nil, errtypes.ErrShape},
		{"mask length", m, [][]int32{{1, 2}}, nil, [][]bool{{true}}, errtypes.ErrShape},
		{"image too long", m, [][]int32{{1}}, input.ImageTokens{IDs: [][]int32{{1, 2, 3, 4, 5}}}, nil, errtypes.ErrShape},
		{"image batch", m, [][]int32{{1}}, input.ImageTokens{IDs: [][]int32{{1}, {2}}}, nil, errtypes.ErrShape},
		{"short text with image", m, [][]int32{{1, 2}}, input.ImageTokens{IDs: [][]int32{{1, 2}}}, nil, errtypes.ErrPrecondition},
		{"short text with raw image", m, [][]int32{{1}}, raw, nil, errtypes.ErrPrecondition},
		{"raw without vae", noVAE, [][]int32{{1}}, raw, nil, errtypes.ErrPrecondition},
		{"text id out of range", m, [][]int32{{10}}, nil, nil, ml.ErrIndexOutOfRange},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.m.Forward(tt.text, tt.image, tt.mask); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, erwartet %v", err, tt.want)
			}
		})
	}
}

func TestLoss(t *testing.T) {
	m := newTestModel(t)
	text := [][]int32{{1, 2, 3, 4}, {5, 6, 7, 8}}
	image := input.ImageTokens{IDs: [][]int32{{0, 1, 2, 3}, {9, 8, 7, 6}}}

	loss, err := m.Loss(text, image, nil)
	if err != nil {
		t.Fatal(err)
	}
	if loss < 0 || math.IsNaN(float64(loss)) || math.IsInf(float64(loss), 0) {
		t.Errorf("loss = %v, erwartet endlich und >= 0", loss)
	}

	raw, err := m.Loss(text[:1], input.RawImage{Pixels: ml.NewSource(2).Uniform(0, 1, 1, 3, 4, 4)}, [][]bool{{true, true, true, false}})
	if err != nil {
		t.Fatal(err)
	}
	if raw < 0 {
		t.Errorf("loss = %v, erwartet >= 0", raw)
	}
}

func TestLossErrors(t *testing.T) {
	m := newTestModel(t)
	text := [][]int32{{1, 2, 3, 4}}

	cases := map[string]struct {
		text  [][]int32
		image input.Image
	}{
		"no image":    {text, nil},
		"short text":  {[][]int32{{1, 2}}, input.ImageTokens{IDs: [][]int32{{0, 1, 2, 3}}}},
		"short image": {text, input.ImageTokens{IDs: [][]int32{{0, 1}}}},
		"empty image": {text, input.ImageTokens{}},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := m.Loss(tt.text, tt.image, nil); !errors.Is(err, errtypes.ErrPrecondition) {
				t.Errorf("err = %v, erwartet ErrPrecondition", err)
			}
		})
	}
}

type fakeScorer struct {
	text [][]int32
	mask [][]bool
}

func (s *fakeScorer) Score(text [][]int32, image input.Image, mask [][]bool) ([]float32, error) {
	s.text, s.mask = text, mask
	return make([]float32, len(text)), nil
}

func TestGenerate(t *testing.T) {
	m := newTestModel(t)
	m.SetTraining(true)

	seed := uint64(7)
	opts := DefaultGenerateOptions()
	opts.Seed = &seed

	var steps []int
	opts.Progress = func(step, total int) {
		if total != 4 {
			t.Errorf("total = %d, erwartet 4", total)
		}
		steps = append(steps, step)
	}

	g, err := m.Generate(context.Background(), [][]int32{{1, 2, 3, 4}}, opts)
	if err != nil {
		t.Fatal(err)
	}

	if len(g.Tokens) != 1 || len(g.Tokens[0]) != 8 {
		t.Fatalf("Tokens = %v, erwartet Laenge 8", g.Tokens)
	}
	if diff := cmp.Diff([]int32{1, 2, 3, 4}, g.Tokens[0][:4]); diff != "" {
		t.Errorf("Prompt veraendert (-want +got):\n%s", diff)
	}
	for _, id := range g.ImageTokens[0] {
		if id < 0 || id >= 10 {
			t.Errorf("Bild-Id %d nicht in [0, 10)", id)
		}
	}
	if diff := cmp.Diff([]int{1, 3, 4, 4}, g.Images.Shape()); diff != "" {
		t.Errorf("Bild-Shape (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{1, 2, 3, 4}, steps); diff != "" {
		t.Errorf("Progress (-want +got):\n%s", diff)
	}
	if g.Scores != nil {
		t.Errorf("Scores = %v ohne Scorer", g.Scores)
	}
	if !m.Training() {
		t.Error("Trainingsmodus nicht wiederhergestellt")
	}
}

func TestGenerateDeterministic(t *testing.T) {
	m := newTestModel(t)
	seed := uint64(11)
	opts := DefaultGenerateOptions()
	opts.Seed = &seed

	a, err := m.Generate(context.Background(), [][]int32{{3}, {4}}, opts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := m.Generate(context.Background(), [][]int32{{3}, {4}}, opts)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff(a.Tokens, b.Tokens); diff != "" {
		t.Errorf("gleicher Seed, verschiedene Tokens (-a +b):\n%s", diff)
	}
	for _, row := range a.Tokens {
		for _, id := range row[1:4] {
			if id < 0 || id >= 10 {
				t.Errorf("Text-Id %d nicht in [0, 10)", id)
			}
		}
	}
}

func TestGenerateMaskAndScorer(t *testing.T) {
	m := newTestModel(t)
	scorer := &fakeScorer{}

	opts := DefaultGenerateOptions()
	opts.CLIP = scorer
	opts.Mask = [][]bool{{true, false}}

	g, err := m.Generate(context.Background(), [][]int32{{1, 2}}, opts)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([][]bool{{true, false, true, true}}, scorer.mask); diff != "" {
		t.Errorf("Maske (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([][]bool{{true, false}}, opts.Mask); diff != "" {
		t.Errorf("Eingabe-Maske veraendert (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(g.Tokens[0][:4], scorer.text[0]); diff != "" {
		t.Errorf("Score-Text (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float32{0}, g.Scores); diff != "" {
		t.Errorf("Scores (-want +got):\n%s", diff)
	}
}

func TestGenerateErrors(t *testing.T) {
	m := newTestModel(t)
	noVAE, err := New(Config{Dim: 8, NumTextTokens: 10, NumImageTokens: 10, TextSeqLen: 4, ImageSeqLen: 4, Depth: 1, Heads: 2}, ml.NewSource(1))
	if err != nil {
		t.Fatal(err)
	}

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	defaults := DefaultGenerateOptions()
	hot := defaults
	hot.Temperature = 0

	cases := []struct {
		name string
		m    *DALLE
		ctx  context.Context
		text [][]int32
		opts GenerateOptions
		want error
	}{
		{"no vae", noVAE, context.Background(), [][]int32{{1}}, defaults, errtypes.ErrPrecondition},
		{"empty prompt", m, context.Background(), [][]int32{{}}, defaults, errtypes.ErrShape},
		{"long prompt", m, context.Background(), [][]int32{{1, 2, 3, 4, 5}}, defaults, errtypes.ErrShape},
		{"zero temperature", m, context.Background(), [][]int32{{1}}, hot, errtypes.ErrPrecondition},
		{"cancelled", m, cancelled, [][]int32{{1}}, defaults, context.Canceled},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.m.Generate(tt.ctx, tt.text, tt.opts); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, erwartet %v", err, tt.want)
			}
			if tt.m.Training() {
				t.Error("Modus nach Fehler nicht wiederhergestellt")
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	m := newTestModel(t)
	path := t.TempDir() + "/dalle.safetensors"
	if err := model.Save(path, m, ml.DTypeF32); err != nil {
		t.Fatal(err)
	}

	loaded, err := model.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	d, ok := loaded.(*DALLE)
	if !ok {
		t.Fatalf("loaded = %T", loaded)
	}
	if d.ImageEmb != d.VAE.Codebook {
		t.Error("geteiltes Codebook nach Load getrennt")
	}

	text := [][]int32{{1, 2, 3}}
	want, err := m.Forward(text, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := d.Forward(text, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(want.Data(), got.Data()); diff != "" {
		t.Errorf("Logits nach Load (-want +got):\n%s", diff)
	}
}
