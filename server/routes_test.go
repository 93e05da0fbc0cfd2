package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/ollama/dalle/api"
	"github.com/ollama/dalle/imageproc"
	"github.com/ollama/dalle/ml"
	"github.com/ollama/dalle/model"
	"github.com/ollama/dalle/model/models/clip"
	"github.com/ollama/dalle/model/models/dalle"
	"github.com/ollama/dalle/model/models/dvae"
	"github.com/ollama/dalle/version"
)

var testVAEConfig = dvae.Config{NumTokens: 10, Dim: 8, HiddenDim: 4, NumLayers: 1, ImageSize: 4}

// setupModels legt ein dalle- und ein clip-Modell im Model-Verzeichnis an
func setupModels(t *testing.T) {
	t.Helper()
	t.Setenv("DALLE_MODELS", t.TempDir())

	src := ml.NewSource(1)
	vae, err := dvae.New(testVAEConfig, src)
	if err != nil {
		t.Fatal(err)
	}

	d, err := dalle.New(dalle.Config{Dim: 8, NumTextTokens: 10, TextSeqLen: 4, Depth: 1, Heads: 2}, src, dalle.WithVAE(vae))
	if err != nil {
		t.Fatal(err)
	}

	c, err := clip.New(clip.Config{
		DimText:        8,
		DimImage:       8,
		DimLatent:      4,
		NumTextTokens:  10,
		TextEncDepth:   1,
		TextSeqLen:     4,
		TextHeads:      2,
		VisualEncDepth: 1,
		VisualHeads:    2,
	}, src, clip.WithVAE(vae))
	if err != nil {
		t.Fatal(err)
	}

	for name, m := range map[string]model.Model{"dalle": d, "clip": c, "vae": vae} {
		_, path, err := ModelPath(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := model.Save(path, m, ml.DTypeF32); err != nil {
			t.Fatal(err)
		}
	}
}

func testServer(t *testing.T) (*Server, http.Handler) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{sched: InitScheduler()}
	h, err := s.GenerateRoutes()
	if err != nil {
		t.Fatal(err)
	}
	return s, h
}

// responseRecorder erfuellt http.CloseNotifier, das gin fuer c.Stream braucht
type responseRecorder struct {
	*httptest.ResponseRecorder
	http.CloseNotifier
}

func (r *responseRecorder) CloseNotify() <-chan bool {
	return make(chan bool)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var r *bytes.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		r = bytes.NewReader(bts)
	} else {
		r = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := &responseRecorder{ResponseRecorder: httptest.NewRecorder()}
	h.ServeHTTP(w, req)
	return w.ResponseRecorder
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func TestGeneralRoutes(t *testing.T) {
	_, h := testServer(t)

	w := do(t, h, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || w.Body.String() != "dalle is running" {
		t.Errorf("GET / = %d %q", w.Code, w.Body.String())
	}

	w = do(t, h, http.MethodGet, "/api/version", nil)
	if got := decode[map[string]string](t, w)["version"]; got != version.Version {
		t.Errorf("version = %q, erwartet %q", got, version.Version)
	}

	if _, err := uuid.Parse(w.Header().Get("X-Request-Id")); err != nil {
		t.Errorf("ungueltige request id %q: %v", w.Header().Get("X-Request-Id"), err)
	}
}

func TestGenerateHandler(t *testing.T) {
	setupModels(t)
	s, h := testServer(t)

	stream := false
	w := do(t, h, http.MethodPost, "/api/generate", api.GenerateRequest{
		Model:   "dalle",
		Prompt:  []int32{1, 2},
		Clip:    "clip",
		Samples: 3,
		Stream:  &stream,
		Options: map[string]any{"seed": 42},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}

	resp := decode[api.GenerateResponse](t, w)
	if !resp.Done {
		t.Error("erwartet done")
	}
	if resp.RequestID != w.Header().Get("X-Request-Id") {
		t.Errorf("request id %q != header %q", resp.RequestID, w.Header().Get("X-Request-Id"))
	}
	if resp.SampleCount != 3*6 {
		t.Errorf("sample count = %d, erwartet 18", resp.SampleCount)
	}
	if len(resp.Samples) != 3 {
		t.Fatalf("erwartet 3 samples, erhalten %d", len(resp.Samples))
	}

	for i, sample := range resp.Samples {
		if len(sample.Tokens) != 4 {
			t.Errorf("sample %d: %d tokens, erwartet 4", i, len(sample.Tokens))
		}
		for _, id := range sample.Tokens {
			if id < 0 || id >= 10 {
				t.Errorf("sample %d: token %d ausserhalb [0, 10)", i, id)
			}
		}

		img, err := imageproc.DecodeBytes(sample.Image)
		if err != nil {
			t.Fatalf("sample %d: %v", i, err)
		}
		if b := img.Bounds(); b.Dx() != 4 || b.Dy() != 4 {
			t.Errorf("sample %d: bild %v, erwartet 4x4", i, b)
		}

		if sample.Score == nil {
			t.Fatalf("sample %d: kein score", i)
		}
		if i > 0 && *sample.Score > *resp.Samples[i-1].Score {
			t.Errorf("samples nicht absteigend sortiert: %v > %v", *sample.Score, *resp.Samples[i-1].Score)
		}
	}

	running := s.sched.Running()
	if len(running) != 2 {
		t.Fatalf("erwartet 2 geladene Modelle, erhalten %d", len(running))
	}
	if diff := cmp.Diff([]string{"clip:latest", "dalle:latest"}, []string{running[0].Name, running[1].Name}); diff != "" {
		t.Errorf("running mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateHandlerStream(t *testing.T) {
	setupModels(t)
	_, h := testServer(t)

	w := do(t, h, http.MethodPost, "/api/generate", api.GenerateRequest{
		Model:  "dalle",
		Prompt: []int32{1, 2, 3, 4},
		Mask:   []bool{true, true, false, true},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/x-ndjson" {
		t.Errorf("content type %q", ct)
	}

	var steps []int
	var final api.GenerateResponse
	scanner := bufio.NewScanner(w.Body)
	scanner.Buffer(nil, 1<<20)
	for scanner.Scan() {
		var resp api.GenerateResponse
		if err := json.Unmarshal(scanner.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Done {
			final = resp
			continue
		}
		if resp.Total != 4 {
			t.Errorf("total = %d, erwartet 4", resp.Total)
		}
		steps = append(steps, resp.Completed)
	}

	if diff := cmp.Diff([]int{1, 2, 3, 4}, steps); diff != "" {
		t.Errorf("progress mismatch (-want +got):\n%s", diff)
	}
	if len(final.Samples) != 1 || final.Samples[0].Score != nil {
		t.Errorf("erwartet ein sample ohne score, erhalten %+v", final.Samples)
	}
}

func TestGenerateHandlerErrors(t *testing.T) {
	setupModels(t)
	t.Setenv("DALLE_MAX_SAMPLES", "2")
	_, h := testServer(t)

	stream := false
	cases := map[string]struct {
		req    any
		status int
	}{
		"missing body":       {nil, http.StatusBadRequest},
		"missing model":      {api.GenerateRequest{Prompt: []int32{1}}, http.StatusBadRequest},
		"missing prompt":     {api.GenerateRequest{Model: "dalle"}, http.StatusBadRequest},
		"mask length":        {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Mask: []bool{true, true}}, http.StatusBadRequest},
		"too many samples":   {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Samples: 3}, http.StatusBadRequest},
		"same clip":          {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Clip: "dalle"}, http.StatusBadRequest},
		"bad option":         {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Options: map[string]any{"temperature": "hot"}}, http.StatusBadRequest},
		"not found":          {api.GenerateRequest{Model: "missing", Prompt: []int32{1}, Stream: &stream}, http.StatusNotFound},
		"invalid name":       {api.GenerateRequest{Model: "a/b/c/d", Prompt: []int32{1}, Stream: &stream}, http.StatusBadRequest},
		"wrong arch":         {api.GenerateRequest{Model: "clip", Prompt: []int32{1}, Stream: &stream}, http.StatusBadRequest},
		"wrong clip arch":    {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Clip: "vae", Stream: &stream}, http.StatusBadRequest},
		"prompt too long":    {api.GenerateRequest{Model: "dalle", Prompt: []int32{1, 2, 3, 4, 5}, Stream: &stream}, http.StatusBadRequest},
		"bad threshold":      {api.GenerateRequest{Model: "dalle", Prompt: []int32{1}, Stream: &stream, Options: map[string]any{"filter_threshold": 2.0}}, http.StatusBadRequest},
		"streamed not found": {api.GenerateRequest{Model: "missing", Prompt: []int32{1}}, http.StatusNotFound},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/generate", tt.req)
			if w.Code != tt.status {
				t.Fatalf("status %d, erwartet %d: %s", w.Code, tt.status, w.Body.String())
			}
			if msg := decode[map[string]string](t, w)["error"]; msg == "" {
				t.Error("erwartet Fehlermeldung")
			}
		})
	}
}

func TestScoreHandler(t *testing.T) {
	setupModels(t)
	_, h := testServer(t)

	w := do(t, h, http.MethodPost, "/api/score", api.ScoreRequest{
		Model:       "clip",
		Prompts:     [][]int32{{1, 2, 3, 4}, {4, 3, 2, 1}},
		ImageTokens: [][]int32{{0, 1, 2, 3}, {9, 8, 7, 6}},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[api.ScoreResponse](t, w); len(resp.Scores) != 2 {
		t.Errorf("erwartet 2 scores, erhalten %v", resp.Scores)
	}

	// Bilder beliebiger Groesse werden auf die Modell-Aufloesung gebracht
	var buf bytes.Buffer
	if err := imageproc.EncodePNG(&buf, ml.Full(0.5, 1, 3, 8, 6), 0); err != nil {
		t.Fatal(err)
	}

	w = do(t, h, http.MethodPost, "/api/score", api.ScoreRequest{
		Model:   "clip",
		Prompts: [][]int32{{1, 2, 3, 4}},
		Masks:   [][]bool{{true, true, false, false}},
		Images:  []api.ImageData{buf.Bytes()},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if resp := decode[api.ScoreResponse](t, w); len(resp.Scores) != 1 {
		t.Errorf("erwartet 1 score, erhalten %v", resp.Scores)
	}
}

func TestScoreHandlerErrors(t *testing.T) {
	setupModels(t)
	_, h := testServer(t)

	cases := map[string]struct {
		req    api.ScoreRequest
		status int
	}{
		"missing prompts": {api.ScoreRequest{Model: "clip", ImageTokens: [][]int32{{1}}}, http.StatusBadRequest},
		"both images":     {api.ScoreRequest{Model: "clip", Prompts: [][]int32{{1}}, ImageTokens: [][]int32{{1}}, Images: []api.ImageData{{1}}}, http.StatusBadRequest},
		"count mismatch":  {api.ScoreRequest{Model: "clip", Prompts: [][]int32{{1}, {2}}, ImageTokens: [][]int32{{1, 2, 3, 4}}}, http.StatusBadRequest},
		"bad image":       {api.ScoreRequest{Model: "clip", Prompts: [][]int32{{1}}, Images: []api.ImageData{[]byte("not an image")}}, http.StatusBadRequest},
		"wrong arch":      {api.ScoreRequest{Model: "dalle", Prompts: [][]int32{{1}}, ImageTokens: [][]int32{{1, 2, 3, 4}}}, http.StatusBadRequest},
		"too many tokens": {api.ScoreRequest{Model: "clip", Prompts: [][]int32{{1}}, ImageTokens: [][]int32{{1, 2, 3, 4, 5}}}, http.StatusBadRequest},
		"not found":       {api.ScoreRequest{Model: "missing", Prompts: [][]int32{{1}}, ImageTokens: [][]int32{{1}}}, http.StatusNotFound},
	}

	for name, tt := range cases {
		t.Run(name, func(t *testing.T) {
			w := do(t, h, http.MethodPost, "/api/score", tt.req)
			if w.Code != tt.status {
				t.Fatalf("status %d, erwartet %d: %s", w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestModelRoutes(t *testing.T) {
	setupModels(t)
	_, h := testServer(t)

	list := decode[api.ListResponse](t, do(t, h, http.MethodGet, "/api/tags", nil))
	var names []string
	for _, m := range list.Models {
		names = append(names, m.Name)
	}
	if diff := cmp.Diff([]string{"clip:latest", "dalle:latest", "vae:latest"}, names); diff != "" {
		t.Fatalf("list mismatch (-want +got):\n%s", diff)
	}
	if list.Models[1].Details.Architecture != dalle.Architecture || list.Models[1].Details.ParameterCount == 0 {
		t.Errorf("unerwartete details %+v", list.Models[1].Details)
	}

	w := do(t, h, http.MethodPost, "/api/show", api.ShowRequest{Model: "dalle", Verbose: true})
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	show := decode[api.ShowResponse](t, w)
	if show.Details.Architecture != dalle.Architecture {
		t.Errorf("architecture = %q", show.Details.Architecture)
	}

	var cfg dalle.Config
	if err := json.Unmarshal(show.Config, &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.TextSeqLen != 4 || cfg.ImageSeqLen != 4 {
		t.Errorf("unerwartete config %+v", cfg)
	}
	if len(show.Tensors) == 0 || show.Tensors[0].Name != "text_emb.weight" {
		t.Errorf("unerwartete tensoren %+v", show.Tensors)
	}

	if w := do(t, h, http.MethodPost, "/api/show", api.ShowRequest{Model: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("status %d, erwartet 404", w.Code)
	}
	if w := do(t, h, http.MethodPost, "/api/show", api.ShowRequest{}); w.Code != http.StatusBadRequest {
		t.Errorf("status %d, erwartet 400", w.Code)
	}

	if w := do(t, h, http.MethodDelete, "/api/delete", api.DeleteRequest{Model: "vae"}); w.Code != http.StatusOK {
		t.Fatalf("delete status %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, h, http.MethodDelete, "/api/delete", api.DeleteRequest{Model: "vae"}); w.Code != http.StatusNotFound {
		t.Errorf("zweites delete: status %d, erwartet 404", w.Code)
	}

	list = decode[api.ListResponse](t, do(t, h, http.MethodGet, "/api/tags", nil))
	if len(list.Models) != 2 {
		t.Errorf("erwartet 2 modelle nach delete, erhalten %d", len(list.Models))
	}
}
