// types_generate.go - Generate und Score API Types
// Enthaelt: GenerateRequest, GenerateResponse, ScoreRequest, ScoreResponse
package api

import (
	"time"
)

// GenerateRequest describes a request sent by [Client.Generate]. Model and
// Prompt are required, all other fields have reasonable defaults.
type GenerateRequest struct {
	// Model is the name of a dalle model in the local model store.
	Model string `json:"model"`

	// Prompt holds the text token ids that condition the image.
	Prompt []int32 `json:"prompt"`

	// Mask marks visible prompt positions; nil means all visible.
	Mask []bool `json:"mask,omitempty"`

	// Clip optionally names a clip model used to score and rank the samples.
	Clip string `json:"clip,omitempty"`

	// Samples is the number of images generated for the prompt (default 1).
	Samples int `json:"samples,omitempty"`

	// Stream specifies whether progress is streamed; it is true by default.
	Stream *bool `json:"stream,omitempty"`

	// KeepAlive controls how long the model will stay loaded in memory following
	// this request.
	KeepAlive *Duration `json:"keep_alive,omitempty"`

	// Options lists sampling options (filter_threshold, temperature, seed).
	Options map[string]any `json:"options"`
}

// Sample ist ein einzelnes generiertes Bild
type Sample struct {
	// Image is the decoded image encoded as PNG.
	Image ImageData `json:"image"`

	// Tokens are the sampled image token ids.
	Tokens []int32 `json:"tokens"`

	// Score is the clip score, nil without a clip model.
	Score *float32 `json:"score,omitempty"`
}

// GenerateResponse is the response passed into [GenerateResponseFunc].
// Progress responses carry Completed and Total, the final response has
// Done set and carries the samples ordered by descending score.
type GenerateResponse struct {
	Model     string    `json:"model"`
	RequestID string    `json:"request_id"`
	CreatedAt time.Time `json:"created_at"`
	Done      bool      `json:"done"`

	Completed int `json:"completed,omitempty"`
	Total     int `json:"total,omitempty"`

	Samples []Sample `json:"samples,omitempty"`

	Metrics
}

// ScoreRequest describes a request sent by [Client.Score]. Exactly one of
// Images or ImageTokens must be set, with one entry per prompt.
type ScoreRequest struct {
	Model       string      `json:"model"`
	Prompts     [][]int32   `json:"prompts"`
	Masks       [][]bool    `json:"masks,omitempty"`
	Images      []ImageData `json:"images,omitempty"`
	ImageTokens [][]int32   `json:"image_tokens,omitempty"`
	KeepAlive   *Duration   `json:"keep_alive,omitempty"`
}

// ScoreResponse is the response returned from [Client.Score].
type ScoreResponse struct {
	Model     string    `json:"model"`
	RequestID string    `json:"request_id"`
	Scores    []float32 `json:"scores"`
}
