// types_model.go - Model-Verwaltung API Types
// Enthaelt: ShowRequest/Response, DeleteRequest, List/Process Responses, ModelDetails, Tensor
package api

import (
	"encoding/json"
	"time"
)

// DeleteRequest is the request passed to [Client.Delete].
type DeleteRequest struct {
	Model string `json:"model"`
}

// ShowRequest is the request passed to [Client.Show].
type ShowRequest struct {
	Model   string `json:"model"`
	Verbose bool   `json:"verbose"`
}

// ShowResponse is the response returned from [Client.Show].
type ShowResponse struct {
	Details    ModelDetails    `json:"details,omitempty"`
	Config     json.RawMessage `json:"config,omitempty"`
	Tensors    []Tensor        `json:"tensors,omitempty"`
	ModifiedAt time.Time       `json:"modified_at,omitempty"`
}

// ListResponse is the response from [Client.List].
type ListResponse struct {
	Models []ListModelResponse `json:"models"`
}

// ProcessResponse is the response from [Client.ListRunning].
type ProcessResponse struct {
	Models []ProcessModelResponse `json:"models"`
}

// ListModelResponse is a single model description in [ListResponse].
type ListModelResponse struct {
	Name       string       `json:"name"`
	Model      string       `json:"model"`
	ModifiedAt time.Time    `json:"modified_at"`
	Size       int64        `json:"size"`
	Details    ModelDetails `json:"details,omitempty"`
}

// ProcessModelResponse is a single model description in [ProcessResponse].
type ProcessModelResponse struct {
	Name      string       `json:"name"`
	Model     string       `json:"model"`
	Details   ModelDetails `json:"details,omitempty"`
	ExpiresAt time.Time    `json:"expires_at"`
}

// ModelDetails provides details about a model.
type ModelDetails struct {
	Architecture   string `json:"architecture"`
	ParameterCount int64  `json:"parameter_count"`
}

// Tensor describes the metadata for a given tensor.
type Tensor struct {
	Name  string   `json:"name"`
	Shape []uint64 `json:"shape"`
}
