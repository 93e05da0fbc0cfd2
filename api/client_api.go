// client_api.go - Nicht-streamende Methoden des Clients, eine pro Route
package api

import (
	"context"
	"net/http"
)

// call fuehrt eine JSON-Anfrage aus und dekodiert die Antwort in ein neues T
func call[T any](ctx context.Context, c *Client, method, path string, req any) (*T, error) {
	var resp T
	if err := c.do(ctx, method, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// List lists models that are available in the local model store.
func (c *Client) List(ctx context.Context) (*ListResponse, error) {
	return call[ListResponse](ctx, c, http.MethodGet, "/api/tags", nil)
}

// ListRunning lists models currently held in memory by the server.
func (c *Client) ListRunning(ctx context.Context) (*ProcessResponse, error) {
	return call[ProcessResponse](ctx, c, http.MethodGet, "/api/ps", nil)
}

// Show obtains model information: architecture, configuration and tensors.
func (c *Client) Show(ctx context.Context, req *ShowRequest) (*ShowResponse, error) {
	return call[ShowResponse](ctx, c, http.MethodPost, "/api/show", req)
}

// Score scores text/image pairs with a clip model.
func (c *Client) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	return call[ScoreResponse](ctx, c, http.MethodPost, "/api/score", req)
}

// Delete deletes a model file from the model store.
func (c *Client) Delete(ctx context.Context, req *DeleteRequest) error {
	return c.do(ctx, http.MethodDelete, "/api/delete", req, nil)
}

// Heartbeat meldet nil, sobald der Server antwortet.
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.do(ctx, http.MethodHead, "/", nil, nil)
}

// Version returns the dalle server version as a string.
func (c *Client) Version(ctx context.Context) (string, error) {
	v, err := call[struct {
		Version string `json:"version"`
	}](ctx, c, http.MethodGet, "/api/version", nil)
	if err != nil {
		return "", err
	}
	return v.Version, nil
}
