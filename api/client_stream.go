// client_stream.go - ndjson-Streaming fuer /api/generate
//
// Jede Zeile der Antwort ist ein JSON-Objekt. Eine Zeile mit "error" beendet
// den Stream, bei einem Fehler-Status wird daraus ein StatusError.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Bilder werden als base64 in einer Zeile uebertragen
const maxLineSize = 64 << 20

func (c *Client) stream(ctx context.Context, method, path string, data any, fn func([]byte) error) error {
	request, err := c.newRequest(ctx, method, path, data, "application/x-ndjson")
	if err != nil {
		return err
	}

	response, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer response.Body.Close()

	scanner := bufio.NewScanner(response.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if err := lineError(response, line); err != nil {
			return err
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func lineError(response *http.Response, line []byte) error {
	if err := checkError(response, line); err != nil {
		return err
	}

	var e struct {
		Error string `json:"error,omitempty"`
	}
	if err := json.Unmarshal(line, &e); err != nil {
		return fmt.Errorf("invalid stream line %q: %w", line, err)
	}
	if e.Error != "" {
		return errors.New(e.Error)
	}
	return nil
}

// GenerateResponseFunc is a function that [Client.Generate] invokes every time
// a response is received from the service. If this function returns an error,
// [Client.Generate] will stop generating and return this error.
type GenerateResponseFunc func(GenerateResponse) error

// Generate generates images for a given prompt. fn is called for each
// progress response and once for the final response carrying the samples.
func (c *Client) Generate(ctx context.Context, req *GenerateRequest, fn GenerateResponseFunc) error {
	return c.stream(ctx, http.MethodPost, "/api/generate", req, func(bts []byte) error {
		var resp GenerateResponse
		if err := json.Unmarshal(bts, &resp); err != nil {
			return err
		}
		return fn(resp)
	})
}
