// Package api - Hauptmodul des dalle API-Clients.
// Dieses Modul enthaelt die Client-Struktur und Basis-Methoden.
// Stream-Methoden sind in client_stream.go, API-Methoden in client_api.go.
//
// Package api implements the client-side API for code wishing to interact
// with the dalle service. The methods of the [Client] type correspond to
// the routes registered by the server package. The dalle command-line
// client itself uses this package to talk to a running server.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime"

	"github.com/ollama/dalle/envconfig"
	"github.com/ollama/dalle/version"
)

// Client encapsulates client state for interacting with the dalle
// service. Use [ClientFromEnvironment] to create new Clients.
type Client struct {
	base *url.URL
	http *http.Client
}

func checkError(resp *http.Response, body []byte) error {
	if resp.StatusCode < http.StatusBadRequest {
		return nil
	}

	apiError := StatusError{StatusCode: resp.StatusCode, Status: resp.Status}

	err := json.Unmarshal(body, &apiError)
	if err != nil {
		// Use the full body as the message if we fail to decode a response.
		apiError.ErrorMessage = string(body)
	}

	return apiError
}

// ClientFromEnvironment creates a new [Client] using configuration from the
// environment variable DALLE_HOST, which points to the network host and
// port on which the dalle service is listening. The format of this variable
// is:
//
//	<scheme>://<host>:<port>
//
// If the variable is not specified, a default host and port will be used.
func ClientFromEnvironment() (*Client, error) {
	return &Client{
		base: envconfig.Host(),
		http: http.DefaultClient,
	}, nil
}

func NewClient(base *url.URL, http *http.Client) *Client {
	return &Client{
		base: base,
		http: http,
	}
}

func userAgent() string {
	return fmt.Sprintf("dalle/%s (%s %s) Go/%s", version.Version, runtime.GOARCH, runtime.GOOS, runtime.Version())
}

// newRequest baut eine JSON-Anfrage an path. data darf nil, ein io.Reader
// oder ein beliebiger JSON-kodierbarer Wert sein.
func (c *Client) newRequest(ctx context.Context, method, path string, data any, accept string) (*http.Request, error) {
	var body io.Reader
	switch data := data.(type) {
	case nil:
	case io.Reader:
		body = data
	default:
		bts, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(bts)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base.JoinPath(path).String(), body)
	if err != nil {
		return nil, err
	}

	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Accept", accept)
	request.Header.Set("User-Agent", userAgent())
	return request, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	request, err := c.newRequest(ctx, method, path, reqData, "application/json")
	if err != nil {
		return err
	}

	respObj, err := c.http.Do(request)
	if err != nil {
		return err
	}
	defer respObj.Body.Close()

	respBody, err := io.ReadAll(respObj.Body)
	if err != nil {
		return err
	}

	if err := checkError(respObj, respBody); err != nil {
		return err
	}

	if len(respBody) > 0 && respData != nil {
		if err := json.Unmarshal(respBody, respData); err != nil {
			return err
		}
	}
	return nil
}
