// Package httptransport implements execution.Transport over a plain
// net/http client POSTing the GraphQL-shaped request envelope
// ({query, variables}) and parsing the {data, errors} response shape.
// It is grounded on the teacher's websocket client
// (backend/interfaces/websocket/client.go) for connection-reuse and
// context-aware request conventions, generalized from a persistent
// socket to a one-shot HTTP round trip.
package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// GraphError is one entry of a response's "errors" array.
type GraphError struct {
	Message string `json:"message"`
}

func (e GraphError) Error() string { return e.Message }

// Transport posts GraphQL requests to a single endpoint. It implements
// execution.Transport.
type Transport struct {
	endpoint string
	client   *http.Client
	headers  map[string]string
}

// Option configures a Transport.
type Option func(*Transport)

// WithHTTPClient overrides the default *http.Client (e.g. to set a
// timeout or a custom transport/proxy).
func WithHTTPClient(client *http.Client) Option {
	return func(t *Transport) { t.client = client }
}

// WithHeader sets a header sent on every request (e.g. Authorization).
func WithHeader(key, value string) Option {
	return func(t *Transport) {
		if t.headers == nil {
			t.headers = make(map[string]string)
		}
		t.headers[key] = value
	}
}

// New constructs a Transport posting to endpoint.
func New(endpoint string, opts ...Option) *Transport {
	t := &Transport{endpoint: endpoint, client: http.DefaultClient}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

type requestBody struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type responseBody struct {
	Data   map[string]any `json:"data"`
	Errors []GraphError   `json:"errors,omitempty"`
}

// Execute posts networkQuery and vars as a GraphQL request and returns
// the "data" object, or an error built from the "errors" array if the
// server reports no data.
func (t *Transport) Execute(ctx context.Context, networkQuery string, vars map[string]any) (map[string]any, error) {
	body, err := json.Marshal(requestBody{Query: networkQuery, Variables: vars})
	if err != nil {
		return nil, fmt.Errorf("graphcache: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("graphcache: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphcache: network request: %w", err)
	}
	defer resp.Body.Close()

	var parsed responseBody
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("graphcache: decode response (status %d): %w", resp.StatusCode, err)
	}

	if parsed.Data == nil && len(parsed.Errors) > 0 {
		messages := make([]string, len(parsed.Errors))
		for i, e := range parsed.Errors {
			messages[i] = e.Message
		}
		return nil, fmt.Errorf("graphcache: graphql errors: %s", strings.Join(messages, "; "))
	}

	if resp.StatusCode >= 400 && parsed.Data == nil {
		return nil, fmt.Errorf("graphcache: request failed with status %d", resp.StatusCode)
	}

	return parsed.Data, nil
}
