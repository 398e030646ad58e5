// Package supabasetransport implements execution.Transport by invoking
// a Postgres RPC function through the Supabase client, for callers whose
// GraphQL-shaped backend is a Supabase project rather than a bare HTTP
// GraphQL server. It is grounded on the teacher's ws-connect Lambda
// (backend/cmd/ws-connect/main.go), which constructs the same
// supabase-community/supabase-go client against SUPABASE_URL /
// SUPABASE_SERVICE_ROLE_KEY and calls through to the project's Postgres
// layer rather than talking to a GraphQL endpoint directly.
package supabasetransport

import (
	"context"
	"encoding/json"
	"fmt"

	supabase "github.com/supabase-community/supabase-go"
)

// Transport calls a single Postgres function (by default
// "graphcache_execute") that accepts {query, variables} and returns a
// {data, errors} JSON payload, mirroring a GraphQL server's response
// envelope from inside the database.
type Transport struct {
	client      *supabase.Client
	rpcFunction string
}

// Option configures a Transport.
type Option func(*Transport)

// WithRPCFunction overrides the default Postgres function name.
func WithRPCFunction(name string) Option {
	return func(t *Transport) { t.rpcFunction = name }
}

// New builds a Transport against a Supabase project, following the
// teacher's supabase.NewClient(url, serviceRoleKey, nil) construction.
func New(projectURL, serviceRoleKey string, opts ...Option) (*Transport, error) {
	client, err := supabase.NewClient(projectURL, serviceRoleKey, nil)
	if err != nil {
		return nil, fmt.Errorf("graphcache: create supabase client: %w", err)
	}
	t := &Transport{client: client, rpcFunction: "graphcache_execute"}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

type rpcParams struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type rpcResult struct {
	Data   map[string]any   `json:"data"`
	Errors []map[string]any `json:"errors,omitempty"`
}

// Execute invokes the configured Postgres function with networkQuery
// and vars, decoding its JSON-text return value as a {data, errors}
// envelope.
func (t *Transport) Execute(ctx context.Context, networkQuery string, vars map[string]any) (map[string]any, error) {
	raw := t.client.Rpc(t.rpcFunction, "", rpcParams{Query: networkQuery, Variables: vars})
	return decodeRPCResult(t.rpcFunction, raw)
}

// decodeRPCResult parses a Postgres function's JSON-text return value.
// Split out from Execute so the decoding logic is testable without a
// live Supabase project.
func decodeRPCResult(rpcFunction, raw string) (map[string]any, error) {
	var result rpcResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("graphcache: decode supabase rpc response: %w", err)
	}

	if result.Data == nil && len(result.Errors) > 0 {
		return nil, fmt.Errorf("graphcache: supabase rpc %s returned %d error(s): %v", rpcFunction, len(result.Errors), result.Errors[0])
	}
	return result.Data, nil
}
