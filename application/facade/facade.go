// Package facade assembles domain/graph, domain/optimistic,
// application/materializer, application/execution and
// infrastructure/dispatcher into the eleven operations a caller drives the
// cache through (spec §6). It is grounded on the teacher's query bus
// (backend2/application/queries/bus/query_bus.go): one entry point type
// wiring a registry of collaborators behind a small set of named calls,
// with ambient Logger/Tracer/Metrics fields defaulting to no-ops
// (backend/internal/di/providers.go's explicit-collaborator convention).
package facade

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"graphcache/application/execution"
	"graphcache/application/materializer"
	"graphcache/domain/graph"
	"graphcache/domain/optimistic"
	"graphcache/domain/plan"
	"graphcache/infrastructure/dispatcher"
	"graphcache/pkg/metrics"
)

// Config configures one Cache instance (spec §6 "Configuration").
type Config struct {
	Keys       map[string]graph.KeyExtractor
	Interfaces map[string][]string

	CachePolicy       execution.Policy
	SuspensionTimeout time.Duration
	HydrationTimeout  time.Duration

	// OnTouched, if set, is called with every write transaction's touched
	// key set alongside the watcher dispatcher (spec §4.2 Broadcast). It
	// lets a caller fan the same broadcast out past this one process —
	// e.g. infrastructure/broadcast.EventPublisher, for cache invalidation
	// across sibling processes sharing one backing store.
	OnTouched func(touched map[string]struct{})

	Logger  *zap.Logger
	Tracer  trace.Tracer
	Metrics *metrics.Recorder
}

// ReadResult is the shape read_query/read_fragment return.
type ReadResult struct {
	Data         map[string]any
	Source       string // "cache" | "none"
	Dependencies map[string]struct{}
}

// ExecResult is the shape execute_query/execute_mutation resolve to.
type ExecResult struct {
	Data   map[string]any
	Error  error
	Source string
}

// SnapshotEntry is one record in a dehydrated snapshot.
type SnapshotEntry struct {
	Key    string
	Record graph.Record
}

// Snapshot is the serializable form dehydrate/hydrate exchange (spec §6
// "Snapshot format"): an ordered list of {key, record} entries.
type Snapshot struct {
	Entries []SnapshotEntry
}

// Cache is one independent instance of the client-side cache: an entity
// graph, an optimistic overlay stack, a materializer, a watcher
// dispatcher and an execution pipeline, all wired to a single Transport.
type Cache struct {
	store *graph.Store
	stack *optimistic.Stack
	mat   *materializer.Materializer
	disp  *dispatcher.Dispatcher
	exec  *execution.Executor

	cfg Config

	mu        sync.Mutex
	planCache map[string]*plan.Plan
}

// New builds a Cache. transport is consulted by execute_query/execute_mutation for any
// policy that reaches the network; it may be nil if the caller only
// ever uses cache-only operations.
func New(cfg Config, transport execution.Transport) *Cache {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	c := &Cache{cfg: cfg, planCache: make(map[string]*plan.Plan)}
	c.disp = dispatcher.New(cfg.Logger, cfg.Metrics)

	c.store = graph.New(graph.Config{Keys: cfg.Keys, Interfaces: cfg.Interfaces}, c.broadcast)
	c.stack = optimistic.New(c.store, c.broadcast)
	c.mat = materializer.New(c.store)
	c.exec = execution.New(c.mat, transport, cfg.Metrics, cfg.Logger, cfg.Tracer, cfg.SuspensionTimeout, cfg.HydrationTimeout)

	return c
}

// broadcast drains one write transaction's touched key set to the
// watcher dispatcher and, if configured, to OnTouched.
func (c *Cache) broadcast(touched map[string]struct{}) {
	c.disp.Touch(touched)
	if c.cfg.OnTouched != nil {
		c.cfg.OnTouched(touched)
	}
}

// Close releases a Cache. The dispatcher runs synchronously on its
// callers' goroutines rather than its own background one, so there is
// nothing to stop; Close is kept as the symmetric counterpart to New for
// callers that defer it unconditionally.
func (c *Cache) Close() {}

// Identify runs the configured key extractor for typename, mirroring
// domain/graph.Store.Identify for callers outside the store's package.
func (c *Cache) Identify(typename string, attrs map[string]any) (string, bool) {
	return c.store.Identify(typename, attrs)
}

// compilePlan compiles (and caches) document/fragmentSelector, since the
// same document is typically reused across many read/write/watch calls
// with only the variables changing (spec §4.1: "the same Plan serves
// every call with different variables").
func (c *Cache) compilePlan(document, fragmentSelector string) (*plan.Plan, error) {
	key := fragmentSelector + "\x00" + document

	c.mu.Lock()
	if p, ok := c.planCache[key]; ok {
		c.mu.Unlock()
		return p, nil
	}
	c.mu.Unlock()

	p, err := plan.Compile(document, fragmentSelector)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.planCache[key] = p
	c.mu.Unlock()
	return p, nil
}

// ReadQuery materializes document against the store without touching the
// network (spec §6 read_query).
func (c *Cache) ReadQuery(document string, vars map[string]any, canonical bool) (ReadResult, error) {
	p, err := c.compilePlan(document, "")
	if err != nil {
		return ReadResult{}, err
	}
	return c.readPlan(p, graph.RootKey, vars, canonical), nil
}

func (c *Cache) readPlan(p *plan.Plan, rootKey string, vars map[string]any, canonical bool) ReadResult {
	data, deps, err := c.mat.Read(p, rootKey, vars, canonical)
	if err != nil {
		// CacheMiss is the only error Read returns; it is never surfaced
		// to callers (spec §7), only folded into source=none.
		return ReadResult{Source: "none"}
	}
	return ReadResult{Data: data, Source: "cache", Dependencies: deps}
}

// WriteQuery normalizes data into the graph under document's plan (spec
// §6 write_query), returning the set of keys it touched.
func (c *Cache) WriteQuery(document string, vars, data map[string]any) (map[string]struct{}, error) {
	p, err := c.compilePlan(document, "")
	if err != nil {
		return nil, err
	}
	return c.mat.Write(p, graph.RootKey, vars, false, data), nil
}

// ReadFragment materializes fragmentDocument rooted at an existing
// entity key (spec §6 read_fragment).
func (c *Cache) ReadFragment(id, fragmentDocument string) (map[string]any, error) {
	p, err := c.compilePlan(fragmentDocument, "")
	if err != nil {
		return nil, err
	}
	res := c.readPlan(p, id, map[string]any{}, false)
	if res.Source == "none" {
		return nil, nil
	}
	return res.Data, nil
}

// WriteFragment normalizes partial data into the entity record at id
// (spec §6 write_fragment).
func (c *Cache) WriteFragment(id, fragmentDocument string, partial map[string]any) (map[string]struct{}, error) {
	p, err := c.compilePlan(fragmentDocument, "")
	if err != nil {
		return nil, err
	}
	return c.mat.Write(p, id, map[string]any{}, false, partial), nil
}

// ExecuteQuery runs document through the execution pipeline under
// policy, hitting the network per the policy's rules (spec §6
// execute_query / §4.7).
func (c *Cache) ExecuteQuery(ctx context.Context, document string, vars map[string]any, policy execution.Policy) (ExecResult, error) {
	p, err := c.compilePlan(document, "")
	if err != nil {
		return ExecResult{}, err
	}
	res, err := c.exec.Execute(ctx, p, graph.RootKey, vars, false, policy)
	if err != nil {
		return ExecResult{Error: err, Source: res.Source}, err
	}
	return ExecResult{Data: res.Data, Source: res.Source}, nil
}

// ExecuteMutation always reaches the network, normalizes the response,
// and returns the shaped result (spec §6 execute_mutation). It reuses
// the execution pipeline's network-only path: a mutation's response is
// normalized and read back exactly like a network-only query's.
func (c *Cache) ExecuteMutation(ctx context.Context, document string, vars map[string]any) (ExecResult, error) {
	p, err := c.compilePlan(document, "")
	if err != nil {
		return ExecResult{}, err
	}
	if p.Operation != plan.OperationMutation {
		return ExecResult{}, fmt.Errorf("graphcache: execute_mutation requires a mutation document")
	}
	res, err := c.exec.Execute(ctx, p, graph.RootKey, vars, false, execution.NetworkOnly)
	if err != nil {
		return ExecResult{Error: err, Source: res.Source}, err
	}
	return ExecResult{Data: res.Data, Source: res.Source}, nil
}

// ModifyOptimistic opens a new optimistic layer built by f, returning a
// handle to commit or revert it (spec §6 modify_optimistic, §4.4).
func (c *Cache) ModifyOptimistic(f func(*optimistic.Builder)) *optimistic.Handle {
	return c.stack.ModifyOptimistic(f)
}

// ReadOptimistic resolves key through the optimistic overlay stack,
// reflecting every uncommitted and committed layer above the base graph
// (spec §4.4). Unlike ReadQuery/ReadFragment, this bypasses the
// materializer's result cache entirely, since an optimistic overlay is
// by definition a transient view the result cache must never remember.
func (c *Cache) ReadOptimistic(key string) (graph.Record, bool) {
	return c.stack.Read(key)
}

// ReadOptimisticConnection resolves a connection's edges through the
// optimistic overlay stack, including any add_node/remove_node/patch ops
// applied by an open layer (spec §4.4 "Connection ops").
func (c *Cache) ReadOptimisticConnection(connKey string) (graph.Record, []optimistic.EdgeView, bool) {
	return c.stack.ReadConnection(connKey)
}

// Dehydrate snapshots the graph's contents as an ordered {key, record}
// list (spec §6 dehydrate). Entries are sorted by key so the snapshot is
// deterministic across calls against an unchanged graph.
func (c *Cache) Dehydrate() Snapshot {
	records := c.store.Snapshot()
	entries := make([]SnapshotEntry, 0, len(records))
	for k, v := range records {
		entries = append(entries, SnapshotEntry{Key: k, Record: v})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Key < entries[j].Key })
	return Snapshot{Entries: entries}
}

// Hydrate replaces the graph's contents with snapshot and opens the
// hydration window (spec §6 hydrate, §4.7 "Hydration window").
func (c *Cache) Hydrate(snapshot Snapshot) {
	records := make(map[string]graph.Record, len(snapshot.Entries))
	for _, e := range snapshot.Entries {
		records[e.Key] = e.Record
	}
	c.store.Restore(records)
	c.exec.MarkHydrated()
}
