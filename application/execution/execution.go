// Package execution implements the cache's request pipeline: the four
// cache policies, in-flight request dedup, latest-wins generation
// gating for out-of-order network completions, and a circuit breaker
// around the transport. It is grounded on the teacher's resilience
// wrapper around DynamoDB/network calls
// (backend/infrastructure/persistence/dynamodb/*_repository.go's retry
// idiom) generalized to sony/gobreaker, and on
// backend/pkg/observability/metrics.go's per-outcome instrumentation,
// reused here via pkg/metrics.
package execution

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"graphcache/application/materializer"
	"graphcache/domain/plan"
	graphErrors "graphcache/pkg/errors"
	"graphcache/pkg/metrics"
)

// Policy selects how Execute balances cache and network (spec §6
// "Cache policies").
type Policy int

const (
	// CacheFirst returns cached data when present, else fetches network.
	CacheFirst Policy = iota
	// CacheOnly never touches the network; a miss resolves to Source "none".
	CacheOnly
	// NetworkOnly always fetches, writing the response through the cache.
	NetworkOnly
	// CacheAndNetwork returns cached data immediately if present while a
	// network refresh runs in the background; with no cached data it
	// behaves like NetworkOnly.
	CacheAndNetwork
)

// Transport executes a compiled network query against the backing
// GraphQL endpoint. infrastructure/transport/* provides concrete
// implementations; this package only depends on the interface.
type Transport interface {
	Execute(ctx context.Context, networkQuery string, vars map[string]any) (map[string]any, error)
}

// Result is one Execute outcome.
type Result struct {
	Data   map[string]any
	Source string // "cache" | "network" | "none"
	Deps   map[string]struct{}
}

type inflightCall struct {
	gen  uint64
	done chan struct{}
	data map[string]any
	err  error
}

// Executor runs queries/mutations against a Materializer and Transport.
type Executor struct {
	mat       *materializer.Materializer
	transport Transport
	breaker   *gobreaker.CircuitBreaker[map[string]any]
	metrics   *metrics.Recorder
	logger    *zap.Logger
	tracer    trace.Tracer

	// suspensionTimeout bounds how long a caller waits on an in-flight
	// request made by another caller for the same signature before giving
	// up and treating it as a network error (spec §6 "in-flight dedup").
	suspensionTimeout time.Duration
	// hydrationTimeout is the window after Hydrate during which no query
	// policy reaches the network: a cache hit is returned as usual and a
	// miss is reported as HydrationMiss, giving a dehydrated SSR payload
	// time to arrive (spec §6 "hydration"). Mutations are not affected.
	hydrationTimeout time.Duration

	mu         sync.Mutex
	inflight   map[string]*inflightCall
	generation map[string]uint64
	hydratedAt time.Time
}

// New creates an Executor. rec, logger and tracer may be nil; a nil
// tracer simply means runNetwork skips span creation.
func New(mat *materializer.Materializer, transport Transport, rec *metrics.Recorder, logger *zap.Logger, tracer trace.Tracer, suspensionTimeout, hydrationTimeout time.Duration) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		mat:               mat,
		transport:         transport,
		breaker:           gobreaker.NewCircuitBreaker[map[string]any](gobreaker.Settings{Name: "graphcache-network"}),
		metrics:           rec,
		logger:            logger,
		tracer:            tracer,
		suspensionTimeout: suspensionTimeout,
		hydrationTimeout:  hydrationTimeout,
		inflight:          make(map[string]*inflightCall),
		generation:        make(map[string]uint64),
	}
}

// MarkHydrated opens the hydration window starting now; facade's hydrate
// op calls this once the dehydrated snapshot has been restored.
func (e *Executor) MarkHydrated() {
	e.mu.Lock()
	e.hydratedAt = time.Now()
	e.mu.Unlock()
}

func (e *Executor) withinHydrationWindow() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.hydratedAt.IsZero() || e.hydrationTimeout <= 0 {
		return false
	}
	return time.Since(e.hydratedAt) < e.hydrationTimeout
}

// Execute runs p under policy, returning the shaped result (spec §6).
func (e *Executor) Execute(ctx context.Context, p *plan.Plan, rootKey string, vars map[string]any, canonical bool, policy Policy) (Result, error) {
	if policy != CacheOnly && p.Operation != plan.OperationMutation && e.withinHydrationWindow() {
		cached := e.readCache(p, rootKey, vars, canonical)
		if cached.Source == "cache" {
			return cached, nil
		}
		return Result{Source: "none"}, graphErrors.HydrationMiss
	}

	switch policy {
	case CacheOnly:
		return e.readCache(p, rootKey, vars, canonical), nil

	case NetworkOnly:
		return e.fetchNetwork(ctx, p, rootKey, vars, canonical)

	case CacheAndNetwork:
		cached := e.readCache(p, rootKey, vars, canonical)
		go func() {
			bg, cancel := context.WithTimeout(context.Background(), e.networkTimeout())
			defer cancel()
			if _, err := e.fetchNetwork(bg, p, rootKey, vars, canonical); err != nil {
				e.logger.Debug("background refresh failed", zap.Error(err))
			}
		}()
		if cached.Source == "cache" {
			return cached, nil
		}
		return e.fetchNetwork(ctx, p, rootKey, vars, canonical)

	default: // CacheFirst
		cached := e.readCache(p, rootKey, vars, canonical)
		if cached.Source == "cache" {
			return cached, nil
		}
		return e.fetchNetwork(ctx, p, rootKey, vars, canonical)
	}
}

func (e *Executor) networkTimeout() time.Duration {
	if e.suspensionTimeout > 0 {
		return e.suspensionTimeout
	}
	return 30 * time.Second
}

func (e *Executor) readCache(p *plan.Plan, rootKey string, vars map[string]any, canonical bool) Result {
	data, deps, err := e.mat.Read(p, rootKey, vars, canonical)
	if e.metrics != nil {
		e.metrics.ObserveRead(map[bool]string{true: "canonical", false: "strict"}[canonical])
	}
	if err != nil {
		return Result{Source: "none", Deps: deps}
	}
	return Result{Data: data, Source: "cache", Deps: deps}
}

// fetchNetwork runs (or joins) the in-flight network call for p's
// signature. A caller arriving while a call for the same signature is in
// flight joins that call instead of starting a new one, so the
// signature's generation only advances when no call is in flight.
// runNetwork still compares generations before writing and drops a
// result whose generation has moved on, but under this join rule the two
// always match; latest-wins across differing variables is enforced by
// the watcher (facade.Watch), not here.
func (e *Executor) fetchNetwork(ctx context.Context, p *plan.Plan, rootKey string, vars map[string]any, canonical bool) (Result, error) {
	sig := p.MakeSignature(canonical, rootKey, vars)

	e.mu.Lock()
	if existing, ok := e.inflight[sig]; ok {
		e.mu.Unlock()
		return e.joinInflight(ctx, existing)
	}

	e.generation[sig]++
	gen := e.generation[sig]
	call := &inflightCall{gen: gen, done: make(chan struct{})}
	e.inflight[sig] = call
	e.mu.Unlock()

	go e.runNetwork(p, rootKey, vars, canonical, sig, call, gen)

	select {
	case <-call.done:
		if call.err != nil {
			return Result{Source: "none"}, call.err
		}
		return Result{Data: call.data, Source: "network"}, nil
	case <-ctx.Done():
		return Result{Source: "none"}, ctx.Err()
	}
}

func (e *Executor) joinInflight(ctx context.Context, call *inflightCall) (Result, error) {
	select {
	case <-call.done:
		if call.err != nil {
			return Result{Source: "none"}, call.err
		}
		return Result{Data: call.data, Source: "network"}, nil
	case <-time.After(e.suspensionTimeout):
		return Result{Source: "none"}, graphErrors.NewNetwork(errors.New("suspension timeout waiting on in-flight request"))
	case <-ctx.Done():
		return Result{Source: "none"}, ctx.Err()
	}
}

func (e *Executor) runNetwork(p *plan.Plan, rootKey string, vars map[string]any, canonical bool, sig string, call *inflightCall, gen uint64) {
	// requestID correlates this call's log lines the way the teacher's
	// HTTP request-ID middleware (backend/internal/middleware/request_id.go)
	// correlates a request's log lines, generalized from a per-HTTP-request
	// ID to a per-network-fetch one.
	requestID := uuid.New().String()
	logger := e.logger.With(zap.String("request_id", requestID), zap.Uint32("plan_id", p.PlanID))

	ctx := context.Background()
	if e.tracer != nil {
		var span trace.Span
		ctx, span = e.tracer.Start(ctx, "graphcache.network_fetch", trace.WithAttributes(
			attribute.Int64("graphcache.plan_id", int64(p.PlanID)),
			attribute.String("graphcache.request_id", requestID),
		))
		defer span.End()
	}

	start := time.Now()
	data, err := e.breaker.Execute(func() (map[string]any, error) {
		return e.transport.Execute(ctx, p.NetworkQuery, vars)
	})

	outcome := "ok"
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "breaker_open"
	case err != nil:
		outcome = "error"
	}
	logger.Debug("network fetch completed", zap.String("outcome", outcome), zap.Duration("duration", time.Since(start)))
	if e.tracer != nil {
		span := trace.SpanFromContext(ctx)
		span.SetAttributes(attribute.String("graphcache.outcome", outcome))
		if err != nil {
			span.RecordError(err)
		}
	}
	if e.metrics != nil {
		e.metrics.ObserveNetworkCall(outcome, time.Since(start))
	}

	e.mu.Lock()
	stale := e.generation[sig] != gen
	delete(e.inflight, sig)
	e.mu.Unlock()

	defer close(call.done)

	if err != nil {
		call.err = graphErrors.NewNetwork(err)
		return
	}
	if stale {
		call.err = graphErrors.StaleDrop
		return
	}

	e.mat.Write(p, rootKey, vars, canonical, data)
	fresh, _, rerr := e.mat.Read(p, rootKey, vars, canonical)
	if rerr != nil {
		call.err = rerr
		return
	}
	call.data = fresh
}
