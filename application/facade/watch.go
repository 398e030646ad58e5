package facade

import (
	"context"
	"sync"

	"graphcache/domain/graph"
	"graphcache/domain/plan"
	"graphcache/infrastructure/dispatcher"
)

// Watch is the handle watch_query returns: Update re-points the
// subscription at new variables, Unsubscribe tears it down (spec §6
// watch_query: "{update, unsubscribe}").
type Watch struct {
	cache     *Cache
	id        dispatcher.WatcherID
	plan      *plan.Plan
	canonical bool
	onData    func(ReadResult)
	onError   func(error)

	mu   sync.Mutex
	vars map[string]any
	// gen is this watcher's own monotonic request generation (spec §4.7
	// "latest-wins gating"), distinct from execution.Executor's
	// signature-scoped generation: it is bumped once per Update call,
	// regardless of whether the new variables share a signature with the
	// previous ones, so that out-of-order completions of differently
	// keyed requests issued by the same watcher still gate against each
	// other (invariant 9 / scenario S5).
	gen uint64
}

// WatchQuery opens a live subscription to document (spec §6 watch_query,
// §4.6). It runs one initial fetch under the cache's configured policy
// (so a first-time watch can still reach the network), then subscribes
// the watcher dispatcher to the keys that fetch depended on. After that,
// a write touching one of those keys triggers a synchronous cache
// re-read and emission; the watcher never polls the network on its own
// (spec §4.6). Only Update, below, may fetch for new variables and emit
// that fetch's result.
func (c *Cache) WatchQuery(ctx context.Context, document string, vars map[string]any, canonical, skipInitial bool, onData func(ReadResult), onError func(error)) (*Watch, error) {
	p, err := c.compilePlan(document, "")
	if err != nil {
		return nil, err
	}

	w := &Watch{cache: c, plan: p, vars: vars, canonical: canonical, onData: onData, onError: onError}

	res, execErr := c.exec.Execute(ctx, p, graph.RootKey, vars, canonical, c.cfg.CachePolicy)
	if execErr != nil {
		if onError != nil {
			onError(execErr)
		}
	} else if !skipInitial {
		onData(ReadResult{Data: res.Data, Source: res.Source})
	}

	_, deps, _ := c.mat.Read(p, graph.RootKey, vars, canonical)
	w.id = c.disp.Subscribe(deps, w.onTouch)
	return w, nil
}

func (w *Watch) onTouch() {
	w.mu.Lock()
	vars := w.vars
	w.mu.Unlock()

	res := w.cache.readPlan(w.plan, graph.RootKey, vars, w.canonical)
	w.cache.disp.UpdateDeps(w.id, res.Dependencies)
	w.onData(res)
}

// Update re-points the watch at new variables (spec §6 watch_query
// "update"). It re-materializes from the cache immediately; if the cache
// has no data for the new variables it falls through to the cache's
// configured policy, which may reach the network in the background.
// Update bumps the watcher's own generation every call, and a network
// completion is applied (onData/onError invoked, deps re-registered)
// only if no later Update has superseded it by the time it returns —
// an older completion arriving after a newer Update is dropped silently,
// with no emission of any kind, regardless of completion order (spec
// §4.7 "latest-wins gating", invariant 9).
func (w *Watch) Update(vars map[string]any) {
	w.mu.Lock()
	w.vars = vars
	w.gen++
	myGen := w.gen
	w.mu.Unlock()

	cached := w.cache.readPlan(w.plan, graph.RootKey, vars, w.canonical)
	if cached.Source == "cache" {
		if w.superseded(myGen) {
			return
		}
		w.cache.disp.UpdateDeps(w.id, cached.Dependencies)
		w.onData(cached)
		return
	}

	go w.fetch(myGen, vars)
}

func (w *Watch) fetch(gen uint64, vars map[string]any) {
	res, err := w.cache.exec.Execute(context.Background(), w.plan, graph.RootKey, vars, w.canonical, w.cache.cfg.CachePolicy)
	if w.superseded(gen) {
		return
	}
	if err != nil {
		if w.onError != nil {
			w.onError(err)
		}
		return
	}
	deps := res.Deps
	if deps == nil {
		// A network-sourced Result carries no dependency set; take it from
		// a read of what that fetch just wrote.
		_, deps, _ = w.cache.mat.Read(w.plan, graph.RootKey, vars, w.canonical)
	}
	w.cache.disp.UpdateDeps(w.id, deps)
	w.onData(ReadResult{Data: res.Data, Source: res.Source})
}

func (w *Watch) superseded(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return gen != w.gen
}

// Unsubscribe removes the watch; no further onData/onError calls follow.
func (w *Watch) Unsubscribe() {
	w.cache.disp.Unsubscribe(w.id)
}
