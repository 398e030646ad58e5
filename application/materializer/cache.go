package materializer

import (
	"reflect"
	"sync"
)

// cacheEntry is one signature's last-materialized result plus the
// dependency set recorded with it (see depsFor).
type cacheEntry struct {
	data map[string]any
	deps map[string]struct{}
}

// resultCache holds the materializer's per-signature results and
// performs structural recycling: a freshly-walked sub-value that is
// deep-equal to the previous result's sub-value at the same position is
// replaced by the previous reference, so callers comparing by identity
// (e.g. a UI layer's memoization) see no change when nothing actually
// changed (spec §4.5 "structural recycling").
type resultCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
}

func newResultCache() *resultCache {
	return &resultCache{entries: make(map[string]*cacheEntry)}
}

func (c *resultCache) recycle(sig string, fresh map[string]any) map[string]any {
	c.mu.Lock()
	prev := c.entries[sig]
	c.mu.Unlock()
	if prev == nil {
		return fresh
	}
	return recycleValue(fresh, prev.data).(map[string]any)
}

func (c *resultCache) store(sig string, data map[string]any, deps map[string]struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[sig] = &cacheEntry{data: data, deps: deps}
}

func (c *resultCache) evict(sig string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, sig)
}

// depsFor returns the dependency set last recorded for sig, or nil.
func (c *resultCache) depsFor(sig string) map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.entries[sig]
	if e == nil {
		return nil
	}
	return e.deps
}

// recycleValue returns old in place of fresh wherever they are
// deep-equal, recursing into maps and slices so a change deep in one
// branch doesn't force new references along sibling branches.
func recycleValue(fresh, old any) any {
	switch f := fresh.(type) {
	case map[string]any:
		o, ok := old.(map[string]any)
		if !ok {
			return f
		}
		if reflect.DeepEqual(f, o) {
			return o
		}
		out := make(map[string]any, len(f))
		for k, v := range f {
			out[k] = recycleValue(v, o[k])
		}
		return out
	case []any:
		o, ok := old.([]any)
		if !ok {
			return f
		}
		if reflect.DeepEqual(f, o) {
			return o
		}
		out := make([]any, len(f))
		for i, v := range f {
			if i < len(o) {
				out[i] = recycleValue(v, o[i])
			} else {
				out[i] = v
			}
		}
		return out
	default:
		return fresh
	}
}
