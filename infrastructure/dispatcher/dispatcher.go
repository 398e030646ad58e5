// Package dispatcher implements the watcher/dependency engine: it tracks
// each live watch_query's dependency set and, when a write touches a key
// that set intersects, invokes the watcher's callback directly on the
// caller's own goroutine (spec §4.6 "single-threaded cooperative... the
// engine does not spawn threads... all emissions happen during a single
// microtask drain"). It is grounded on the teacher's WebSocket hub
// (backend/interfaces/websocket/hub.go) for the register/unregister/
// dependency-tracking shape, adapted from that hub's async per-connection
// fan-out to a synchronous, serial callback drain: a watch_query's
// onTouch runs to completion before the next intersecting watcher's does,
// and before Touch returns to the write that caused it, so no two
// watchers' re-materializations can ever overlap.
package dispatcher

import (
	"sync"

	"go.uber.org/zap"

	"graphcache/pkg/metrics"
)

// WatcherID identifies a live watch_query subscription.
type WatcherID uint64

type watcher struct {
	id      WatcherID
	deps    map[string]struct{}
	onTouch func()
}

// Dispatcher tracks live watchers and drains touches against them,
// synchronously. A single mutex guards the watchers map; it is held
// only while reading or mutating that map, never across an onTouch
// call, so a watcher re-materializing (which typically calls back into
// UpdateDeps) cannot deadlock against it.
type Dispatcher struct {
	logger  *zap.Logger
	metrics *metrics.Recorder

	mu       sync.Mutex
	watchers map[WatcherID]*watcher
	nextID   WatcherID
}

// New creates a Dispatcher.
func New(logger *zap.Logger, rec *metrics.Recorder) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger:   logger,
		metrics:  rec,
		watchers: make(map[WatcherID]*watcher),
	}
}

// Subscribe registers a new watcher with its initial dependency set and
// the callback to run, synchronously, when a write touches one of those
// keys.
func (d *Dispatcher) Subscribe(deps map[string]struct{}, onTouch func()) WatcherID {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	id := d.nextID
	d.watchers[id] = &watcher{id: id, deps: deps, onTouch: onTouch}
	return id
}

// Unsubscribe removes a watcher; no further onTouch calls will be made
// for it once this returns.
func (d *Dispatcher) Unsubscribe(id WatcherID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.watchers, id)
}

// UpdateDeps replaces a watcher's dependency set, called after each
// re-materialize so future touches are checked against the latest read.
func (d *Dispatcher) UpdateDeps(id WatcherID, deps map[string]struct{}) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if w, ok := d.watchers[id]; ok {
		w.deps = deps
	}
}

// Touch reports the set of record keys one write transaction affected
// (spec §4.2 Broadcast). It runs every intersecting watcher's onTouch
// serially, on the calling goroutine, and only returns once all of them
// have completed: by the time the write that caused the touch observes
// Touch returning, every affected watcher has already emitted, and no
// two watchers' emissions can ever run concurrently with each other.
func (d *Dispatcher) Touch(touched map[string]struct{}) {
	if len(touched) == 0 {
		return
	}

	d.mu.Lock()
	affected := make([]*watcher, 0, len(d.watchers))
	for _, w := range d.watchers {
		if intersects(w.deps, touched) {
			affected = append(affected, w)
		}
	}
	d.mu.Unlock()

	for _, w := range affected {
		w.onTouch()
		if d.metrics != nil {
			d.metrics.ObserveWatcherEmit()
		}
	}
}

func intersects(a, b map[string]struct{}) bool {
	small, big := a, b
	if len(big) < len(small) {
		small, big = big, small
	}
	for k := range small {
		if _, ok := big[k]; ok {
			return true
		}
	}
	return false
}
