// Package optimistic implements the layered overlay stack described in
// spec §4.4: an ordered list of revertible/committable layers sitting
// on top of the base graph.Store, each holding patches, tombstones, and
// connection-specific operations (add_node/remove_node/patch). It is
// grounded on the teacher's saga/unit-of-work idiom
// (backend/application/sagas/create_node_saga.go's ordered,
// compensable steps; backend/infrastructure/persistence/dynamodb/unit_of_work.go's
// Begin/transactItems/rollbackActions shape), generalized from a single
// in-flight transaction into a persistent stack of named layers.
package optimistic

import (
	"sync"

	"graphcache/domain/graph"
)

// Mode selects how a patch's partial record is applied (spec §4.4 patch).
type Mode int

const (
	Merge Mode = iota
	Replace
)

// Position selects where an optimistically added node lands in a
// connection's edge order (spec §4.4 "Connection ops").
type Position struct {
	Start  bool
	End    bool
	Before string // cursor
	After  string // cursor
}

type patchOp struct {
	key     string
	partial graph.Record
	mode    Mode
}

type connOp interface{ targetKey() string }

type addNodeOp struct {
	connKey  string
	nodeKey  string
	cursor   string
	position Position
}

func (o addNodeOp) targetKey() string { return o.connKey }

type removeNodeOp struct {
	connKey string
	nodeKey string
}

func (o removeNodeOp) targetKey() string { return o.connKey }

type patchConnOp struct {
	connKey string
	fn      func(graph.Record) graph.Record
}

func (o patchConnOp) targetKey() string { return o.connKey }

// ID identifies a layer for the lifetime of the Stack it belongs to.
type ID uint64

// Layer is one ordered set of optimistic edits (spec §4.4 "The stack is
// an ordered list of layers in the order they were created").
type Layer struct {
	id        ID
	patches   []patchOp
	tombstone map[string]struct{}
	connOps   []connOp
	committed bool
}

// OnChange mirrors graph.OnChange: invoked with the set of keys a stack
// mutation may have affected, once per create/commit/revert (spec §4.4
// "Layers participate in touched-set broadcasts").
type OnChange func(touched map[string]struct{})

// Stack is the live overlay on top of a base graph.Store.
type Stack struct {
	mu     sync.Mutex
	store  *graph.Store
	layers []*Layer
	nextID ID
	onChng OnChange
}

// New creates an empty Stack reading through to store.
func New(store *graph.Store, onChange OnChange) *Stack {
	if onChange == nil {
		onChange = func(map[string]struct{}) {}
	}
	return &Stack{store: store, onChng: onChange}
}

// Builder is the small API a modify_optimistic callback receives (spec
// §4.4 "f receives a small API").
type Builder struct {
	stack *Stack
	layer *Layer
}

// Patch records a patch op against key, applied in the layer's order on
// read (spec §4.4 patch(key, partial, {mode})).
func (b *Builder) Patch(key string, partial graph.Record, mode Mode) {
	b.layer.patches = append(b.layer.patches, patchOp{key: key, partial: partial, mode: mode})
}

// Delete installs a tombstone suppressing the base record at key for
// the duration of this layer (spec §4.4 delete(key)).
func (b *Builder) Delete(key string) {
	b.layer.tombstone[key] = struct{}{}
}

// Connection returns the connection-scoped sub-API for the canonical
// record identified by (parent, key, filters) (spec §4.4 "connection({parent, key, filters})").
func (b *Builder) Connection(parent, key string, filters any) ConnBuilder {
	return ConnBuilder{stack: b.stack, layer: b.layer, connKey: graph.ConnectionKey(parent, key, filters)}
}

// ConnBuilder is the connection-scoped sub-API (spec §4.4 "Connection ops").
type ConnBuilder struct {
	stack   *Stack
	layer   *Layer
	connKey string
}

// AddNode requires a resolvable (__typename, key) pair on node; it is
// silently ignored if either is missing (spec §4.4 add_node).
func (c ConnBuilder) AddNode(node map[string]any, position Position, cursor string) {
	typename, _ := node["__typename"].(string)
	if typename == "" {
		return
	}
	nodeKey, ok := c.stack.store.Identify(typename, node)
	if !ok {
		return
	}
	c.layer.connOps = append(c.layer.connOps, addNodeOp{connKey: c.connKey, nodeKey: nodeKey, cursor: cursor, position: position})
}

// RemoveNode removes any edge whose node equals {typename, id} from the
// canonical edge list; strict pages are unaffected (spec §4.4 remove_node).
func (c ConnBuilder) RemoveNode(typename, id string) {
	if typename == "" || id == "" {
		return
	}
	c.layer.connOps = append(c.layer.connOps, removeNodeOp{connKey: c.connKey, nodeKey: graph.EntityKey(typename, id)})
}

// Patch applies fn to the connection's current sibling attributes (spec
// §4.4 patch(fn)).
func (c ConnBuilder) Patch(fn func(graph.Record) graph.Record) {
	c.layer.connOps = append(c.layer.connOps, patchConnOp{connKey: c.connKey, fn: fn})
}

// Handle is returned from ModifyOptimistic: spec §4.4's tx, exposing
// Commit and Revert.
type Handle struct {
	stack *Stack
	layer *Layer
}

// ModifyOptimistic opens a new layer, lets f populate it through the
// Builder, then pushes it onto the stack as immediately visible (spec
// §4.4: "uncommitted layers are also visible to the creator immediately").
func (s *Stack) ModifyOptimistic(f func(*Builder)) *Handle {
	layer := &Layer{tombstone: map[string]struct{}{}}
	f(&Builder{stack: s, layer: layer})

	s.mu.Lock()
	s.nextID++
	layer.id = s.nextID
	s.layers = append(s.layers, layer)
	s.mu.Unlock()

	s.onChng(s.keysTouchedBy(layer))
	return &Handle{stack: s, layer: layer}
}

// Commit finalizes the layer. Per spec §4.4's observed semantics, an
// uncommitted layer is already active-visible, so Commit only flips the
// bookkeeping flag and re-broadcasts the layer's keys; it does not
// change what a read returns.
func (h *Handle) Commit() {
	h.stack.mu.Lock()
	h.layer.committed = true
	h.stack.mu.Unlock()
	h.stack.onChng(h.stack.keysTouchedBy(h.layer))
}

// Revert removes this layer only; later layers remain and their deltas
// keep applying to the resulting base (spec §4.4: "tx1.commit; tx2.commit;
// tx1.revert leaves tx2's changes visible").
func (h *Handle) Revert() {
	touched := h.stack.keysTouchedBy(h.layer)

	h.stack.mu.Lock()
	for i, l := range h.stack.layers {
		if l == h.layer {
			h.stack.layers = append(h.stack.layers[:i], h.stack.layers[i+1:]...)
			break
		}
	}
	h.stack.mu.Unlock()

	h.stack.onChng(touched)
}

func (s *Stack) keysTouchedBy(layer *Layer) map[string]struct{} {
	touched := map[string]struct{}{}
	for _, p := range layer.patches {
		touched[p.key] = struct{}{}
	}
	for k := range layer.tombstone {
		touched[k] = struct{}{}
	}
	for _, op := range layer.connOps {
		touched[op.targetKey()] = struct{}{}
	}
	return touched
}

// Read resolves a single record key through the base store and every
// active layer in order (spec §4.4: "merge(base_record, layer_k,
// layer_{k+1}, …) for all committed layers above it"; here every layer
// present on the stack is active, matching the uncommitted-visible
// semantics described above).
func (s *Stack) Read(key string) (graph.Record, bool) {
	s.mu.Lock()
	layers := append([]*Layer(nil), s.layers...)
	s.mu.Unlock()

	result, existed := s.store.GetRecord(key)
	if existed {
		result = result.Clone()
	}

	for _, layer := range layers {
		if _, dead := layer.tombstone[key]; dead {
			result = nil
			existed = false
		}
		for _, p := range layer.patches {
			if p.key != key {
				continue
			}
			switch p.mode {
			case Replace:
				result = p.partial.Clone()
			default:
				if result == nil {
					result = graph.Record{}
				}
				for k, v := range p.partial {
					result[k] = v
				}
			}
			existed = true
		}
	}
	return result, existed
}

// EdgeView is one resolved edge of an optimistically-overlaid
// connection: a node key and its cursor.
type EdgeView struct {
	NodeKey string
	Cursor  string
}

// ReadConnection resolves a canonical connection's sibling attributes
// and edge order through the base store and every layer's connection
// ops, in order (spec §4.4 "Connection ops").
func (s *Stack) ReadConnection(connKey string) (attrs graph.Record, edges []EdgeView, exists bool) {
	base, baseOK := s.Read(connKey)
	attrs = graph.Record{}
	if baseOK {
		for k, v := range base {
			if k != "edges" && k != "pageInfo" {
				attrs[k] = v
			}
		}
	}

	edges, edgesExist := s.baseEdges(connKey)
	exists = baseOK || edgesExist

	s.mu.Lock()
	layers := append([]*Layer(nil), s.layers...)
	s.mu.Unlock()

	for _, layer := range layers {
		for _, op := range layer.connOps {
			if op.targetKey() != connKey {
				continue
			}
			switch o := op.(type) {
			case addNodeOp:
				edges = insertEdge(edges, EdgeView{NodeKey: o.nodeKey, Cursor: o.cursor}, o.position)
				exists = true
			case removeNodeOp:
				edges = removeEdge(edges, o.nodeKey)
			case patchConnOp:
				attrs = o.fn(attrs.Clone())
			}
		}
	}
	return attrs, edges, exists
}

func (s *Stack) baseEdges(connKey string) ([]EdgeView, bool) {
	rec, ok := s.store.GetRecord(connKey)
	if !ok {
		return nil, false
	}
	refs, ok := rec["edges"].(graph.RefList)
	if !ok {
		return nil, false
	}
	out := make([]EdgeView, 0, len(refs.Keys))
	for _, key := range refs.Keys {
		edgeRec, ok := s.store.GetRecord(key)
		if !ok {
			continue
		}
		ref, ok := edgeRec["node"].(graph.Ref)
		if !ok {
			continue
		}
		cursor, _ := edgeRec["cursor"].(string)
		out = append(out, EdgeView{NodeKey: ref.Key, Cursor: cursor})
	}
	return out, true
}

func insertEdge(edges []EdgeView, e EdgeView, pos Position) []EdgeView {
	filtered := removeEdge(edges, e.NodeKey)
	switch {
	case pos.Start:
		return append([]EdgeView{e}, filtered...)
	case pos.Before != "":
		for i, edge := range filtered {
			if edge.Cursor == pos.Before {
				out := append([]EdgeView{}, filtered[:i]...)
				out = append(out, e)
				out = append(out, filtered[i:]...)
				return out
			}
		}
		return append(filtered, e)
	case pos.After != "":
		for i, edge := range filtered {
			if edge.Cursor == pos.After {
				out := append([]EdgeView{}, filtered[:i+1]...)
				out = append(out, e)
				out = append(out, filtered[i+1:]...)
				return out
			}
		}
		return append(filtered, e)
	default: // End
		return append(filtered, e)
	}
}

func removeEdge(edges []EdgeView, nodeKey string) []EdgeView {
	out := make([]EdgeView, 0, len(edges))
	for _, e := range edges {
		if e.NodeKey == nodeKey {
			continue
		}
		out = append(out, e)
	}
	return out
}
