// Package materializer implements the read/write contract of spec §4.5:
// reading a Plan back out of the graph.Store as GraphQL-shaped nested
// maps, a result cache keyed by (plan_id, canonical flag, root_id,
// vars_key) with structural recycling, and the write-contract normalize
// step that turns response/mutation data into entity records.
//
// It is grounded on the teacher's read-model assembly in
// backend/application/queries/models/node_connections.go (flattening a
// DynamoDB item graph into a nested response shape) and the dependency
// bookkeeping of backend/interfaces/websocket/hub.go (the touched-set
// idiom reused here for cache invalidation).
package materializer

import (
	"graphcache/domain/graph"
	"graphcache/domain/plan"
	graphErrors "graphcache/pkg/errors"
)

// Materializer owns the result cache for one graph.Store.
type Materializer struct {
	store *graph.Store
	cache *resultCache
}

// New creates a Materializer reading through store.
func New(store *graph.Store) *Materializer {
	return &Materializer{store: store, cache: newResultCache()}
}

// Read materializes p rooted at rootKey. canonical selects whether
// connection fields resolve through their canonical record (filter
// identity only) or their strict page record (full arguments) (spec
// §4.3). It returns graphErrors.CacheMiss, never a data error, when any
// record the walk needs is absent — the facade maps that to a
// {source: none} result rather than surfacing it.
func (m *Materializer) Read(p *plan.Plan, rootKey string, vars map[string]any, canonical bool) (map[string]any, map[string]struct{}, error) {
	vars = p.ResolveVars(vars)
	sig := p.MakeSignature(canonical, rootKey, vars)
	deps := map[string]struct{}{}

	data, ok := m.walkRecord(p.Fields, rootKey, vars, canonical, deps)
	if !ok {
		m.cache.evict(sig)
		return nil, deps, graphErrors.CacheMiss
	}

	recycled := m.cache.recycle(sig, data)
	m.cache.store(sig, recycled, deps)
	return recycled, deps, nil
}

// Invalidate drops any cached result keyed by sig, so the next Read under
// sig has no previous result to recycle references from. Read walks the
// store on every call whether or not an entry exists.
func (m *Materializer) Invalidate(sig string) {
	m.cache.evict(sig)
}

func (m *Materializer) walkRecord(fields []*plan.PlanField, key string, vars map[string]any, canonical bool, deps map[string]struct{}) (map[string]any, bool) {
	attrs, ok := m.store.GetRecord(key)
	if !ok {
		return nil, false
	}
	deps[key] = struct{}{}

	typename, _ := attrs["__typename"].(string)
	return m.walkFields(fields, typename, attrs, key, vars, canonical, deps)
}

// walkFields resolves fields against attrs. ownerKey is the record key
// attrs came from (used only to build nested connection keys); typename
// filters out fields whose TypeGuard doesn't apply to this concrete type.
func (m *Materializer) walkFields(fields []*plan.PlanField, typename string, attrs graph.Record, ownerKey string, vars map[string]any, canonical bool, deps map[string]struct{}) (map[string]any, bool) {
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if f.TypeGuard != "" && !m.store.MatchesTypeGuard(f.TypeGuard, typename) {
			continue
		}

		if f.FieldName == "__typename" {
			out[f.ResponseKey] = attrs["__typename"]
			continue
		}

		if f.IsConnection {
			connKey := m.connectionKey(f, ownerKey, vars, canonical)
			sub, ok := m.walkRecord(f.Children, connKey, vars, canonical, deps)
			if !ok {
				return nil, false
			}
			out[f.ResponseKey] = sub
			continue
		}

		raw, present := attrs[f.ResponseKey]
		if !present {
			out[f.ResponseKey] = nil
			continue
		}
		val, ok := m.resolveValue(raw, f.Children, vars, canonical, deps)
		if !ok {
			return nil, false
		}
		out[f.ResponseKey] = val
	}
	return out, true
}

func (m *Materializer) connectionKey(f *plan.PlanField, parentKey string, vars map[string]any, canonical bool) string {
	if canonical {
		return graph.ConnectionKey(parentKey, f.ConnectionKeyName, f.FilterArgsMap(vars))
	}
	return graph.StrictPageKey(parentKey, f.ConnectionKeyName, f.BuildArgsMap(vars))
}

func (m *Materializer) resolveValue(raw any, children []*plan.PlanField, vars map[string]any, canonical bool, deps map[string]struct{}) (any, bool) {
	switch v := raw.(type) {
	case graph.Ref:
		return m.walkRecord(children, v.Key, vars, canonical, deps)
	case graph.RefList:
		out := make([]any, 0, len(v.Keys))
		for _, k := range v.Keys {
			item, ok := m.walkRecord(children, k, vars, canonical, deps)
			if !ok {
				return nil, false
			}
			out = append(out, item)
		}
		return out, true
	case graph.Record:
		typename, _ := v["__typename"].(string)
		return m.walkFields(children, typename, v, "", vars, canonical, deps)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			val, ok := m.resolveValue(item, children, vars, canonical, deps)
			if !ok {
				return nil, false
			}
			out = append(out, val)
		}
		return out, true
	default:
		return v, true
	}
}
