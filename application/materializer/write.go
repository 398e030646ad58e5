package materializer

import (
	"graphcache/domain/connection"
	"graphcache/domain/graph"
	"graphcache/domain/plan"
)

// Write normalizes data (a GraphQL-shaped response or mutation payload)
// against p rooted at rootKey, writing entity records, connection pages,
// and inline-embedded sub-objects into the store (spec §4.5 "Write
// contract"). It runs inside a single store transaction so watchers see
// one coalesced broadcast, and returns the set of keys it touched.
func (m *Materializer) Write(p *plan.Plan, rootKey string, vars map[string]any, canonical bool, data map[string]any) map[string]struct{} {
	vars = p.ResolveVars(vars)
	w := &writer{store: m.store, vars: vars, canonical: canonical, touched: map[string]struct{}{}}

	m.store.Begin()
	rec := w.buildRecord(p.Fields, rootKey, data)
	m.store.PutRecord(rootKey, rec)
	w.touched[rootKey] = struct{}{}
	m.store.Commit()

	return w.touched
}

// writer carries the per-Write state (resolved vars, canonical flag,
// running touched set) through the recursive normalize walk.
type writer struct {
	store     *graph.Store
	vars      map[string]any
	canonical bool
	touched   map[string]struct{}
}

// buildRecord builds the attribute map for one record (or one inline
// sub-object) from data, writing any promoted child entities and
// connection pages it encounters along the way. connParent is the
// nearest enclosing entity key, used to address nested connection
// fields; it is carried through inline (null-keyed) objects unchanged,
// since they have no key of their own to address with.
func (w *writer) buildRecord(fields []*plan.PlanField, connParent string, data map[string]any) graph.Record {
	rec := graph.Record{}
	if tn, ok := data["__typename"]; ok {
		// Kept on inline objects too, so a later read can still filter
		// type-guarded fields against the concrete type (spec §4.1).
		rec["__typename"] = tn
	}

	for _, f := range fields {
		if f.FieldName == "__typename" {
			continue
		}
		raw, present := data[f.ResponseKey]
		if !present {
			continue
		}
		if f.IsConnection {
			w.writeConnection(f, connParent, raw)
			continue
		}
		rec[f.ResponseKey] = w.normalizeValue(f.Children, connParent, raw)
	}
	return rec
}

// normalizeValue turns one field's raw response value into the form a
// graph.Record stores it as: a Ref for a promotable object, an inlined
// Record for one whose extractor returns no key (spec §3 "inline
// null-keyed entries"), a slice for a list, or the scalar unchanged.
func (w *writer) normalizeValue(children []*plan.PlanField, connParent string, raw any) any {
	switch v := raw.(type) {
	case map[string]any:
		typename, _ := v["__typename"].(string)
		if key, ok := w.store.Identify(typename, v); ok {
			rec := w.buildRecord(children, key, v)
			w.store.PutRecord(key, rec)
			w.touched[key] = struct{}{}
			return graph.Ref{Key: key}
		}
		return w.buildRecord(children, connParent, v)
	case []any:
		out := make([]any, 0, len(v))
		for _, item := range v {
			out = append(out, w.normalizeValue(children, connParent, item))
		}
		return out
	default:
		return v
	}
}

// writeConnection normalizes one connection field's incoming page: it
// writes every edge's node entity, then folds the page into the strict
// and canonical records via connection.WritePage.
func (w *writer) writeConnection(f *plan.PlanField, parentKey string, raw any) {
	page, ok := raw.(map[string]any)
	if !ok {
		return
	}
	edgesRaw, _ := page["edges"].([]any)
	nodeChildren := edgeNodeFields(f)

	edges := make([]connection.EdgeInput, 0, len(edgesRaw))
	for _, e := range edgesRaw {
		edgeObj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		nodeObj, _ := edgeObj["node"].(map[string]any)
		typename, _ := nodeObj["__typename"].(string)
		nodeKey, ok := w.store.Identify(typename, nodeObj)
		if !ok {
			continue
		}
		rec := w.buildRecord(nodeChildren, nodeKey, nodeObj)
		w.store.PutRecord(nodeKey, rec)
		w.touched[nodeKey] = struct{}{}

		cursor, _ := edgeObj["cursor"].(string)
		extra := make(map[string]any, len(edgeObj))
		for k, v := range edgeObj {
			if k == "node" || k == "cursor" {
				continue
			}
			extra[k] = v
		}
		edges = append(edges, connection.EdgeInput{Cursor: cursor, NodeKey: nodeKey, Extra: extra})
	}

	pageInfo, _ := page["pageInfo"].(map[string]any)
	args := f.BuildArgsMap(w.vars)
	filterArgs := f.FilterArgsMap(w.vars)

	_, hasAfter := args["after"]
	_, hasBefore := args["before"]
	window := connection.Window{HasAfter: hasAfter, HasBefore: hasBefore, Replace: f.ReplaceMode}

	res := connection.WritePage(w.store, parentKey, f.ConnectionKeyName, args, filterArgs, edges, pageInfo, window)
	for _, k := range res.Touched {
		w.touched[k] = struct{}{}
	}
	w.touched[res.StrictKey] = struct{}{}
	w.touched[res.CanonicalKey] = struct{}{}
}

// edgeNodeFields drills into a connection field's compiled selection to
// find the "node" field's children, i.e. the selection set applied to
// each edge's entity.
func edgeNodeFields(f *plan.PlanField) []*plan.PlanField {
	for _, c := range f.Children {
		if c.ResponseKey != "edges" {
			continue
		}
		for _, nc := range c.Children {
			if nc.ResponseKey == "node" {
				return nc.Children
			}
		}
	}
	return nil
}
