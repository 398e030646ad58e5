// Package connection implements the strict/canonical connection model
// described in spec §4.3: a windowed list field is represented by two
// parallel records, a strict page keyed by its full arguments and a
// canonical record keyed by filter identity alone. It is grounded on
// the teacher's read-model shape in
// backend/application/queries/models/node_connections.go (edge/page
// DTOs) and backend/domain/core/entities/edge_types.go (edge direction
// and weight as edge-level metadata, the model for EdgeInput.Extra).
package connection

import (
	"graphcache/domain/graph"
)

// EdgeInput is one edge of an incoming connection page, prior to
// normalization: a cursor, a reference to the already-identified node
// record, and any sibling edge-level attributes (e.g. a relevance
// score) to be merged onto the edge record.
type EdgeInput struct {
	Cursor  string
	NodeKey string
	Extra   map[string]any
}

// Window describes the pagination signals of an incoming page, used to
// choose how it folds into the canonical record (spec §4.3 "On write"
// step 3).
type Window struct {
	HasAfter  bool
	HasBefore bool
	// Replace forces canonical replacement regardless of cursor
	// presence; set from a plan field's ReplaceMode.
	Replace bool
}

// WriteResult reports the keys written and touched by WritePage, for
// the materializer to fold into its touched-set return value.
type WriteResult struct {
	StrictKey    string
	CanonicalKey string
	Touched      []string
}

// WritePage normalizes one incoming connection page: it writes edge
// child records and the strict page record unconditionally, then folds
// the page into the canonical record per the dedup and pageInfo-merge
// rules in spec §4.3. args is the field's full built arguments (used
// for the strict key); filterArgs is the connection-identity subset
// (used for the canonical key). Both must already be stable-JSON-ready
// plain values (maps/slices/scalars), as produced by
// plan.PlanField.BuildArgsMap/FilterArgsMap.
func WritePage(store *graph.Store, parentKey, fieldName string, args, filterArgs any, edges []EdgeInput, pageInfo map[string]any, window Window) WriteResult {
	strictKey := graph.StrictPageKey(parentKey, fieldName, args)
	canonicalKey := graph.ConnectionKey(parentKey, fieldName, filterArgs)

	touched := map[string]struct{}{}

	strictEdgeKeys := make([]string, len(edges))
	for i, e := range edges {
		key := graph.EdgeKey(strictKey, i)
		store.PutRecord(key, edgeRecord(e))
		strictEdgeKeys[i] = key
		touched[key] = struct{}{}
	}
	strictPageInfoKey := graph.PageInfoKey(strictKey)
	store.PutRecord(strictPageInfoKey, pageInfo)
	touched[strictPageInfoKey] = struct{}{}

	store.PutRecord(strictKey, graph.Record{
		"edges":    graph.RefList{Keys: strictEdgeKeys},
		"pageInfo": graph.Ref{Key: strictPageInfoKey},
	})
	touched[strictKey] = struct{}{}

	for k := range foldCanonical(store, canonicalKey, edges, pageInfo, window) {
		touched[k] = struct{}{}
	}

	out := make([]string, 0, len(touched))
	for k := range touched {
		out = append(out, k)
	}
	return WriteResult{StrictKey: strictKey, CanonicalKey: canonicalKey, Touched: out}
}

func edgeRecord(e EdgeInput) graph.Record {
	r := graph.Record{}
	for k, v := range e.Extra {
		r[k] = v
	}
	r["cursor"] = e.Cursor
	r["node"] = graph.Ref{Key: e.NodeKey}
	return r
}

// foldCanonical applies one page's edges into the canonical connection
// record, returning the set of keys it touched.
func foldCanonical(store *graph.Store, canonicalKey string, edges []EdgeInput, pageInfo map[string]any, window Window) map[string]struct{} {
	touched := map[string]struct{}{}

	if window.Replace || (!window.HasAfter && !window.HasBefore) {
		replaceCanonical(store, canonicalKey, edges, pageInfo, touched)
		return touched
	}

	// Dedup on node identity: a node already present keeps its canonical
	// position; rewriteCanonicalOrder below still rewrites its edge
	// record from the incoming page so the new metadata wins.
	existingOrder, existingByNode := readCanonicalEdges(store, canonicalKey)

	var fresh []EdgeInput
	for _, e := range edges {
		if _, ok := existingByNode[e.NodeKey]; ok {
			continue
		}
		fresh = append(fresh, e)
	}

	var newOrder []string // node keys, in final canonical order
	if window.HasBefore {
		newOrder = append(newOrder, nodeKeysOf(fresh)...)
		newOrder = append(newOrder, existingOrder...)
	} else { // HasAfter
		newOrder = append(newOrder, existingOrder...)
		newOrder = append(newOrder, nodeKeysOf(fresh)...)
	}

	rewriteCanonicalOrder(store, canonicalKey, newOrder, edges, touched)
	mergeCanonicalPageInfo(store, canonicalKey, pageInfo, window, touched)
	return touched
}

// nodeKeysOf returns the node keys of a slice of edges, in order.
func nodeKeysOf(edges []EdgeInput) []string {
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.NodeKey
	}
	return keys
}

// readCanonicalEdges returns the canonical record's current edge order
// (as node keys) and a node-key → index map, or empty/nil if the
// canonical record does not yet exist.
func readCanonicalEdges(store *graph.Store, canonicalKey string) ([]string, map[string]int) {
	rec, ok := store.GetRecord(canonicalKey)
	if !ok {
		return nil, map[string]int{}
	}
	refs, ok := rec["edges"].(graph.RefList)
	if !ok {
		return nil, map[string]int{}
	}
	order := make([]string, 0, len(refs.Keys))
	byNode := make(map[string]int, len(refs.Keys))
	for i, edgeKey := range refs.Keys {
		edgeRec, ok := store.GetRecord(edgeKey)
		if !ok {
			continue
		}
		if ref, ok := edgeRec["node"].(graph.Ref); ok {
			order = append(order, ref.Key)
			byNode[ref.Key] = i
		}
	}
	return order, byNode
}

// rewriteCanonicalOrder rebuilds the canonical edge record list to
// match newOrder (a sequence of node keys), reusing already-merged
// edge attributes for nodes that were present before and writing fresh
// edge records (from incoming) for newly introduced ones.
func rewriteCanonicalOrder(store *graph.Store, canonicalKey string, newOrder []string, incoming []EdgeInput, touched map[string]struct{}) {
	incomingByNode := make(map[string]EdgeInput, len(incoming))
	for _, e := range incoming {
		incomingByNode[e.NodeKey] = e
	}

	_, existingByNode := readCanonicalEdges(store, canonicalKey)

	// Take the existing edge records before any position is rewritten: a
	// node's new position can be another node's old one.
	oldRecs := make(map[string]graph.Record, len(existingByNode))
	for nodeKey, oldIdx := range existingByNode {
		if oldRec, ok := store.GetRecord(graph.EdgeKey(canonicalKey, oldIdx)); ok {
			oldRecs[nodeKey] = oldRec
		}
	}

	keys := make([]string, len(newOrder))
	for i, nodeKey := range newOrder {
		key := graph.EdgeKey(canonicalKey, i)
		keys[i] = key
		if e, ok := incomingByNode[nodeKey]; ok {
			store.PutRecord(key, edgeRecord(e))
		} else if oldRec, ok := oldRecs[nodeKey]; ok {
			store.PutRecord(key, oldRec)
		}
		touched[key] = struct{}{}
	}

	store.PutRecord(canonicalKey, graph.Record{
		"edges": graph.RefList{Keys: keys},
	})
	touched[canonicalKey] = struct{}{}
}

func replaceCanonical(store *graph.Store, canonicalKey string, edges []EdgeInput, pageInfo map[string]any, touched map[string]struct{}) {
	keys := make([]string, len(edges))
	for i, e := range edges {
		key := graph.EdgeKey(canonicalKey, i)
		store.PutRecord(key, edgeRecord(e))
		keys[i] = key
		touched[key] = struct{}{}
	}
	store.PutRecord(canonicalKey, graph.Record{
		"edges": graph.RefList{Keys: keys},
	})
	touched[canonicalKey] = struct{}{}

	pageInfoKey := graph.PageInfoKey(canonicalKey)
	store.PutRecord(pageInfoKey, pageInfo)
	touched[pageInfoKey] = struct{}{}
	store.PutRecord(canonicalKey, graph.Record{"pageInfo": graph.Ref{Key: pageInfoKey}})
}

// mergeCanonicalPageInfo applies the pageInfo merge rule (spec §4.3):
// startCursor from the leftmost contributing page, endCursor from the
// rightmost, hasNextPage/hasPreviousPage from the extremes, and every
// other sibling attribute overwritten from the latest page.
func mergeCanonicalPageInfo(store *graph.Store, canonicalKey string, pageInfo map[string]any, window Window, touched map[string]struct{}) {
	pageInfoKey := graph.PageInfoKey(canonicalKey)
	existing, _ := store.GetRecord(pageInfoKey)
	merged := graph.Record{}
	for k, v := range existing {
		merged[k] = v
	}
	for k, v := range pageInfo {
		switch k {
		case "startCursor":
			if window.HasBefore || existing == nil {
				merged[k] = v
			}
		case "endCursor":
			if window.HasAfter || existing == nil {
				merged[k] = v
			}
		case "hasPreviousPage":
			if window.HasBefore || existing == nil {
				merged[k] = v
			}
		case "hasNextPage":
			if window.HasAfter || existing == nil {
				merged[k] = v
			}
		default:
			merged[k] = v
		}
	}
	store.PutRecord(pageInfoKey, merged)
	store.PutRecord(canonicalKey, graph.Record{"pageInfo": graph.Ref{Key: pageInfoKey}})
	touched[pageInfoKey] = struct{}{}
	touched[canonicalKey] = struct{}{}
}
