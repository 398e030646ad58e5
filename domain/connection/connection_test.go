package connection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphcache/domain/graph"
)

func newStore() *graph.Store {
	return graph.New(graph.Config{}, nil)
}

func TestWritePage_WritesStrictAndCanonicalOnFirstPage(t *testing.T) {
	s := newStore()
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 2},
		map[string]any{"category": "tech"},
		[]EdgeInput{
			{Cursor: "c1", NodeKey: "Post:1"},
			{Cursor: "c2", NodeKey: "Post:2"},
		},
		map[string]any{"startCursor": "c1", "endCursor": "c2", "hasNextPage": true, "hasPreviousPage": false},
		Window{},
	)

	strict, ok := s.GetRecord(res.StrictKey)
	require.True(t, ok)
	edges, ok := strict["edges"].(graph.RefList)
	require.True(t, ok)
	assert.Len(t, edges.Keys, 2)

	canonical, ok := s.GetRecord(res.CanonicalKey)
	require.True(t, ok)
	cEdges, ok := canonical["edges"].(graph.RefList)
	require.True(t, ok)
	assert.Len(t, cEdges.Keys, 2)
}

func TestWritePage_AppendAddsNewEdgesAfterExisting(t *testing.T) {
	s := newStore()
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 2},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c1", NodeKey: "Post:1"}, {Cursor: "c2", NodeKey: "Post:2"}},
		map[string]any{"startCursor": "c1", "endCursor": "c2", "hasNextPage": true},
		Window{},
	)
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 2, "after": "c2"},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c3", NodeKey: "Post:3"}},
		map[string]any{"endCursor": "c3", "hasNextPage": false},
		Window{HasAfter: true},
	)

	order := canonicalNodeOrder(t, s, res.CanonicalKey)
	assert.Equal(t, []string{"Post:1", "Post:2", "Post:3"}, order)
}

func TestWritePage_PrependAddsNewEdgesBeforeExisting(t *testing.T) {
	s := newStore()
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "last": 2},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c2", NodeKey: "Post:2"}, {Cursor: "c3", NodeKey: "Post:3"}},
		map[string]any{"startCursor": "c2", "hasPreviousPage": true},
		Window{},
	)
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "last": 1, "before": "c2"},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c1", NodeKey: "Post:1"}},
		map[string]any{"startCursor": "c1", "hasPreviousPage": false},
		Window{HasBefore: true},
	)

	order := canonicalNodeOrder(t, s, res.CanonicalKey)
	assert.Equal(t, []string{"Post:1", "Post:2", "Post:3"}, order)
}

func TestWritePage_NoCursorReplacesCanonical(t *testing.T) {
	s := newStore()
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 2},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c1", NodeKey: "Post:1"}, {Cursor: "c2", NodeKey: "Post:2"}},
		map[string]any{"startCursor": "c1", "endCursor": "c2"},
		Window{},
	)
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c9", NodeKey: "Post:9"}},
		map[string]any{"startCursor": "c9", "endCursor": "c9"},
		Window{},
	)

	order := canonicalNodeOrder(t, s, res.CanonicalKey)
	assert.Equal(t, []string{"Post:9"}, order)
}

func TestWritePage_DedupMergesMetadataWithoutMovingPosition(t *testing.T) {
	s := newStore()
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 3},
		map[string]any{"category": "tech"},
		[]EdgeInput{
			{Cursor: "c1", NodeKey: "Post:1"},
			{Cursor: "c2", NodeKey: "Post:2"},
			{Cursor: "c3", NodeKey: "Post:3"},
		},
		map[string]any{"startCursor": "c1", "endCursor": "c3"},
		Window{},
	)
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1, "after": "c3"},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c2b", NodeKey: "Post:2", Extra: map[string]any{"score": 0.9}}},
		map[string]any{"endCursor": "c2b"},
		Window{HasAfter: true},
	)

	order := canonicalNodeOrder(t, s, res.CanonicalKey)
	assert.Equal(t, []string{"Post:1", "Post:2", "Post:3"}, order, "dedup must not move the existing edge's position")

	idx := indexOf(order, "Post:2")
	edgeRec, ok := s.GetRecord(graph.EdgeKey(res.CanonicalKey, idx))
	require.True(t, ok)
	assert.Equal(t, "c2b", edgeRec["cursor"])
	assert.Equal(t, 0.9, edgeRec["score"])
}

func TestWritePage_StrictPageUnaffectedByLaterCanonicalWrite(t *testing.T) {
	s := newStore()
	first := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c1", NodeKey: "Post:1"}},
		map[string]any{"endCursor": "c1"},
		Window{},
	)
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1, "after": "c1"},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c2", NodeKey: "Post:2"}},
		map[string]any{"endCursor": "c2"},
		Window{HasAfter: true},
	)

	strict, ok := s.GetRecord(first.StrictKey)
	require.True(t, ok)
	edges := strict["edges"].(graph.RefList)
	assert.Len(t, edges.Keys, 1, "an earlier strict page must not gain the later page's edges")
}

func TestWritePage_PageInfoMergeRule(t *testing.T) {
	s := newStore()
	WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c1", NodeKey: "Post:1"}},
		map[string]any{"startCursor": "c1", "endCursor": "c1", "hasNextPage": true, "hasPreviousPage": false},
		Window{},
	)
	res := WritePage(s, "@", "posts",
		map[string]any{"category": "tech", "first": 1, "after": "c1"},
		map[string]any{"category": "tech"},
		[]EdgeInput{{Cursor: "c2", NodeKey: "Post:2"}},
		map[string]any{"endCursor": "c2", "hasNextPage": false},
		Window{HasAfter: true},
	)

	pageInfo, ok := s.GetRecord(graph.PageInfoKey(res.CanonicalKey))
	require.True(t, ok)
	assert.Equal(t, "c1", pageInfo["startCursor"], "startCursor should remain from the leftmost page")
	assert.Equal(t, "c2", pageInfo["endCursor"], "endCursor should come from the rightmost page")
	assert.Equal(t, false, pageInfo["hasNextPage"])
}

func canonicalNodeOrder(t *testing.T, s *graph.Store, canonicalKey string) []string {
	t.Helper()
	rec, ok := s.GetRecord(canonicalKey)
	require.True(t, ok)
	refs, ok := rec["edges"].(graph.RefList)
	require.True(t, ok)
	out := make([]string, 0, len(refs.Keys))
	for _, k := range refs.Keys {
		edgeRec, ok := s.GetRecord(k)
		require.True(t, ok)
		ref, ok := edgeRec["node"].(graph.Ref)
		require.True(t, ok)
		out = append(out, ref.Key)
	}
	return out
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}
