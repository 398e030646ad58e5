package optimistic

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphcache/domain/graph"
)

func newStore() *graph.Store {
	return graph.New(graph.Config{}, nil)
}

func TestRead_PatchMergesOntoBase(t *testing.T) {
	s := newStore()
	s.PutRecord("User:1", graph.Record{"id": "1", "name": "Ada", "age": 30})
	stack := New(s, nil)

	stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"age": 31}, Merge)
	})

	rec, ok := stack.Read("User:1")
	require.True(t, ok)
	assert.Equal(t, "Ada", rec["name"])
	assert.Equal(t, 31, rec["age"])
}

func TestRead_ReplaceDropsPriorAttributes(t *testing.T) {
	s := newStore()
	s.PutRecord("User:1", graph.Record{"id": "1", "name": "Ada", "age": 30})
	stack := New(s, nil)

	stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"id": "1", "name": "Replaced"}, Replace)
	})

	rec, ok := stack.Read("User:1")
	require.True(t, ok)
	assert.Equal(t, "Replaced", rec["name"])
	_, hasAge := rec["age"]
	assert.False(t, hasAge, "replace mode must drop attributes absent from the partial")
}

func TestRead_DeleteTombstonesForLayerDuration(t *testing.T) {
	s := newStore()
	s.PutRecord("User:1", graph.Record{"id": "1"})
	stack := New(s, nil)

	h := stack.ModifyOptimistic(func(b *Builder) {
		b.Delete("User:1")
	})

	_, ok := stack.Read("User:1")
	assert.False(t, ok, "a tombstoned key must not resolve while its layer is active")

	h.Revert()

	_, ok = stack.Read("User:1")
	assert.True(t, ok, "reverting the layer should restore visibility of the base record")
}

func TestRevert_RemovesOnlyThatLayerLeavingLaterLayersVisible(t *testing.T) {
	s := newStore()
	s.PutRecord("User:1", graph.Record{"id": "1", "name": "Ada", "age": 30})
	stack := New(s, nil)

	h1 := stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"age": 31}, Merge)
	})
	h1.Commit()

	h2 := stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"name": "Ada2"}, Merge)
	})
	h2.Commit()

	h1.Revert()

	rec, ok := stack.Read("User:1")
	require.True(t, ok)
	assert.Equal(t, "Ada2", rec["name"], "tx2's patch must still apply after tx1 reverts")
	assert.Equal(t, 30, rec["age"], "tx1's patch should no longer apply after it reverts")
}

func TestModifyOptimistic_UncommittedLayerIsImmediatelyVisible(t *testing.T) {
	s := newStore()
	stack := New(s, nil)

	stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"name": "Pending"}, Merge)
	})

	rec, ok := stack.Read("User:1")
	require.True(t, ok)
	assert.Equal(t, "Pending", rec["name"])
}

func TestOnChange_FiresOnCreateCommitAndRevert(t *testing.T) {
	s := newStore()
	var events []map[string]struct{}
	stack := New(s, func(touched map[string]struct{}) {
		events = append(events, touched)
	})

	h := stack.ModifyOptimistic(func(b *Builder) {
		b.Patch("User:1", graph.Record{"name": "X"}, Merge)
	})
	h.Commit()
	h.Revert()

	require.Len(t, events, 3)
	for _, e := range events {
		_, ok := e["User:1"]
		assert.True(t, ok)
	}
}

func TestConnection_AddNodeRequiresResolvableKey(t *testing.T) {
	s := newStore()
	stack := New(s, nil)

	stack.ModifyOptimistic(func(b *Builder) {
		c := b.Connection("@", "posts", map[string]any{"category": "tech"})
		c.AddNode(map[string]any{"name": "missing typename"}, Position{End: true}, "cNew")
	})

	connKey := graph.ConnectionKey("@", "posts", map[string]any{"category": "tech"})
	_, edges, exists := stack.ReadConnection(connKey)
	assert.False(t, exists)
	assert.Empty(t, edges)
}

func TestConnection_AddNodeAtStartAndEnd(t *testing.T) {
	s := newStore()
	connKey := graph.ConnectionKey("@", "posts", map[string]any{"category": "tech"})
	s.PutRecord(connKey, graph.Record{"edges": graph.RefList{Keys: []string{graph.EdgeKey(connKey, 0)}}})
	s.PutRecord(graph.EdgeKey(connKey, 0), graph.Record{"cursor": "c1", "node": graph.Ref{Key: "Post:1"}})
	s.PutRecord("Post:1", graph.Record{"id": "1", "__typename": "Post"})
	s.PutRecord("Post:2", graph.Record{"id": "2", "__typename": "Post"})
	s.PutRecord("Post:3", graph.Record{"id": "3", "__typename": "Post"})

	stack := New(s, nil)
	stack.ModifyOptimistic(func(b *Builder) {
		c := b.Connection("@", "posts", map[string]any{"category": "tech"})
		c.AddNode(map[string]any{"__typename": "Post", "id": "3"}, Position{Start: true}, "c3")
		c.AddNode(map[string]any{"__typename": "Post", "id": "2"}, Position{End: true}, "c2")
	})

	_, edges, exists := stack.ReadConnection(connKey)
	require.True(t, exists)
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.NodeKey
	}
	assert.Equal(t, []string{"Post:3", "Post:1", "Post:2"}, keys)
}

func TestConnection_AddNodeBeforeAndAfterCursor(t *testing.T) {
	s := newStore()
	connKey := graph.ConnectionKey("@", "posts", map[string]any{"category": "tech"})
	edgeKeys := make([]string, 4)
	for i := 0; i < 4; i++ {
		edgeKeys[i] = graph.EdgeKey(connKey, i)
		s.PutRecord(edgeKeys[i], graph.Record{
			"cursor": fmt.Sprintf("c%d", i+1),
			"node":   graph.Ref{Key: fmt.Sprintf("Post:%d", i+1)},
		})
		s.PutRecord(fmt.Sprintf("Post:%d", i+1), graph.Record{"id": fmt.Sprintf("%d", i+1), "__typename": "Post"})
	}
	s.PutRecord(connKey, graph.Record{"edges": graph.RefList{Keys: edgeKeys}})
	s.PutRecord("Post:5", graph.Record{"id": "5", "__typename": "Post"})
	s.PutRecord("Post:6", graph.Record{"id": "6", "__typename": "Post"})

	stack := New(s, nil)
	stack.ModifyOptimistic(func(b *Builder) {
		c := b.Connection("@", "posts", map[string]any{"category": "tech"})
		// c1 is the first edge in the list: a binary-search-based lookup
		// over this arbitrary-order slice would report it "not found" and
		// silently append instead of inserting at the front.
		c.AddNode(map[string]any{"__typename": "Post", "id": "5"}, Position{Before: "c1"}, "c0")
		c.AddNode(map[string]any{"__typename": "Post", "id": "6"}, Position{After: "c2"}, "c2b")
	})

	_, edges, exists := stack.ReadConnection(connKey)
	require.True(t, exists)
	keys := make([]string, len(edges))
	for i, e := range edges {
		keys[i] = e.NodeKey
	}
	assert.Equal(t, []string{"Post:5", "Post:1", "Post:2", "Post:6", "Post:3", "Post:4"}, keys)
}

func TestConnection_RemoveNodeRemovesFromCanonicalOnly(t *testing.T) {
	s := newStore()
	connKey := graph.ConnectionKey("@", "posts", map[string]any{"category": "tech"})
	edgeKey := graph.EdgeKey(connKey, 0)
	s.PutRecord(connKey, graph.Record{"edges": graph.RefList{Keys: []string{edgeKey}}})
	s.PutRecord(edgeKey, graph.Record{"cursor": "c1", "node": graph.Ref{Key: "Post:1"}})

	stack := New(s, nil)
	stack.ModifyOptimistic(func(b *Builder) {
		c := b.Connection("@", "posts", map[string]any{"category": "tech"})
		c.RemoveNode("Post", "1")
	})

	_, edges, _ := stack.ReadConnection(connKey)
	assert.Empty(t, edges)

	rec, ok := s.GetRecord(connKey)
	require.True(t, ok)
	refs := rec["edges"].(graph.RefList)
	assert.Len(t, refs.Keys, 1, "the base canonical record is untouched; remove_node acts only on the overlay")
}

func TestConnection_PatchAppliesToSiblingAttributes(t *testing.T) {
	s := newStore()
	connKey := graph.ConnectionKey("@", "posts", map[string]any{"category": "tech"})
	s.PutRecord(connKey, graph.Record{"totalCount": 5})

	stack := New(s, nil)
	stack.ModifyOptimistic(func(b *Builder) {
		c := b.Connection("@", "posts", map[string]any{"category": "tech"})
		c.Patch(func(r graph.Record) graph.Record {
			r["totalCount"] = r["totalCount"].(int) + 1
			return r
		})
	})

	attrs, _, _ := stack.ReadConnection(connKey)
	assert.Equal(t, 6, attrs["totalCount"])
}
