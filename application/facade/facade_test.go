package facade

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphcache/application/execution"
	"graphcache/domain/optimistic"
)

const userQuery = `
	query {
		viewer {
			id
			name
		}
	}
`

type fakeTransport struct {
	mu       sync.Mutex
	response map[string]any
}

func (f *fakeTransport) Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.response, nil
}

func newTestCache(t *testing.T, transport execution.Transport) *Cache {
	t.Helper()
	c := New(Config{CachePolicy: execution.CacheFirst}, transport)
	t.Cleanup(c.Close)
	return c
}

func TestCache_WriteQueryThenReadQueryRoundTrips(t *testing.T) {
	c := newTestCache(t, nil)

	touched, err := c.WriteQuery(userQuery, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)
	assert.Contains(t, touched, "User:1")

	res, err := c.ReadQuery(userQuery, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "cache", res.Source)
	assert.Equal(t, "Ada", res.Data["viewer"].(map[string]any)["name"])
}

func TestCache_ReadQueryMissReturnsSourceNone(t *testing.T) {
	c := newTestCache(t, nil)

	res, err := c.ReadQuery(userQuery, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "none", res.Source)
	assert.Nil(t, res.Data)
}

func TestCache_WriteFragmentThenReadFragmentRoundTrips(t *testing.T) {
	c := newTestCache(t, nil)

	_, err := c.WriteFragment("User:1", "fragment F on User { id name }", map[string]any{
		"__typename": "User", "id": "1", "name": "Grace",
	})
	require.NoError(t, err)

	data, err := c.ReadFragment("User:1", "fragment F on User { id name }")
	require.NoError(t, err)
	assert.Equal(t, "Grace", data["name"])
}

func TestCache_Identify(t *testing.T) {
	c := newTestCache(t, nil)
	key, ok := c.Identify("User", map[string]any{"id": "42"})
	require.True(t, ok)
	assert.Equal(t, "User:42", key)
}

func TestCache_ExecuteQueryGoesToNetworkThenServesFromCache(t *testing.T) {
	transport := &fakeTransport{response: map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}}
	c := newTestCache(t, transport)

	res, err := c.ExecuteQuery(context.Background(), userQuery, map[string]any{}, execution.CacheFirst)
	require.NoError(t, err)
	assert.Equal(t, "network", res.Source)
	assert.Equal(t, "Ada", res.Data["viewer"].(map[string]any)["name"])

	res2, err := c.ExecuteQuery(context.Background(), userQuery, map[string]any{}, execution.CacheFirst)
	require.NoError(t, err)
	assert.Equal(t, "cache", res2.Source)
}

func TestCache_ExecuteMutationRejectsNonMutationDocument(t *testing.T) {
	c := newTestCache(t, nil)
	_, err := c.ExecuteMutation(context.Background(), userQuery, map[string]any{})
	require.Error(t, err)
}

func TestCache_ExecuteMutationNormalizesResponse(t *testing.T) {
	transport := &fakeTransport{response: map[string]any{
		"updateUser": map[string]any{"__typename": "User", "id": "1", "name": "Updated"},
	}}
	c := newTestCache(t, transport)

	res, err := c.ExecuteMutation(context.Background(), `mutation { updateUser { id name } }`, map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "Updated", res.Data["updateUser"].(map[string]any)["name"])
}

func TestCache_ModifyOptimisticIsVisibleThroughReadOptimistic(t *testing.T) {
	c := newTestCache(t, nil)
	_, err := c.WriteQuery(userQuery, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)

	tx := c.ModifyOptimistic(func(b *optimistic.Builder) {
		b.Patch("User:1", map[string]any{"name": "Pending"}, optimistic.Merge)
	})

	rec, ok := c.ReadOptimistic("User:1")
	require.True(t, ok)
	assert.Equal(t, "Pending", rec["name"])

	tx.Revert()
	rec, ok = c.ReadOptimistic("User:1")
	require.True(t, ok)
	assert.Equal(t, "Ada", rec["name"])
}

func TestCache_DehydrateHydrateRoundTrips(t *testing.T) {
	c := newTestCache(t, nil)
	_, err := c.WriteQuery(userQuery, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)

	snap := c.Dehydrate()
	require.NotEmpty(t, snap.Entries)

	c2 := newTestCache(t, nil)
	c2.Hydrate(snap)

	res, err := c2.ReadQuery(userQuery, map[string]any{}, false)
	require.NoError(t, err)
	assert.Equal(t, "Ada", res.Data["viewer"].(map[string]any)["name"])
}

func TestCache_WatchQueryEmitsOnSubsequentWrite(t *testing.T) {
	c := newTestCache(t, nil)
	_, err := c.WriteQuery(userQuery, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)

	var mu sync.Mutex
	var last ReadResult
	calls := 0
	w, err := c.WatchQuery(context.Background(), userQuery, map[string]any{}, false, true, func(r ReadResult) {
		mu.Lock()
		last = r
		calls++
		mu.Unlock()
	}, nil)
	require.NoError(t, err)
	defer w.Unsubscribe()

	_, err = c.WriteQuery(userQuery, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Lovelace"},
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return calls == 1
	}, time.Second, time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "Lovelace", last.Data["viewer"].(map[string]any)["name"])
}

// varTransport resolves per call based on the "first" variable, letting a
// test control each call's latency and outcome independently.
type varTransport struct {
	responses map[int]varResponse
}

type varResponse struct {
	delay time.Duration
	data  map[string]any
	err   error
}

func (v *varTransport) Execute(ctx context.Context, query string, vars map[string]any) (map[string]any, error) {
	first := vars["first"].(int)
	r := v.responses[first]
	time.Sleep(r.delay)
	if r.err != nil {
		return nil, r.err
	}
	return r.data, nil
}

// TestCache_WatchUpdateLatestWinsAcrossThreeRequests reproduces spec
// scenario S5: three Update calls issued back to back against one watch
// (A first=2 slow/data, B first=3 fast/error, C first=4 medium/data).
// Only C's data must be visible at the end and no error must ever reach
// onError, since B's generation is already stale (superseded by C) by
// the time it completes, regardless of how quickly it finished.
func TestCache_WatchUpdateLatestWinsAcrossThreeRequests(t *testing.T) {
	const postsQuery = `
		query($first: Int) {
			posts(first: $first) {
				edges { cursor node { id title } }
				pageInfo { endCursor hasNextPage }
			}
		}
	`
	page := func(id, title string) map[string]any {
		return map[string]any{"posts": map[string]any{
			"edges": []any{map[string]any{
				"cursor": "c" + id,
				"node":   map[string]any{"__typename": "Post", "id": id, "title": title},
			}},
			"pageInfo": map[string]any{"endCursor": "c" + id, "hasNextPage": false},
		}}
	}
	transport := &varTransport{responses: map[int]varResponse{
		1: {data: page("0", "initial")},
		2: {delay: 120 * time.Millisecond, data: page("1", "A")},
		3: {delay: 10 * time.Millisecond, err: errors.New("boom")},
		4: {delay: 60 * time.Millisecond, data: page("2", "C")},
	}}
	c := newTestCache(t, transport)

	var mu sync.Mutex
	var dataCalls, errCalls int
	var lastName string
	w, err := c.WatchQuery(context.Background(), postsQuery, map[string]any{"first": 1}, false, true,
		func(r ReadResult) {
			mu.Lock()
			defer mu.Unlock()
			dataCalls++
			edges := r.Data["posts"].(map[string]any)["edges"].([]any)
			lastName = edges[0].(map[string]any)["node"].(map[string]any)["title"].(string)
		},
		func(error) {
			mu.Lock()
			defer mu.Unlock()
			errCalls++
		},
	)
	require.NoError(t, err)
	defer w.Unsubscribe()

	w.Update(map[string]any{"first": 2})
	w.Update(map[string]any{"first": 3})
	w.Update(map[string]any{"first": 4})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return lastName == "C"
	}, time.Second, time.Millisecond)

	time.Sleep(150 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 0, errCalls, "a superseded request must never emit on_error")
	assert.Equal(t, "C", lastName, "only the latest-issued request's data must be visible")
}
