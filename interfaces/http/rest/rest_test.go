package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"graphcache/application/facade"
	"graphcache/domain/graph"
)

func newTestCache(t *testing.T) *facade.Cache {
	t.Helper()
	c := facade.New(facade.Config{
		Keys: map[string]graph.KeyExtractor{
			"User": func(attrs map[string]any) (string, bool) {
				id, ok := attrs["id"].(string)
				return id, ok
			},
		},
	}, nil)
	t.Cleanup(c.Close)
	return c
}

func TestHealthCheck(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	healthCheck(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSnapshotHandler_ReturnsDehydratedEntries(t *testing.T) {
	cache := newTestCache(t)
	_, err := cache.WriteQuery(`query { viewer { id name } }`, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	snapshotHandler(cache)(rec, req)

	var snap facade.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.NotEmpty(t, snap.Entries)
}

func TestNewRouter_ServesEntityLookup(t *testing.T) {
	cache := newTestCache(t)
	_, err := cache.WriteQuery(`query { viewer { id name } }`, map[string]any{}, map[string]any{
		"viewer": map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	})
	require.NoError(t, err)

	router := NewRouter(cache, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/User:1", nil)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "Ada", got["name"])
}

func TestNewRouter_EntityLookupMissReturns404(t *testing.T) {
	cache := newTestCache(t)
	router := NewRouter(cache, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/entities/User:missing", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestNewRouter_ServesHealth(t *testing.T) {
	cache := newTestCache(t)
	router := NewRouter(cache, zap.NewNop())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
