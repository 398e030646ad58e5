// Package rest builds the chi.Router exposing a running Cache's
// contents, grounded on the teacher's chi-based REST router
// (backend/interfaces/http/rest/v1/router.go): one chi.Mux, route-scoped
// middleware, and small JSON handlers. Extracted into its own package
// (rather than living in cmd/inspector) so cmd/lambda can wrap the same
// router in aws-lambda-go-api-proxy's chi adapter instead of serving it
// over a plain net/http listener, exactly as the teacher's cmd/lambda
// wraps backend/interfaces/http/rest rather than duplicating it.
package rest

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"graphcache/application/facade"
)

// NewRouter builds the debug API's chi.Mux against a live cache,
// mirroring the teacher's route-group-plus-middleware-stack shape.
func NewRouter(cache *facade.Cache, logger *zap.Logger) chi.Router {
	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Logger)
	router.Use(chimiddleware.Recoverer)
	router.Use(versionHeaders)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthCheck)
		r.Get("/snapshot", snapshotHandler(cache))
		r.Get("/entities/{key}", entityHandler(cache))
	})

	return router
}

func versionHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Inspector-Version", "v1")
		next.ServeHTTP(w, r)
	})
}

// healthCheck godoc
// @Summary Health check
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// snapshotHandler godoc
// @Summary Dehydrate the entire entity graph
// @Produce json
// @Success 200 {object} facade.Snapshot
// @Router /snapshot [get]
func snapshotHandler(cache *facade.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := cache.Dehydrate()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(snap)
	}
}

// entityHandler godoc
// @Summary Read one entity through the optimistic overlay stack
// @Produce json
// @Param key path string true "entity key, e.g. User:1"
// @Success 200 {object} map[string]any
// @Failure 404 {object} map[string]string
// @Router /entities/{key} [get]
func entityHandler(cache *facade.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		rec, ok := cache.ReadOptimistic(key)
		w.Header().Set("Content-Type", "application/json")
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"error": "entity not found"})
			return
		}
		json.NewEncoder(w).Encode(rec)
	}
}
