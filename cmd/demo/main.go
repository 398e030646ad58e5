// Command demo wires a graphcache.Cache against an HTTP GraphQL
// endpoint, runs one cache-first execute_query against it and prints the
// result. Wiring mirrors wire.go's provider graph by hand, since this repo
// (like the teacher's own backend/internal/di) does not check in a
// generated wire_gen.go; `wire` only needs to run when the provider
// graph in wire.go changes.
package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"graphcache/application/execution"
	"graphcache/application/facade"
	"graphcache/domain/graph"
	"graphcache/infrastructure/config"
	"graphcache/infrastructure/transport/httptransport"
	"graphcache/pkg/metrics"
	"graphcache/pkg/observability"
)

func loadConfig(path string) (config.Config, error) {
	return config.Load(path)
}

func buildLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

var demoKeys = map[string]graph.KeyExtractor{
	"User": func(attrs map[string]any) (string, bool) {
		id, ok := attrs["id"].(string)
		return id, ok
	},
}

func buildCache(cfg config.Config, endpoint string, logger *zap.Logger, rec *metrics.Recorder) *facade.Cache {
	transport := httptransport.New(endpoint)
	return facade.New(facade.Config{
		Keys:              demoKeys,
		CachePolicy:       cfg.Policy(),
		SuspensionTimeout: cfg.SuspensionTimeout(),
		HydrationTimeout:  cfg.HydrationTimeout(),
		Logger:            logger,
		Metrics:           rec,
		Tracer:            observability.Tracer(),
	}, transport)
}

func main() {
	configPath := flag.String("config", "", "path to a graphcache config.yaml")
	endpoint := flag.String("endpoint", "http://localhost:4000/graphql", "GraphQL endpoint to query")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		panic(err)
	}

	logger, err := buildLogger(cfg)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if cfg.TracingEndpoint != "" {
		tp, err := observability.NewTracerProvider(context.Background(), cfg.TracingEndpoint)
		if err != nil {
			logger.Warn("tracer provider setup failed", zap.Error(err))
		} else {
			defer tp.Shutdown(context.Background())
		}
	}

	cache := buildCache(cfg, *endpoint, logger, metrics.NewRecorder(prometheus.NewRegistry()))
	defer cache.Close()

	const query = `
		query {
			viewer {
				id
				name
			}
		}
	`

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	res, err := cache.ExecuteQuery(ctx, query, map[string]any{}, execution.CacheFirst)
	if err != nil {
		logger.Error("execute_query failed", zap.Error(err))
		return
	}
	fmt.Printf("source=%s data=%v\n", res.Source, res.Data)
}
