//go:build wireinject

// This file only participates in the `wire` generator's build; it is
// excluded from normal compilation by the wireinject tag, exactly like
// the teacher's own internal/di/wire.go.
package main

import (
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"graphcache/application/execution"
	"graphcache/application/facade"
	"graphcache/domain/graph"
	"graphcache/infrastructure/config"
	"graphcache/infrastructure/transport/httptransport"
	"graphcache/pkg/metrics"
)

// ProvideLogger provides the process-wide zap logger.
func ProvideLogger(cfg config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ProvideMetrics provides the metrics recorder.
func ProvideMetrics() *metrics.Recorder {
	return metrics.NewRecorder(prometheus.NewRegistry())
}

// ProvideTransport provides the demo's network transport.
func ProvideTransport(cfg config.Config) execution.Transport {
	return httptransport.New(cfg.TracingEndpoint)
}

// ProvideFacadeConfig assembles facade.Config from the loaded Config.
func ProvideFacadeConfig(cfg config.Config, logger *zap.Logger, rec *metrics.Recorder) facade.Config {
	return facade.Config{
		Keys:              demoKeys,
		CachePolicy:       cfg.Policy(),
		SuspensionTimeout: cfg.SuspensionTimeout(),
		HydrationTimeout:  cfg.HydrationTimeout(),
		Logger:            logger,
		Metrics:           rec,
	}
}

// ProvideCache provides the wired Cache instance.
func ProvideCache(cfg facade.Config, transport execution.Transport) *facade.Cache {
	return facade.New(cfg, transport)
}

var (
	ConfigSet = wire.NewSet(
		loadConfig,
		ProvideLogger,
		ProvideMetrics,
	)

	CacheSet = wire.NewSet(
		ProvideTransport,
		ProvideFacadeConfig,
		ProvideCache,
	)
)

var demoKeys = map[string]graph.KeyExtractor{}

func InitializeCache() (*facade.Cache, error) {
	wire.Build(ConfigSet, CacheSet)
	return nil, nil
}
