// Command inspector runs a small debug HTTP server exposing a running
// Cache's contents for local development. The router itself lives in
// interfaces/http/rest so cmd/lambda can serve the same routes behind
// API Gateway instead of duplicating them.
//
// @title graphcache inspector API
// @version 1.0
// @description Debug endpoints for introspecting a running Cache's entity graph.
// @BasePath /api/v1
package main

import (
	"flag"
	"net/http"
	"os"
	"time"

	"github.com/swaggo/swag/gen"
	"go.uber.org/zap"

	"graphcache/application/facade"
	"graphcache/domain/graph"
	rest "graphcache/interfaces/http/rest"
)

// generateSwaggerDocs runs swag's generator against this package's own
// annotation comments, writing swagger.json into outputDir so the
// inspector can serve its own API description alongside its routes.
func generateSwaggerDocs(outputDir string) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	return gen.New().Build(&gen.Config{
		SearchDir:   ".",
		MainAPIFile: "main.go",
		OutputDir:   outputDir,
		OutputTypes: []string{"json"},
	})
}

func main() {
	addr := flag.String("addr", ":8089", "inspector listen address")
	docsDir := flag.String("docs-dir", "", "if set, regenerate swagger.json into this directory on startup")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *docsDir != "" {
		if err := generateSwaggerDocs(*docsDir); err != nil {
			logger.Warn("swagger doc generation failed", zap.Error(err))
		}
	}

	cache := facade.New(facade.Config{
		Keys: map[string]graph.KeyExtractor{
			"User": func(attrs map[string]any) (string, bool) {
				id, ok := attrs["id"].(string)
				return id, ok
			},
		},
		Logger: logger,
	}, nil)
	defer cache.Close()

	server := &http.Server{
		Addr:         *addr,
		Handler:      rest.NewRouter(cache, logger),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	logger.Info("inspector listening", zap.String("addr", *addr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("inspector server failed", zap.Error(err))
	}
}
