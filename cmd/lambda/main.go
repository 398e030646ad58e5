// Command lambda wraps the same debug API interfaces/http/rest exposes
// behind API Gateway, so a Cache can run inside AWS Lambda instead of a
// standalone process. Grounded on the teacher's backend/cmd/lambda/main.go:
// module-level state initialized once during cold start, a DynamoDB
// connection pre-warmed in the background, and the chi router wrapped by
// aws-lambda-go-api-proxy's chi adapter rather than served with
// net/http.Server directly.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	chiadapter "github.com/awslabs/aws-lambda-go-api-proxy/chi"
	"github.com/go-chi/chi/v5"
	awsConfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"graphcache/application/facade"
	"graphcache/domain/graph"
	"graphcache/infrastructure/broadcast"
	"graphcache/infrastructure/snapshotstore/dynamodbstore"
	rest "graphcache/interfaces/http/rest"
)

var (
	chiLambda *chiadapter.ChiLambdaV2
	cache     *facade.Cache
	logger    *zap.Logger

	coldStart     = true
	coldStartTime time.Time
)

func init() {
	coldStartTime = time.Now()
	log.Println("graphcache lambda cold start initiated")

	logger, _ = zap.NewProduction()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	awsCfg, err := awsConfig.LoadDefaultConfig(ctx)
	if err != nil {
		log.Fatalf("unable to load AWS config: %v", err)
	}

	snapshotTable := os.Getenv("SNAPSHOT_TABLE_NAME")
	snapshotNamespace := os.Getenv("SNAPSHOT_NAMESPACE")
	ddbClient := dynamodb.NewFromConfig(awsCfg)
	store := dynamodbstore.New(ddbClient, snapshotTable, logger)

	// Pre-warm the DynamoDB connection pool so the first real request
	// doesn't pay for it.
	go func() {
		warmCtx, warmCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer warmCancel()
		_, _ = store.Load(warmCtx, snapshotNamespace)
	}()

	var onTouched func(map[string]struct{})
	if busName := os.Getenv("EVENT_BUS_NAME"); busName != "" {
		publisher := broadcast.NewEventPublisher(eventbridge.NewFromConfig(awsCfg), busName, "graphcache", logger)
		onTouched = func(touched map[string]struct{}) {
			if err := publisher.Publish(context.Background(), touched); err != nil {
				logger.Warn("touched-keys publish failed", zap.Error(err))
			}
		}
	}

	cache = facade.New(facade.Config{
		Keys: map[string]graph.KeyExtractor{
			"User": func(attrs map[string]any) (string, bool) {
				id, ok := attrs["id"].(string)
				return id, ok
			},
		},
		OnTouched: onTouched,
		Logger:    logger,
	}, nil)

	if snap, err := store.Load(ctx, snapshotNamespace); err != nil {
		logger.Warn("snapshot load failed, starting from an empty graph", zap.Error(err))
	} else {
		cache.Hydrate(snap)
	}

	router, ok := rest.NewRouter(cache, logger).(*chi.Mux)
	if !ok {
		log.Fatal("rest.NewRouter did not return a *chi.Mux")
	}
	chiLambda = chiadapter.NewV2(router)

	logger.Info("graphcache lambda cold start completed", zap.Duration("duration", time.Since(coldStartTime)))
}

// Handler adapts one API Gateway v2 HTTP request into the chi router's
// ServeHTTP via chiLambda, mirroring the teacher's Handler/ProxyWithContextV2
// shape.
func Handler(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	resp, err := chiLambda.ProxyWithContextV2(ctx, req)
	if coldStart {
		if resp.Headers == nil {
			resp.Headers = make(map[string]string)
		}
		resp.Headers["X-Cold-Start"] = "true"
		coldStart = false
	}
	return resp, err
}

func main() {
	lambda.Start(Handler)
}
