// Package broadcast fans a Cache's touched-key set out past one
// process: an EventBridge publisher for cross-process cache
// invalidation when several processes share one backing store, and an
// API Gateway Management API pusher for server-to-client WebSocket
// delivery. Grounded on the teacher's
// backend/infrastructure/messaging/eventbridge/publisher.go (PutEvents
// batching) and backend/cmd/ws-send-message/main.go (PostToConnection
// fan-out to live connections).
package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi"
	apigwTypes "github.com/aws/aws-sdk-go-v2/service/apigatewaymanagementapi/types"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"
)

// EventPublisher publishes one EventBridge entry per Cache broadcast,
// so a sibling process watching the same bus can re-fetch or evict the
// touched keys from its own cache.
type EventPublisher struct {
	client  *eventbridge.Client
	busName string
	source  string
	logger  *zap.Logger
}

// NewEventPublisher constructs an EventPublisher against an
// already-configured client.
func NewEventPublisher(client *eventbridge.Client, busName, source string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventPublisher{client: client, busName: busName, source: source, logger: logger}
}

// touchedEvent is the EventBridge detail payload for one broadcast.
type touchedEvent struct {
	Keys []string `json:"keys"`
}

// Publish sends touched as a single EventBridge entry under DetailType
// "graphcache.touched". Unlike the teacher's PublishBatch, a Cache
// broadcast is always exactly one entry, so the 10-entries-per-PutEvents
// batching the teacher needs for bulk domain events does not apply here.
func (p *EventPublisher) Publish(ctx context.Context, touched map[string]struct{}) error {
	if len(touched) == 0 {
		return nil
	}
	keys := make([]string, 0, len(touched))
	for k := range touched {
		keys = append(keys, k)
	}
	detail, err := json.Marshal(touchedEvent{Keys: keys})
	if err != nil {
		return fmt.Errorf("graphcache: marshal touched-keys event: %w", err)
	}

	out, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
		Entries: []types.PutEventsRequestEntry{{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String("graphcache.touched"),
			Detail:       aws.String(string(detail)),
		}},
	})
	if err != nil {
		return fmt.Errorf("graphcache: publish touched-keys event: %w", err)
	}
	if out.FailedEntryCount > 0 {
		p.logger.Warn("touched-keys event failed to publish", zap.Int32("failedEntryCount", out.FailedEntryCount))
		return fmt.Errorf("graphcache: %d touched-keys event(s) failed to publish", out.FailedEntryCount)
	}
	return nil
}

// ErrConnectionGone means the target WebSocket connection has already
// closed; the caller owns whatever registry tracks live connections and
// is expected to drop it from there.
var ErrConnectionGone = errors.New("graphcache: websocket connection is gone")

// ConnectionPusher delivers a payload to one live WebSocket connection
// via the API Gateway Management API, the server-to-client push path a
// Lambda handler uses to notify a client that a watched entity changed.
type ConnectionPusher struct {
	client *apigatewaymanagementapi.Client
	logger *zap.Logger
}

// NewConnectionPusher constructs a ConnectionPusher against an
// already-configured client (its BaseEndpoint must be the deployed
// WebSocket API's management endpoint, not the WebSocket URL itself).
func NewConnectionPusher(client *apigatewaymanagementapi.Client, logger *zap.Logger) *ConnectionPusher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConnectionPusher{client: client, logger: logger}
}

// Push delivers payload to connectionID. Returns ErrConnectionGone if
// the connection has already closed rather than wrapping the
// GoneException, so callers can match it with errors.Is.
func (p *ConnectionPusher) Push(ctx context.Context, connectionID string, payload []byte) error {
	_, err := p.client.PostToConnection(ctx, &apigatewaymanagementapi.PostToConnectionInput{
		ConnectionId: aws.String(connectionID),
		Data:         payload,
	})
	if err != nil {
		var gone *apigwTypes.GoneException
		if errors.As(err, &gone) {
			return ErrConnectionGone
		}
		return fmt.Errorf("graphcache: push to connection %s: %w", connectionID, err)
	}
	return nil
}
