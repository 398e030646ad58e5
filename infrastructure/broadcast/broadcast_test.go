package broadcast

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTouchedEvent_MarshalsKeys(t *testing.T) {
	raw, err := json.Marshal(touchedEvent{Keys: []string{"User:1", "Post:2"}})
	require.NoError(t, err)
	assert.JSONEq(t, `{"keys":["User:1","Post:2"]}`, string(raw))
}

func TestEventPublisher_PublishSkipsEmptyTouch(t *testing.T) {
	p := NewEventPublisher(nil, "bus", "graphcache", nil)
	require.NoError(t, p.Publish(context.Background(), nil))
}

// TestEventPublisher_Integration exercises Publish against a real
// EventBridge bus; skipped by default since no client is wired here (the
// teacher's infrastructure/dynamodb/idempotency_test.go follows the same
// nil-client-under-short-mode convention for tests needing a live AWS
// endpoint).
func TestEventPublisher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a real EventBridge bus")
	}
	p := NewEventPublisher(nil, "bus", "graphcache", nil)
	require.NoError(t, p.Publish(context.Background(), map[string]struct{}{"User:1": {}}))
}

// TestConnectionPusher_Integration exercises Push against a real API
// Gateway Management API endpoint; skipped by default for the same
// reason.
func TestConnectionPusher_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a real API Gateway WebSocket management endpoint")
	}
	p := NewConnectionPusher(nil, nil)
	require.NoError(t, p.Push(context.Background(), "conn-1", []byte(`{"type":"touched"}`)))
}
