package dynamodbstore

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphcache/application/facade"
	"graphcache/domain/graph"
)

func TestPartitionKey(t *testing.T) {
	assert.Equal(t, "SNAPSHOT#tenant-1", partitionKey("tenant-1"))
}

func TestItem_RoundTripsThroughAttributeValue(t *testing.T) {
	row := item{
		PK:     partitionKey("tenant-1"),
		SK:     "ENTITY#User:1",
		Key:    "User:1",
		Record: map[string]any{"__typename": "User", "id": "1", "name": "Ada"},
	}

	av, err := attributevalue.MarshalMap(row)
	require.NoError(t, err)

	var out item
	require.NoError(t, attributevalue.UnmarshalMap(av, &out))
	assert.Equal(t, row.PK, out.PK)
	assert.Equal(t, row.Key, out.Key)
	assert.Equal(t, "Ada", out.Record["name"])
}

// TestStore_Integration exercises Save/Load/Delete against a real
// DynamoDB endpoint; skipped by default since no client is wired here
// (the teacher's infrastructure/dynamodb/idempotency_test.go follows the
// same nil-client-under-short-mode convention for tests that need a
// live table).
func TestStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("requires a real DynamoDB endpoint")
	}

	var s *Store
	ctx := context.Background()
	snap := facade.Snapshot{Entries: []facade.SnapshotEntry{
		{Key: "User:1", Record: graph.Record{"__typename": "User", "id": "1"}},
	}}

	require.NoError(t, s.Save(ctx, "tenant-1", snap))
	require.NoError(t, s.SaveEntry(ctx, "tenant-1", "User:1", graph.Record{"name": "Ada"}))
	got, err := s.Load(ctx, "tenant-1")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1)
	require.NoError(t, s.Delete(ctx, "tenant-1"))
}
