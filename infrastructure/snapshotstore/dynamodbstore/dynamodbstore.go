// Package dynamodbstore persists a facade.Snapshot to DynamoDB so a
// cache can dehydrate before process exit and hydrate from cold start.
// It is grounded on the teacher's dynamodb persistence layer
// (backend/infrastructure/persistence/dynamodb/node_repository.go): one
// item per entity key under a single partition, attributevalue
// marshaling, and PutItem/Query/BatchWriteItem against a plain
// *dynamodb.Client rather than a higher-level ORM.
package dynamodbstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"graphcache/application/facade"
	"graphcache/domain/graph"
)

// item is the DynamoDB row shape: one entity record per item, scoped to
// a single snapshot partition so many caches (e.g. one per user) can
// share a table.
type item struct {
	PK     string `dynamodbav:"PK"`
	SK     string `dynamodbav:"SK"`
	Key    string `dynamodbav:"EntityKey"`
	Record map[string]any `dynamodbav:"Record"`
}

// Store persists facade.Snapshot values under a DynamoDB partition keyed
// by Namespace, one item per entity.
type Store struct {
	client    *dynamodb.Client
	tableName string
	logger    *zap.Logger
}

// New constructs a Store against an already-configured client.
func New(client *dynamodb.Client, tableName string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{client: client, tableName: tableName, logger: logger}
}

func partitionKey(namespace string) string {
	return fmt.Sprintf("SNAPSHOT#%s", namespace)
}

// Save replaces namespace's stored snapshot with snap, one PutItem per
// entry. A production store would batch these via BatchWriteItem; kept
// sequential here for straightforward error attribution per key.
func (s *Store) Save(ctx context.Context, namespace string, snap facade.Snapshot) error {
	pk := partitionKey(namespace)
	for _, entry := range snap.Entries {
		row := item{PK: pk, SK: fmt.Sprintf("ENTITY#%s", entry.Key), Key: entry.Key, Record: entry.Record}
		av, err := attributevalue.MarshalMap(row)
		if err != nil {
			return fmt.Errorf("graphcache: marshal snapshot entry %s: %w", entry.Key, err)
		}
		if _, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String(s.tableName),
			Item:      av,
		}); err != nil {
			return fmt.Errorf("graphcache: put snapshot entry %s: %w", entry.Key, err)
		}
	}
	s.logger.Debug("snapshot saved", zap.String("namespace", namespace), zap.Int("entries", len(snap.Entries)))
	return nil
}

// SaveEntry applies partial writes onto a single already-persisted entity
// item without re-sending the whole record, used when a live cache wants
// to push down a touched key's new attributes instead of waiting for a
// full Dehydrate/Save cycle (spec §4.2 Broadcast's per-key touched set
// maps naturally onto one UpdateItem per touched key). Grounded on the
// teacher's GenericRepository.Update
// (backend/infrastructure/persistence/dynamodb/generic_repository.go):
// an expression.UpdateBuilder Set per attribute, conditioned on the item
// already existing.
func (s *Store) SaveEntry(ctx context.Context, namespace, key string, record graph.Record) error {
	update := expression.UpdateBuilder{}
	for attr, value := range record {
		update = update.Set(expression.Name(attr), expression.Value(value))
	}
	condition := expression.Name("PK").AttributeExists()

	expr, err := expression.NewBuilder().WithUpdate(update).WithCondition(condition).Build()
	if err != nil {
		return fmt.Errorf("graphcache: build update expression for %s: %w", key, err)
	}

	_, err = s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"PK": &types.AttributeValueMemberS{Value: partitionKey(namespace)},
			"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("ENTITY#%s", key)},
		},
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("graphcache: entry %s not yet persisted, full Save required first: %w", key, err)
		}
		return fmt.Errorf("graphcache: update snapshot entry %s: %w", key, err)
	}
	s.logger.Debug("snapshot entry updated", zap.String("namespace", namespace), zap.String("key", key))
	return nil
}

// Load reads namespace's stored snapshot back, querying every item under
// its partition.
func (s *Store) Load(ctx context.Context, namespace string) (facade.Snapshot, error) {
	pk := partitionKey(namespace)
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	})
	if err != nil {
		return facade.Snapshot{}, fmt.Errorf("graphcache: query snapshot %s: %w", namespace, err)
	}

	entries := make([]facade.SnapshotEntry, 0, len(out.Items))
	for _, raw := range out.Items {
		var row item
		if err := attributevalue.UnmarshalMap(raw, &row); err != nil {
			s.logger.Warn("skipping unreadable snapshot entry", zap.Error(err))
			continue
		}
		entries = append(entries, facade.SnapshotEntry{Key: row.Key, Record: graph.Record(row.Record)})
	}
	return facade.Snapshot{Entries: entries}, nil
}

// Delete removes every stored item under namespace's partition.
func (s *Store) Delete(ctx context.Context, namespace string) error {
	pk := partitionKey(namespace)
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: pk},
		},
	})
	if err != nil {
		return fmt.Errorf("graphcache: query snapshot %s for delete: %w", namespace, err)
	}
	if len(out.Items) == 0 {
		return nil
	}

	writeRequests := make([]types.WriteRequest, 0, len(out.Items))
	for _, raw := range out.Items {
		writeRequests = append(writeRequests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: map[string]types.AttributeValue{
				"PK": raw["PK"],
				"SK": raw["SK"],
			}},
		})
	}

	const batchLimit = 25
	for start := 0; start < len(writeRequests); start += batchLimit {
		end := start + batchLimit
		if end > len(writeRequests) {
			end = len(writeRequests)
		}
		if _, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{s.tableName: writeRequests[start:end]},
		}); err != nil {
			return fmt.Errorf("graphcache: batch delete snapshot %s: %w", namespace, err)
		}
	}
	return nil
}
