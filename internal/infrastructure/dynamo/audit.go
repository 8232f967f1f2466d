package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/carelink-api/internal/domain"
)

// batchWriteMax is DynamoDB's hard limit on items per BatchWriteItem call.
const batchWriteMax = 25

// AuditRepo provides typed DynamoDB operations for the audit_records table.
// Records are append-only; the only delete path is the retention sweep.
type AuditRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAuditRepo(client *dynamodb.Client, tableName string) *AuditRepo {
	return &AuditRepo{client: client, tableName: tableName}
}

func (r *AuditRepo) Put(ctx context.Context, rec *domain.AuditRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByActor queries the actor_id-created_at GSI, newest first.
func (r *AuditRepo) ListByActor(ctx context.Context, actorID string) ([]domain.AuditRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("actor_id-created_at-index"),
		KeyConditionExpression: aws.String("actor_id = :aid"),
		ScanIndexForward:       aws.Bool(false),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: actorID},
		},
	})
	if err != nil {
		return nil, err
	}
	var records []domain.AuditRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// QueryOlderThan collects up to limit records with created_at before cutoff.
// The table has no time-keyed index, so this pages through a filtered Scan
// until the quota is filled or the table is exhausted.
func (r *AuditRepo) QueryOlderThan(ctx context.Context, cutoff time.Time, limit int) ([]domain.AuditRecord, error) {
	var (
		records []domain.AuditRecord
		start   map[string]types.AttributeValue
	)
	for len(records) < limit {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:        aws.String(r.tableName),
			FilterExpression: aws.String("created_at < :cutoff"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":cutoff": &types.AttributeValueMemberS{Value: cutoff.UTC().Format(time.RFC3339)},
			},
			Limit:             aws.Int32(int32(limit)),
			ExclusiveStartKey: start,
		})
		if err != nil {
			return nil, err
		}
		var page []domain.AuditRecord
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		records = append(records, page...)
		if out.LastEvaluatedKey == nil {
			break
		}
		start = out.LastEvaluatedKey
	}
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// DeleteBatch removes the given audit records in BatchWriteItem chunks and
// returns how many delete requests were issued. Unprocessed items are retried
// once; anything still unprocessed after that is an error so the sweep never
// over-reports.
func (r *AuditRepo) DeleteBatch(ctx context.Context, auditIDs []string) (int, error) {
	deleted := 0
	for chunkStart := 0; chunkStart < len(auditIDs); chunkStart += batchWriteMax {
		end := chunkStart + batchWriteMax
		if end > len(auditIDs) {
			end = len(auditIDs)
		}
		chunk := auditIDs[chunkStart:end]

		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, id := range chunk {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: strKey("audit_id", id)},
			})
		}

		out, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{r.tableName: requests},
		})
		if err != nil {
			return deleted, err
		}
		if unprocessed := out.UnprocessedItems[r.tableName]; len(unprocessed) > 0 {
			out, err = r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
				RequestItems: map[string][]types.WriteRequest{r.tableName: unprocessed},
			})
			if err != nil {
				return deleted, err
			}
			if still := out.UnprocessedItems[r.tableName]; len(still) > 0 {
				return deleted, fmt.Errorf("%d audit deletes unprocessed after retry", len(still))
			}
		}
		deleted += len(chunk)
	}
	return deleted, nil
}
