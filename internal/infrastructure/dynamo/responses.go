package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/carelink-api/internal/domain"
)

// ResponseRepo provides typed DynamoDB operations for the alert_responses
// table. The table is append-only: records are put, listed, never updated.
type ResponseRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewResponseRepo(client *dynamodb.Client, tableName string) *ResponseRepo {
	return &ResponseRepo{client: client, tableName: tableName}
}

func (r *ResponseRepo) Put(ctx context.Context, rec *domain.ResponseRecord) error {
	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal response record: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByAlert returns the full response history of an alert in insertion
// order (response ids are ULIDs, so the sort key is chronological).
func (r *ResponseRepo) ListByAlert(ctx context.Context, alertID string) ([]domain.ResponseRecord, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("alert_id = :aid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":aid": &types.AttributeValueMemberS{Value: alertID},
		},
	})
	if err != nil {
		return nil, err
	}
	var records []domain.ResponseRecord
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &records); err != nil {
		return nil, err
	}
	return records, nil
}
