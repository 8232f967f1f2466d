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

// CareTeamRepo provides typed DynamoDB operations for the care_team table,
// which links caregivers and providers to the subjects they cover.
type CareTeamRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewCareTeamRepo(client *dynamodb.Client, tableName string) *CareTeamRepo {
	return &CareTeamRepo{client: client, tableName: tableName}
}

func (r *CareTeamRepo) Put(ctx context.Context, m *domain.CareTeamMember) error {
	item, err := attributevalue.MarshalMap(m)
	if err != nil {
		return fmt.Errorf("marshal care team member: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListBySubject returns every care-team link for a subject, caregivers and
// providers alike. Callers split by relation.
func (r *CareTeamRepo) ListBySubject(ctx context.Context, subjectID string) ([]domain.CareTeamMember, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		KeyConditionExpression: aws.String("subject_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subjectID},
		},
	})
	if err != nil {
		return nil, err
	}
	var members []domain.CareTeamMember
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (r *CareTeamRepo) Delete(ctx context.Context, subjectID, memberID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       compositeKey("subject_id", subjectID, "member_id", memberID),
	})
	return err
}
