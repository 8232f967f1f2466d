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

// ReminderRepo provides typed DynamoDB operations for the reminders table.
type ReminderRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewReminderRepo(client *dynamodb.Client, tableName string) *ReminderRepo {
	return &ReminderRepo{client: client, tableName: tableName}
}

func (r *ReminderRepo) Put(ctx context.Context, rem *domain.Reminder) error {
	item, err := attributevalue.MarshalMap(rem)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ReminderRepo) Get(ctx context.Context, reminderID string) (*domain.Reminder, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("reminder_id", reminderID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, domain.ErrNotFound)
	}
	var rem domain.Reminder
	if err := attributevalue.UnmarshalMap(out.Item, &rem); err != nil {
		return nil, err
	}
	return &rem, nil
}

func (r *ReminderRepo) ListBySubject(ctx context.Context, subjectID string) ([]domain.Reminder, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("subject_id-index"),
		KeyConditionExpression: aws.String("subject_id = :sid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subjectID},
		},
	})
	if err != nil {
		return nil, err
	}
	var reminders []domain.Reminder
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// GetBySubjectItem finds the subject's reminder for a specific care item.
func (r *ReminderRepo) GetBySubjectItem(ctx context.Context, subjectID, itemID string) (*domain.Reminder, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("subject_id-index"),
		KeyConditionExpression: aws.String("subject_id = :sid"),
		FilterExpression:       aws.String("item_id = :iid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": &types.AttributeValueMemberS{Value: subjectID},
			":iid": &types.AttributeValueMemberS{Value: itemID},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, fmt.Errorf("reminder for subject %s item %s: %w", subjectID, itemID, domain.ErrNotFound)
	}
	var rem domain.Reminder
	if err := attributevalue.UnmarshalMap(out.Items[0], &rem); err != nil {
		return nil, err
	}
	return &rem, nil
}

// QueryDueWindow returns active reminders whose next_due_at falls in [from, to].
// Served by the is_active-next_due_at GSI, so RFC3339 string ordering is the
// range condition.
func (r *ReminderRepo) QueryDueWindow(ctx context.Context, from, to time.Time) ([]domain.Reminder, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("is_active-next_due_at-index"),
		KeyConditionExpression: aws.String("is_active = :one AND next_due_at BETWEEN :from AND :to"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":one":  &types.AttributeValueMemberN{Value: "1"},
			":from": &types.AttributeValueMemberS{Value: from.UTC().Format(time.RFC3339)},
			":to":   &types.AttributeValueMemberS{Value: to.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, err
	}
	var reminders []domain.Reminder
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &reminders); err != nil {
		return nil, err
	}
	return reminders, nil
}

// ClaimDue atomically advances a due reminder to its next due instant. The
// condition on the observed next_due_at is the claim: when two workers see the
// same due reminder, exactly one update succeeds and the loser gets
// domain.ErrConflict.
func (r *ReminderRepo) ClaimDue(ctx context.Context, reminderID string, observedDueAt, newDueAt, firedAt time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("reminder_id", reminderID),
		ConditionExpression: aws.String("next_due_at = :observed AND is_active = :one"),
		UpdateExpression:    aws.String("SET next_due_at = :new, last_fired_at = :fired, updated_at = :now"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":observed": &types.AttributeValueMemberS{Value: observedDueAt.UTC().Format(time.RFC3339)},
			":one":      &types.AttributeValueMemberN{Value: "1"},
			":new":      &types.AttributeValueMemberS{Value: newDueAt.UTC().Format(time.RFC3339)},
			":fired":    &types.AttributeValueMemberS{Value: firedAt.UTC().Format(time.RFC3339)},
			":now":      &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return asConflict(err)
	}
	return nil
}

func (r *ReminderRepo) Update(ctx context.Context, reminderID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("reminder_id", reminderID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
