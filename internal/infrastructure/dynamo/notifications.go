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

// notificationAPI is the slice of the DynamoDB client the repo uses. Narrowed
// to an interface so the due-query and claim expressions can be pinned in tests.
type notificationAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
}

// NotificationRepo provides typed DynamoDB operations for the notifications table.
type NotificationRepo struct {
	client    notificationAPI
	tableName string
}

func NewNotificationRepo(client notificationAPI, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByRecipient queries the recipient_id-created_at GSI, newest first.
// When unreadOnly is set, records already marked read are filtered out.
func (r *NotificationRepo) ListByRecipient(ctx context.Context, recipientID string, unreadOnly bool) ([]domain.Notification, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("recipient_id-created_at-index"),
		KeyConditionExpression: aws.String("recipient_id = :rid"),
		ScanIndexForward:       aws.Bool(false),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rid": &types.AttributeValueMemberS{Value: recipientID},
		},
	}
	if unreadOnly {
		in.FilterExpression = aws.String("#read = :zero")
		in.ExpressionAttributeNames = map[string]string{"#read": fieldRead}
		in.ExpressionAttributeValues[":zero"] = &types.AttributeValueMemberN{Value: "0"}
	}
	out, err := r.client.Query(ctx, in)
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// MarkRead flips the read flag, conditioned on recipient_id so an update racing
// an ownership check can never mark someone else's notification. A failed
// condition surfaces as domain.ErrConflict.
func (r *NotificationRepo) MarkRead(ctx context.Context, notificationID, recipientID string) error {
	ue, err := buildUpdateExpr(map[string]interface{}{fieldRead: 1})
	if err != nil {
		return err
	}
	ue.Values[":rid"] = &types.AttributeValueMemberS{Value: recipientID}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		ConditionExpression:       aws.String("recipient_id = :rid"),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		return asConflict(err)
	}
	return nil
}

// QueryDueScheduled returns records with status "scheduled" and a
// scheduled_for at or before now. The status GSI hash key guarantees records
// already moved to sent/failed are never selected again, even when their
// scheduled_for stays in the past.
func (r *NotificationRepo) QueryDueScheduled(ctx context.Context, now time.Time) ([]domain.Notification, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("status-scheduled_for-index"),
		KeyConditionExpression: aws.String("#status = :scheduled AND scheduled_for <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#status": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":scheduled": &types.AttributeValueMemberS{Value: domain.StatusScheduled},
			":now":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return nil, err
	}
	var notifications []domain.Notification
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// Claim marks a scheduled notification as taken by this worker. The condition
// on claimed_at not existing makes the claim exclusive: a record swept by two
// overlapping ticks is delivered exactly once, the loser gets domain.ErrConflict.
func (r *NotificationRepo) Claim(ctx context.Context, notificationID string, at time.Time) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(r.tableName),
		Key:                 strKey("notification_id", notificationID),
		ConditionExpression: aws.String("attribute_not_exists(claimed_at) AND #status = :scheduled"),
		UpdateExpression:    aws.String("SET claimed_at = :at"),
		ExpressionAttributeNames: map[string]string{
			"#status": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":scheduled": &types.AttributeValueMemberS{Value: domain.StatusScheduled},
			":at":        &types.AttributeValueMemberS{Value: at.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		return asConflict(err)
	}
	return nil
}

func (r *NotificationRepo) MarkSent(ctx context.Context, notificationID string, at time.Time) error {
	return r.update(ctx, notificationID, map[string]interface{}{
		fieldStatus: domain.StatusSent,
		fieldSentAt: at.UTC().Format(time.RFC3339),
	})
}

func (r *NotificationRepo) MarkFailed(ctx context.Context, notificationID string, at time.Time, reason string) error {
	return r.update(ctx, notificationID, map[string]interface{}{
		fieldStatus:        domain.StatusFailed,
		fieldFailedAt:      at.UTC().Format(time.RFC3339),
		fieldFailureReason: reason,
	})
}

func (r *NotificationRepo) update(ctx context.Context, notificationID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC().Format(time.RFC3339)
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("notification_id", notificationID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}
