package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/carelink-api/internal/config"
	"github.com/carelink-api/internal/domain"
)

// Sender delivers a payload to a device push token. The token is an SNS
// platform-endpoint ARN registered by the mobile client.
type Sender interface {
	Send(ctx context.Context, pushToken string, payload domain.Payload) error
}

type sender struct {
	client  *sns.Client
	timeout time.Duration
}

// NewSender creates a push sender backed by SNS platform endpoints. Every
// Send is bounded by cfg.PushTimeout so one unresponsive endpoint cannot
// stall a whole dispatch batch.
func NewSender(cfg *config.Config) (Sender, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.SNSRegion),
	}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AWSAccessKeyID, cfg.AWSSecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, err
	}

	clientOpts := []func(*sns.Options){}
	if cfg.AWSEndpointURL != "" {
		clientOpts = append(clientOpts, func(o *sns.Options) {
			o.BaseEndpoint = aws.String(cfg.AWSEndpointURL)
		})
	}

	return &sender{
		client:  sns.NewFromConfig(awsCfg, clientOpts...),
		timeout: cfg.PushTimeout,
	}, nil
}

func (s *sender) Send(ctx context.Context, pushToken string, payload domain.Payload) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	msg, err := json.Marshal(map[string]interface{}{
		"title": payload.Title,
		"body":  payload.Body,
		"data":  payload.Data,
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	_, err = s.client.Publish(ctx, &sns.PublishInput{
		TargetArn: aws.String(pushToken),
		Message:   aws.String(string(msg)),
	})
	return err
}
