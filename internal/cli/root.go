// Package cli implements the carectl operator commands. Each command binds an
// exposed operation directly to the application layer, sharing config and
// table bootstrap with the API server.
package cli

import (
	"fmt"
	"log"
	"os"

	"github.com/carelink-api/internal/config"
	"github.com/carelink-api/internal/infrastructure/dynamo"
	"github.com/carelink-api/internal/infrastructure/push"
	s3infra "github.com/carelink-api/internal/infrastructure/s3"
	"github.com/carelink-api/internal/infrastructure/sns"
	"github.com/carelink-api/internal/pkg/metrics"
	transporthttp "github.com/carelink-api/internal/transport/http"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "carectl",
	Short: "Operator CLI for the carelink dispatch backend",
	Long:  "Run the periodic jobs by hand and raise alerts without going through the HTTP API.",
}

func buildDeps(cmd *cobra.Command) (*config.Config, *transporthttp.Deps) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}
	cfg := config.Load()

	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(cmd.Context(), dynamoClient, cfg.DynamoTables)

	s3Client := s3infra.NewClient(cfg)

	var smsSender sns.SMSSender
	if sender, err := sns.NewSender(cfg); err == nil {
		smsSender = sender
	} else {
		log.Printf("WARN: SNS SMS sender not available: %v", err)
	}
	var pushSender push.Sender
	if sender, err := push.NewSender(cfg); err == nil {
		pushSender = sender
	} else {
		log.Printf("WARN: push sender not available: %v", err)
	}

	registry := prometheus.NewRegistry()
	deps := &transporthttp.Deps{
		ProfileRepo:      dynamo.NewProfileRepo(dynamoClient, cfg.DynamoTables.Profiles),
		CareTeamRepo:     dynamo.NewCareTeamRepo(dynamoClient, cfg.DynamoTables.CareTeam),
		ReminderRepo:     dynamo.NewReminderRepo(dynamoClient, cfg.DynamoTables.Reminders),
		AlertRepo:        dynamo.NewAlertRepo(dynamoClient, cfg.DynamoTables.Alerts),
		ResponseRepo:     dynamo.NewResponseRepo(dynamoClient, cfg.DynamoTables.AlertResponses),
		NotificationRepo: dynamo.NewNotificationRepo(dynamoClient, cfg.DynamoTables.Notifications),
		AuditRepo:        dynamo.NewAuditRepo(dynamoClient, cfg.DynamoTables.AuditRecords),
		ArchiveStore:     s3infra.NewArchiveStore(s3Client, cfg.AuditArchiveBucket),
		PushSender:       pushSender,
		SMSSender:        smsSender,
		Metrics:          metrics.New(registry),
		Registry:         registry,
	}
	return cfg, deps
}

func buildServices(cmd *cobra.Command) *transporthttp.Services {
	cfg, deps := buildDeps(cmd)
	return transporthttp.BuildServices(cfg, deps)
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
