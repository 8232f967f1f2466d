package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carelink-api/internal/config"
	"github.com/carelink-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/carelink-api/internal/infrastructure/jwt"
	"github.com/carelink-api/internal/infrastructure/push"
	s3infra "github.com/carelink-api/internal/infrastructure/s3"
	"github.com/carelink-api/internal/infrastructure/sns"
	"github.com/carelink-api/internal/pkg/metrics"
	transporthttp "github.com/carelink-api/internal/transport/http"
	"github.com/carelink-api/internal/worker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, reading from environment")
	}

	cfg := config.Load()

	// Bootstrap DynamoDB tables (creates them if they don't exist).
	dynamoClient := dynamo.NewClient(cfg)
	dynamo.Bootstrap(context.Background(), dynamoClient, cfg.DynamoTables)

	// JWT provider (optional — graceful fallback if keys are missing).
	var jwtProvider *jwtinfra.Provider
	if p, err := jwtinfra.NewProvider(cfg); err == nil {
		jwtProvider = p
	} else {
		log.Printf("WARN: JWT provider not available: %v", err)
	}

	// S3 audit archive.
	s3Client := s3infra.NewClient(cfg)
	archiveStore := s3infra.NewArchiveStore(s3Client, cfg.AuditArchiveBucket)

	// SNS channels (optional — graceful fallback).
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
		ArchiveStore:     archiveStore,
		PushSender:       pushSender,
		SMSSender:        smsSender,
		JWTProvider:      jwtProvider,
		Metrics:          metrics.New(registry),
		Registry:         registry,
	}

	svcs := transporthttp.BuildServices(cfg, deps)
	router := transporthttp.NewRouter(cfg, deps, svcs)

	runnerCtx, stopRunner := context.WithCancel(context.Background())
	runner := worker.NewRunner(worker.RunnerDeps{
		Reminders:         svcs.Reminders,
		Deferred:          svcs.Dispatch,
		Retention:         svcs.Audit,
		ReminderInterval:  cfg.ReminderTickInterval,
		DeferredInterval:  cfg.DeferredSweepInterval,
		RetentionInterval: cfg.RetentionSweepInterval,
	})
	go runner.Run(runnerCtx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	stopRunner()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}
	slog.Info("server stopped")
}
