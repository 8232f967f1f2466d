package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort string
	AppEnv  string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables

	AuditArchiveBucket   string
	AuditRetentionMonths int
	AuditSweepBatchSize  int

	JWTPublicKeyPath  string
	JWTPrivateKeyPath string
	JWTExpiryDays     int

	SNSRegion string

	ReminderLookahead      time.Duration
	ReminderTickInterval   time.Duration
	DeferredSweepInterval  time.Duration
	RetentionSweepInterval time.Duration
	PushTimeout            time.Duration
	SMSTimeout             time.Duration
	DispatchWorkers        int

	AllowedOrigins []string // CORS allowed origins
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Profiles       string
	CareTeam       string
	Reminders      string
	Alerts         string
	AlertResponses string
	Notifications  string
	AuditRecords   string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppPort: getEnv("APP_PORT", "3000"),
		AppEnv:  getEnv("APP_ENV", "development"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Profiles:       getEnv("DYNAMO_TABLE_PROFILES", "profiles"),
			CareTeam:       getEnv("DYNAMO_TABLE_CARE_TEAM", "care_team"),
			Reminders:      getEnv("DYNAMO_TABLE_REMINDERS", "reminders"),
			Alerts:         getEnv("DYNAMO_TABLE_ALERTS", "alerts"),
			AlertResponses: getEnv("DYNAMO_TABLE_ALERT_RESPONSES", "alert_responses"),
			Notifications:  getEnv("DYNAMO_TABLE_NOTIFICATIONS", "notifications"),
			AuditRecords:   getEnv("DYNAMO_TABLE_AUDIT_RECORDS", "audit_records"),
		},

		AuditArchiveBucket:   getEnv("AUDIT_ARCHIVE_BUCKET", "carelink-audit-archive"),
		AuditRetentionMonths: getEnvInt("AUDIT_RETENTION_MONTHS", 6),
		AuditSweepBatchSize:  getEnvInt("AUDIT_SWEEP_BATCH_SIZE", 1000),

		JWTPublicKeyPath:  getEnv("JWT_PUBLIC_KEY_PATH", "./public_key.pem"),
		JWTPrivateKeyPath: getEnv("JWT_PRIVATE_KEY_PATH", "./private_key.pem"),
		JWTExpiryDays:     getEnvInt("JWT_EXPIRY_DAYS", 7),

		SNSRegion: getEnv("SNS_REGION", "us-east-1"),

		ReminderLookahead:      getEnvDuration("REMINDER_LOOKAHEAD", time.Hour),
		ReminderTickInterval:   getEnvDuration("REMINDER_TICK_INTERVAL", time.Hour),
		DeferredSweepInterval:  getEnvDuration("DEFERRED_SWEEP_INTERVAL", time.Minute),
		RetentionSweepInterval: getEnvDuration("RETENTION_SWEEP_INTERVAL", 24*time.Hour),
		PushTimeout:            getEnvDuration("PUSH_TIMEOUT", 5*time.Second),
		SMSTimeout:             getEnvDuration("SMS_TIMEOUT", 5*time.Second),
		DispatchWorkers:        getEnvInt("DISPATCH_WORKERS", 8),

		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "*"), ","),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
