package http

import (
	"github.com/carelink-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/carelink-api/internal/infrastructure/jwt"
	"github.com/carelink-api/internal/infrastructure/push"
	s3infra "github.com/carelink-api/internal/infrastructure/s3"
	"github.com/carelink-api/internal/infrastructure/sns"
	"github.com/carelink-api/internal/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	ProfileRepo      *dynamo.ProfileRepo
	CareTeamRepo     *dynamo.CareTeamRepo
	ReminderRepo     *dynamo.ReminderRepo
	AlertRepo        *dynamo.AlertRepo
	ResponseRepo     *dynamo.ResponseRepo
	NotificationRepo *dynamo.NotificationRepo
	AuditRepo        *dynamo.AuditRepo
	ArchiveStore     *s3infra.ArchiveStore
	PushSender       push.Sender
	SMSSender        sns.SMSSender
	JWTProvider      *jwtinfra.Provider
	Metrics          *metrics.Metrics
	Registry         *prometheus.Registry
}
