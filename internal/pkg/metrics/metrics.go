// Package metrics exposes prometheus counters for the dispatch core.
// Channel and per-item batch failures are operational telemetry only, so they
// surface here rather than in returned errors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	RemindersFired         prometheus.Counter
	ReminderClaimConflicts prometheus.Counter
	ReminderErrors         prometheus.Counter
	NotificationsSent      *prometheus.CounterVec
	NotificationsFailed    prometheus.Counter
	ChannelFailures        *prometheus.CounterVec
	AlertsRaised           *prometheus.CounterVec
	AuditRecordsSwept      prometheus.Counter
	AuditWriteFailures     prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RemindersFired: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_reminders_fired_total",
			Help: "Total number of due reminders fired by the scheduler",
		}),
		ReminderClaimConflicts: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_reminder_claim_conflicts_total",
			Help: "Total number of due reminders lost to another worker's claim",
		}),
		ReminderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_reminder_errors_total",
			Help: "Total number of per-reminder failures during scheduler ticks",
		}),
		NotificationsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_notifications_sent_total",
			Help: "Total number of notifications marked sent, by delivery mode",
		}, []string{"mode"}),
		NotificationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_notifications_failed_total",
			Help: "Total number of deferred notifications marked failed",
		}),
		ChannelFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_channel_failures_total",
			Help: "Total number of soft side-channel delivery failures, by channel",
		}, []string{"channel"}),
		AlertsRaised: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "carelink_alerts_raised_total",
			Help: "Total number of alerts raised, by severity",
		}, []string{"severity"}),
		AuditRecordsSwept: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_audit_records_swept_total",
			Help: "Total number of audit records removed by the retention sweep",
		}),
		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "carelink_audit_write_failures_total",
			Help: "Total number of audit append failures after a successful entity mutation",
		}),
	}
}
