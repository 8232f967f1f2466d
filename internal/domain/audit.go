package domain

import "time"

// Audit origins identify which part of the system wrote a record.
const (
	OriginScheduler    = "scheduler"
	OriginDispatcher   = "dispatcher"
	OriginOrchestrator = "orchestrator"
	OriginAPI          = "api"
)

// Audit actions.
const (
	ActionReminderFired    = "reminder_fired"
	ActionMedicationLogged = "medication_logged"
	ActionReminderCreated  = "reminder_created"
	ActionReminderUpdated  = "reminder_updated"
	ActionAlertRaised      = "alert_raised"
	ActionAlertResponded   = "alert_responded"
	ActionRetentionSwept   = "retention_swept"
)

// AuditRecord is one append-only compliance entry. Records are never mutated
// and only removed by the retention sweep once past the retention cutoff.
type AuditRecord struct {
	AuditID   string            `json:"id" dynamodbav:"audit_id"`
	ActorID   string            `json:"actor_id" dynamodbav:"actor_id"`
	Action    string            `json:"action" dynamodbav:"action"`
	TargetID  *string           `json:"target_id,omitempty" dynamodbav:"target_id"`
	Origin    string            `json:"origin" dynamodbav:"origin"`
	Details   map[string]string `json:"details,omitempty" dynamodbav:"details"`
	CreatedAt time.Time         `json:"created" dynamodbav:"created_at"`
}
