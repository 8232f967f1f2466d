// Package escalation is the pure decision table mapping an alert's severity
// to recommended actions, recipient groups, and notification priority.
// No I/O happens here; the orchestrator executes the fan-out.
package escalation

import "github.com/carelink-api/internal/domain"

// Action texts returned to callers. They are informational: the orchestrator
// reports them with the alert, it does not execute them.
const (
	ActionImmediateAttention = "Immediate attention required"
	ActionUrgentAttention    = "Urgent attention recommended"
	ActionAttention          = "Attention recommended"
	ActionMonitor            = "Monitor the situation"
	ActionNotifyEmergency    = "Notify emergency services"
	ActionNotifyFamily       = "Notify family"
	ActionNotifyCaregivers   = "Notify family and caregivers"
	ActionNotifyCaregiver    = "Notify caregiver"
)

// Groups selects which recipient groups an alert fans out to.
type Groups struct {
	Self             bool // the subject always sees their own alert
	Caregivers       bool
	Providers        bool
	EmergencyContact bool
}

// ResolveResponse returns the ordered action list for a severity. Unknown
// severities fall back to the low row; the exposed layer validates the enum
// before anything reaches this table.
func ResolveResponse(severity string) []string {
	switch severity {
	case domain.SeverityCritical:
		return []string{ActionImmediateAttention, ActionNotifyEmergency, ActionNotifyCaregivers}
	case domain.SeverityHigh:
		return []string{ActionUrgentAttention, ActionNotifyCaregiver, ActionNotifyFamily}
	case domain.SeverityMedium:
		return []string{ActionAttention, ActionNotifyCaregiver}
	default:
		return []string{ActionMonitor, ActionNotifyCaregiver}
	}
}

// SelectRecipientGroups decides who gets notified. Caregivers are always
// included; providers only for high and critical severities; the emergency
// contact only when one is on file.
func SelectRecipientGroups(severity string, hasEmergencyContact bool) Groups {
	return Groups{
		Self:             true,
		Caregivers:       true,
		Providers:        severity == domain.SeverityHigh || severity == domain.SeverityCritical,
		EmergencyContact: hasEmergencyContact,
	}
}

// PriorityFor maps an alert severity to the notification priority used for
// its fan-out.
func PriorityFor(severity string) string {
	switch severity {
	case domain.SeverityHigh, domain.SeverityCritical:
		return domain.PriorityHigh
	default:
		return domain.PriorityNormal
	}
}
