package domain

import "time"

// Reminder is a recurring scheduled trigger for a care item (e.g. a medication).
// It is never deleted; deactivation flips IsActive to 0.
type Reminder struct {
	ReminderID     string     `json:"id" dynamodbav:"reminder_id"`
	SubjectID      string     `json:"subject_id" dynamodbav:"subject_id"`
	ItemID         string     `json:"item_id" dynamodbav:"item_id"`
	ItemLabel      string     `json:"item_label" dynamodbav:"item_label"`
	DosageLabel    string     `json:"dosage_label" dynamodbav:"dosage_label"`
	FrequencyLabel string     `json:"frequency_label" dynamodbav:"frequency_label"`
	NextDueAt      time.Time  `json:"next_due_at" dynamodbav:"next_due_at"`
	IsActive       int        `json:"is_active" dynamodbav:"is_active"` // 1 = active, 0 = deactivated (GSI hash key, so numeric)
	LastFiredAt    *time.Time `json:"last_fired_at,omitempty" dynamodbav:"last_fired_at"`
	CreatedAt      time.Time  `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time  `json:"updated" dynamodbav:"updated_at"`
}

type CreateReminderRequest struct {
	SubjectID      string `json:"subject_id" validate:"required"`
	ItemID         string `json:"item_id" validate:"required"`
	ItemLabel      string `json:"item_label" validate:"required"`
	DosageLabel    string `json:"dosage_label"`
	FrequencyLabel string `json:"frequency_label" validate:"required"`
}

type UpdateReminderRequest struct {
	ItemLabel      *string `json:"item_label"`
	DosageLabel    *string `json:"dosage_label"`
	FrequencyLabel *string `json:"frequency_label"`
	IsActive       *int    `json:"is_active"` // 1 = active, 0 = deactivated
}

// Medication event statuses accepted by LogMedicationEvent.
const (
	MedicationTaken   = "taken"
	MedicationSkipped = "skipped"
	MedicationMissed  = "missed"
)

type MedicationEventRequest struct {
	SubjectID string `json:"subject_id" validate:"required"`
	ItemID    string `json:"item_id" validate:"required"`
	Status    string `json:"status" validate:"required"`
	At        string `json:"at"` // RFC3339; defaults to now when empty
}
