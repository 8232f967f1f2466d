package domain

import "time"

// Alert categories.
const (
	AlertCategoryMedical = "medical"
	AlertCategoryFall    = "fall"
	AlertCategoryPanic   = "panic"
	AlertCategoryOther   = "other"
)

// Alert severities, in escalating order.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Alert statuses.
const (
	AlertStatusActive     = "active"
	AlertStatusInProgress = "in_progress"
	AlertStatusResolved   = "resolved"
)

// Alert response types.
const (
	ResponseAcknowledged = "acknowledged"
	ResponseResolved     = "resolved"
	ResponseEscalated    = "escalated"
)

// Alert is a one-off, severity-tagged emergency event raised for a subject.
// Core fields are immutable after creation; only Status and LastResponse
// change, via response processing.
type Alert struct {
	AlertID      string    `json:"id" dynamodbav:"alert_id"`
	SubjectID    string    `json:"subject_id" dynamodbav:"subject_id"`
	Category     string    `json:"category" dynamodbav:"category"`
	Severity     string    `json:"severity" dynamodbav:"severity"`
	Location     *string   `json:"location,omitempty" dynamodbav:"location"`
	Description  *string   `json:"description,omitempty" dynamodbav:"description"`
	Status       string    `json:"status" dynamodbav:"status"`
	LastResponse *string   `json:"last_response,omitempty" dynamodbav:"last_response"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
	UpdatedAt    time.Time `json:"updated" dynamodbav:"updated_at"`
}

// ResponseRecord preserves the full response history of an alert; Alert.LastResponse
// only keeps the latest type. Append-only.
type ResponseRecord struct {
	AlertID      string    `json:"alert_id" dynamodbav:"alert_id"`
	ResponseID   string    `json:"id" dynamodbav:"response_id"`
	ResponderID  string    `json:"responder_id" dynamodbav:"responder_id"`
	ResponseType string    `json:"response_type" dynamodbav:"response_type"`
	Notes        *string   `json:"notes,omitempty" dynamodbav:"notes"`
	CreatedAt    time.Time `json:"created" dynamodbav:"created_at"`
}

type RaiseAlertRequest struct {
	SubjectID   string  `json:"subject_id" validate:"required"`
	Category    string  `json:"category" validate:"required,oneof=medical fall panic other"`
	Severity    string  `json:"severity" validate:"required,oneof=low medium high critical"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

type AlertResponseRequest struct {
	ResponseType string  `json:"response_type" validate:"required"`
	Notes        *string `json:"notes"`
}
