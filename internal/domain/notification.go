package domain

import "time"

// Notification delivery modes.
const (
	ModeImmediate = "immediate"
	ModeScheduled = "scheduled"
)

// Notification statuses. Transitions are one-directional:
// created -> sent, or scheduled -> sent | failed. Sent and failed are terminal.
const (
	StatusCreated   = "created"
	StatusScheduled = "scheduled"
	StatusSent      = "sent"
	StatusFailed    = "failed"
)

// Notification priorities.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Source kinds for notifications that originate from a core event.
const (
	SourceReminder = "reminder"
	SourceAlert    = "alert"
)

// NotificationSource tags the core event a notification was produced for.
type NotificationSource struct {
	Kind  string `json:"kind" dynamodbav:"kind"` // "reminder" | "alert"
	RefID string `json:"ref_id" dynamodbav:"ref_id"`
}

// Payload is the channel-independent content of a notification. Data carries
// structured key-value extras for the client (deep links, entity ids).
type Payload struct {
	Title string            `json:"title" dynamodbav:"title"`
	Body  string            `json:"body" dynamodbav:"body"`
	Data  map[string]string `json:"data,omitempty" dynamodbav:"data"`
}

// Notification is one delivery to one recipient. The persisted record is the
// in-app inbox entry; push and SMS are side channels attempted on top of it.
type Notification struct {
	NotificationID string              `json:"id" dynamodbav:"notification_id"`
	RecipientID    string              `json:"recipient_id" dynamodbav:"recipient_id"`
	Payload        Payload             `json:"payload" dynamodbav:"payload"`
	Channel        string              `json:"channel" dynamodbav:"channel"` // "inbox" | "push" | "sms"
	Priority       string              `json:"priority" dynamodbav:"priority"`
	Mode           string              `json:"mode" dynamodbav:"mode"`
	Status         string              `json:"status" dynamodbav:"status"`
	Source         *NotificationSource `json:"source,omitempty" dynamodbav:"source"`
	ScheduledFor   *time.Time          `json:"scheduled_for,omitempty" dynamodbav:"scheduled_for,omitempty"`
	ClaimedAt      *time.Time          `json:"-" dynamodbav:"claimed_at,omitempty"`
	SentAt         *time.Time          `json:"sent_at,omitempty" dynamodbav:"sent_at"`
	FailedAt       *time.Time          `json:"failed_at,omitempty" dynamodbav:"failed_at"`
	FailureReason  *string             `json:"failure_reason,omitempty" dynamodbav:"failure_reason"`
	Read           int                 `json:"read" dynamodbav:"read"` // 1 = read, 0 = unread
	CreatedAt      time.Time           `json:"created" dynamodbav:"created_at"`
	UpdatedAt      time.Time           `json:"updated" dynamodbav:"updated_at"`
}

// Notification channels.
const (
	ChannelInbox = "inbox"
	ChannelPush  = "push"
	ChannelSMS   = "sms"
)
