package domain

import "time"

// Role names carried in JWT claims and on profiles.
const (
	RoleSubject   = "subject"
	RoleCaregiver = "caregiver"
	RoleProvider  = "provider"
	RoleAdmin     = "admin"
)

// Profile is the minimal identity record the dispatch core needs about a person:
// who they are, how to reach their device, and who to call in an emergency.
type Profile struct {
	UserID           string            `json:"id" dynamodbav:"user_id"`
	DisplayName      string            `json:"display_name" dynamodbav:"display_name"`
	Role             string            `json:"role" dynamodbav:"role"`
	Phone            *string           `json:"phone,omitempty" dynamodbav:"phone"`
	PushToken        *string           `json:"push_token,omitempty" dynamodbav:"push_token"`
	EmergencyContact *EmergencyContact `json:"emergency_contact,omitempty" dynamodbav:"emergency_contact"`
	CreatedAt        time.Time         `json:"created" dynamodbav:"created_at"`
	UpdatedAt        time.Time         `json:"updated" dynamodbav:"updated_at"`
}

// EmergencyContact is the out-of-band contact on file for a subject.
type EmergencyContact struct {
	Name  string `json:"name" dynamodbav:"name"`
	Phone string `json:"phone" dynamodbav:"phone"`
}

// CareTeamMember links a caregiver or provider to a subject.
type CareTeamMember struct {
	SubjectID string    `json:"subject_id" dynamodbav:"subject_id"`
	MemberID  string    `json:"member_id" dynamodbav:"member_id"`
	Relation  string    `json:"relation" dynamodbav:"relation"` // "caregiver" | "provider"
	AddedAt   time.Time `json:"added_at" dynamodbav:"added_at"`
}

const (
	RelationCaregiver = "caregiver"
	RelationProvider  = "provider"
)
