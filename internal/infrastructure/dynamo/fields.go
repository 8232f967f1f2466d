package dynamo

// DynamoDB attribute names used in update expressions across all repos.
// Using constants prevents silent runtime bugs caused by key typos.
const (
	fieldStatus        = "status"
	fieldSentAt        = "sent_at"
	fieldFailedAt      = "failed_at"
	fieldFailureReason = "failure_reason"
	fieldRead          = "read"
	fieldUpdatedAt     = "updated_at"
)
