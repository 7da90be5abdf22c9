package domain

import "time"

// Activity log action tags.
const (
	ActionCreated        = "CREATED"
	ActionAccepted       = "ACCEPTED"
	ActionProgressUpdate = "PROGRESS_UPDATE"
	ActionResolved       = "RESOLVED"
	ActionEscalated      = "ESCALATED"
	ActionAutoEscalated  = "AUTO_ESCALATED"
	ActionReassigned     = "REASSIGNED"
	ActionUpdated        = "UPDATED"
)

// ActivityLogEntry is an immutable audit trail entry. A nil ActorID marks a system action.
type ActivityLogEntry struct {
	ID        int64
	TicketID  int64
	ActorID   *int64
	Action    string
	Details   *string
	Timestamp time.Time
}
