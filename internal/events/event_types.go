package events

import (
	"time"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAccepted      EventType = "ticket_accepted"
	EventTicketResolved      EventType = "ticket_resolved"
	EventTicketEscalated     EventType = "ticket_escalated"
	EventTicketAutoEscalated EventType = "ticket_auto_escalated"
	EventTicketReassigned    EventType = "ticket_reassigned"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketDeleted       EventType = "ticket_deleted"
	EventTicketCommented     EventType = "ticket_commented"
	EventRiskTierChanged     EventType = "risk_tier_changed"
	EventNotificationCreated EventType = "notification_created"
)

// TicketEventTypes lists every event that describes a ticket change.
var TicketEventTypes = []EventType{
	EventTicketCreated,
	EventTicketAccepted,
	EventTicketResolved,
	EventTicketEscalated,
	EventTicketAutoEscalated,
	EventTicketReassigned,
	EventTicketUpdated,
	EventTicketDeleted,
	EventTicketCommented,
	EventRiskTierChanged,
}

// Actor identifies who caused an event. A nil UserID means the system did.
type Actor struct {
	UserID *int64 `json:"user_id,omitempty"`
}

// SystemActor is the actor for monitor-driven changes.
var SystemActor = Actor{}

// UserActor wraps an optional user id.
func UserActor(userID *int64) Actor {
	return Actor{UserID: userID}
}

// Event represents a domain event emitted by services after their transaction commits.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  int64       `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Priority      domain.TicketPriority `json:"priority"`
	Title         string                `json:"title"`
	SLALimitHours float64               `json:"sla_limit_hours"`
	AssigneeID    *int64                `json:"assignee_id,omitempty"`
}

// TicketStatusChangedPayload covers accept and resolve.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"old_status"`
	NewStatus domain.TicketStatus `json:"new_status"`
}

// TicketEscalatedPayload covers manual and automatic escalation.
type TicketEscalatedPayload struct {
	OldAssigneeID *int64          `json:"old_assignee_id,omitempty"`
	NewAssigneeID int64           `json:"new_assignee_id"`
	RiskTier      domain.RiskTier `json:"risk_tier"`
	Reason        string          `json:"reason,omitempty"`
}

// TicketReassignedPayload records a hand-over that keeps the ticket's status.
type TicketReassignedPayload struct {
	OldAssigneeID *int64              `json:"old_assignee_id,omitempty"`
	NewAssigneeID int64               `json:"new_assignee_id"`
	Status        domain.TicketStatus `json:"status"`
	Reason        string              `json:"reason,omitempty"`
}

// TicketUpdatedPayload lists the edited fields.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketDeletedPayload payload.
type TicketDeletedPayload struct {
	Title string `json:"title"`
}

// TicketCommentedPayload payload.
type TicketCommentedPayload struct {
	CommentID   int64  `json:"comment_id"`
	AuthorID    int64  `json:"author_id"`
	Internal    bool   `json:"internal"`
	BodyPreview string `json:"body_preview"`
}

// RiskTierChangedPayload payload.
type RiskTierChangedPayload struct {
	OldTier        domain.RiskTier `json:"old_tier"`
	NewTier        domain.RiskTier `json:"new_tier"`
	RiskPercentage float64         `json:"risk_percentage"`
}

// NotificationCreatedPayload carries the stored notification for realtime fan-out.
type NotificationCreatedPayload struct {
	Notification domain.Notification `json:"notification"`
}
