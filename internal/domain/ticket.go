package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "OPEN"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusEscalated  TicketStatus = "ESCALATED"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved, TicketStatusEscalated:
		return true
	}
	return false
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "LOW"
	TicketPriorityMedium   TicketPriority = "MEDIUM"
	TicketPriorityHigh     TicketPriority = "HIGH"
	TicketPriorityCritical TicketPriority = "CRITICAL"
)

// Priorities lists every priority, most urgent first.
var Priorities = []TicketPriority{
	TicketPriorityCritical,
	TicketPriorityHigh,
	TicketPriorityMedium,
	TicketPriorityLow,
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// RiskTier classifies how close a ticket is to breaching its SLA.
type RiskTier string

const (
	RiskTierSafe     RiskTier = "SAFE"
	RiskTierWarning  RiskTier = "WARNING"
	RiskTierHighRisk RiskTier = "HIGH_RISK"
	RiskTierBreached RiskTier = "BREACHED"
)

// NeedsEscalation reports whether the tier is at or above the escalation threshold.
func (r RiskTier) NeedsEscalation() bool {
	return r == RiskTierHighRisk || r == RiskTierBreached
}

// Ticket is the unit under SLA tracking.
type Ticket struct {
	ID            int64
	Title         string
	Customer      string
	Description   string
	Priority      TicketPriority
	Status        TicketStatus
	RiskTier      RiskTier
	SLALimitHours float64
	AssigneeID    *int64
	CreatedByID   *int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ResolvedAt    *time.Time
}

// IsActive reports whether the ticket still counts against an SLA.
func (t *Ticket) IsActive() bool {
	return t.Status != TicketStatusResolved
}

// CountsAsWorkload reports whether the ticket contributes to its assignee's open workload.
func (t *Ticket) CountsAsWorkload() bool {
	switch t.Status {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusEscalated:
		return true
	}
	return false
}

// NeedsEscalation reports whether the sweep should pick the ticket up.
func (t *Ticket) NeedsEscalation() bool {
	return t.RiskTier.NeedsEscalation() &&
		t.Status != TicketStatusEscalated &&
		t.Status != TicketStatusResolved
}
