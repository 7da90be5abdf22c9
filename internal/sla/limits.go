package sla

import "github.com/spec-kit/sla-guard/internal/domain"

// fallbackHours applies to priorities missing from every table.
const fallbackHours = 24

// Limits maps priorities to SLA hours.
type Limits map[domain.TicketPriority]float64

// DefaultLimits is used when neither the database nor configuration has a value.
func DefaultLimits() Limits {
	return Limits{
		domain.TicketPriorityCritical: 4,
		domain.TicketPriorityHigh:     8,
		domain.TicketPriorityMedium:   24,
		domain.TicketPriorityLow:      48,
	}
}

// For returns the limit for a priority.
func (l Limits) For(priority domain.TicketPriority) float64 {
	if hours, ok := l[priority]; ok {
		return hours
	}
	if hours, ok := DefaultLimits()[priority]; ok {
		return hours
	}
	return fallbackHours
}
