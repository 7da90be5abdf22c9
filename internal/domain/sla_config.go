package domain

// SLAConfig maps a priority to its SLA budget in hours.
type SLAConfig struct {
	Priority TicketPriority
	Hours    float64
}
