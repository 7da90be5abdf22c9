// Package sla holds the pure risk math: ticket age against its SLA budget.
//
// Nothing here reads the system clock. Callers pick one evaluation instant and
// pass it to every calculation made in the same batch.
package sla

import (
	"time"

	"github.com/spec-kit/sla-guard/internal/domain"
)

const (
	warningThreshold  = 50.0
	highRiskThreshold = 75.0
	breachThreshold   = 100.0
)

// Assessment is the result of evaluating one ticket at one instant.
type Assessment struct {
	ElapsedHours   float64
	RiskPercentage float64
	Tier           domain.RiskTier
}

// ElapsedHours returns wall-clock hours between creation and now. A creation time
// after now yields zero.
func ElapsedHours(createdAt, now time.Time) float64 {
	d := now.Sub(createdAt)
	if d < 0 {
		return 0
	}
	return d.Hours()
}

// RiskPercentage returns elapsed/limit*100 clamped to [0, 100]. A non-positive
// limit is treated as already breached.
func RiskPercentage(elapsedHours, limitHours float64) float64 {
	if limitHours <= 0 {
		return breachThreshold
	}
	if elapsedHours <= 0 {
		return 0
	}
	pct := elapsedHours / limitHours * 100
	if pct > breachThreshold {
		return breachThreshold
	}
	return pct
}

// TierFor maps a percentage onto a tier. Each band includes its lower edge.
func TierFor(percentage float64) domain.RiskTier {
	switch {
	case percentage >= breachThreshold:
		return domain.RiskTierBreached
	case percentage >= highRiskThreshold:
		return domain.RiskTierHighRisk
	case percentage >= warningThreshold:
		return domain.RiskTierWarning
	default:
		return domain.RiskTierSafe
	}
}

// Assess evaluates a ticket's age against its budget at the given instant.
func Assess(createdAt time.Time, limitHours float64, now time.Time) Assessment {
	elapsed := ElapsedHours(createdAt, now)
	pct := RiskPercentage(elapsed, limitHours)
	return Assessment{
		ElapsedHours:   elapsed,
		RiskPercentage: pct,
		Tier:           TierFor(pct),
	}
}

// AssessTicket evaluates an active ticket. RESOLVED tickets keep their stored tier.
func AssessTicket(ticket *domain.Ticket, now time.Time) Assessment {
	if !ticket.IsActive() {
		end := now
		if ticket.ResolvedAt != nil {
			end = *ticket.ResolvedAt
		}
		elapsed := ElapsedHours(ticket.CreatedAt, end)
		return Assessment{
			ElapsedHours:   elapsed,
			RiskPercentage: RiskPercentage(elapsed, ticket.SLALimitHours),
			Tier:           ticket.RiskTier,
		}
	}
	return Assess(ticket.CreatedAt, ticket.SLALimitHours, now)
}
