package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
)

func TestAnalytics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	svc := NewAnalyticsService(f.store)

	f.addTicket(t, ticketSeed{tier: domain.RiskTierSafe, assignee: &f.tech.ID})
	f.addTicket(t, ticketSeed{tier: domain.RiskTierHighRisk, status: domain.TicketStatusInProgress, assignee: &f.tech.ID})
	f.addTicket(t, ticketSeed{tier: domain.RiskTierBreached, status: domain.TicketStatusEscalated, assignee: &f.seniorA.ID})
	f.addTicket(t, ticketSeed{tier: domain.RiskTierBreached, status: domain.TicketStatusResolved, assignee: &f.tech.ID})
	f.addTicket(t, ticketSeed{tier: domain.RiskTierWarning, status: domain.TicketStatusResolved,
		createdAt: t0.Add(-2 * time.Hour)})

	overview, err := svc.Overview(ctx)
	require.NoError(t, err)
	assert.Equal(t, &Overview{
		TotalTickets:       5,
		HighRiskTickets:    2,
		BreachedTickets:    2,
		AvgResolutionHours: 1,
		OpenTickets:        1,
		InProgressTickets:  1,
		ResolvedTickets:    2,
		EscalatedTickets:   1,
	}, overview)

	dist, err := svc.RiskDistribution(ctx)
	require.NoError(t, err)
	assert.Equal(t, &RiskDistribution{Safe: 1, Warning: 1, HighRisk: 1, Breached: 2}, dist)

	workload, err := svc.TechnicianWorkload(ctx)
	require.NoError(t, err)
	require.Len(t, workload, 3)
	byID := map[int64]TechnicianWorkload{}
	for _, w := range workload {
		byID[w.TechnicianID] = w
	}
	assert.Equal(t, 2, byID[f.tech.ID].AssignedTickets)
	assert.Equal(t, 1, byID[f.tech.ID].HighRiskTickets)
	assert.Equal(t, 1, byID[f.seniorA.ID].AssignedTickets)
	assert.Equal(t, 1, byID[f.seniorA.ID].HighRiskTickets)
	assert.Equal(t, domain.UserRoleSeniorTechnician, byID[f.seniorB.ID].Role)
	assert.Zero(t, byID[f.seniorB.ID].AssignedTickets)
}
