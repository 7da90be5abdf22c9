package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
)

func TestRunTickCriticalTicketAutoEscalates(t *testing.T) {
	f := newFixture(t)
	f.addTicket(t, ticketSeed{title: "existing", limit: 8, assignee: &f.seniorA.ID})
	ticket := f.addTicket(t, ticketSeed{
		title:    "Payments failing",
		priority: domain.TicketPriorityCritical,
		limit:    4,
		assignee: &f.tech.ID,
	})

	report := f.monitor.RunTick(context.Background(), t0.Add(3*time.Hour+30*time.Minute))
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.TiersChanged)
	assert.Equal(t, 1, report.HighRiskAlerts)
	assert.Equal(t, 1, report.Escalated)
	assert.Zero(t, report.EscalationFailures)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.RiskTierHighRisk, stored.RiskTier)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	assert.Equal(t, f.seniorB.ID, *stored.AssigneeID)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionAutoEscalated, logs[0].Action)
	assert.Nil(t, logs[0].ActorID)

	var alerts, sweeps int
	for _, n := range f.notifications(t, f.manager.ID) {
		assert.Equal(t, domain.SeverityWarning, n.Severity)
		assert.Equal(t, ticket.ID, *n.TicketID)
		switch {
		case strings.Contains(n.Message, "HIGH RISK ALERT"):
			alerts++
		case strings.Contains(n.Message, "auto-escalated"):
			sweeps++
		}
	}
	assert.Equal(t, 1, alerts)
	assert.Equal(t, 1, sweeps)

	changes := f.publishedOfType(events.EventRiskTierChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, ticket.ID, changes[0].TicketID)
}

func TestRunTickZeroLimitBreachesImmediately(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{limit: 0, createdAt: t0})

	report := f.monitor.RunTick(context.Background(), t0)
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.TiersChanged)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.RiskTierBreached, stored.RiskTier)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
}

func TestRunTickWarningDoesNotAlertOrEscalate(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{limit: 8})

	report := f.monitor.RunTick(context.Background(), t0.Add(5*time.Hour))
	assert.Equal(t, 1, report.TiersChanged)
	assert.Zero(t, report.HighRiskAlerts)
	assert.Empty(t, report.Outcomes)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.RiskTierWarning, stored.RiskTier)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Empty(t, f.notifications(t, f.manager.ID))
}

func TestRunTickIsIdempotentWithinSameTier(t *testing.T) {
	f := newFixture(t)
	f.addTicket(t, ticketSeed{limit: 8})
	now := t0.Add(7 * time.Hour)

	first := f.monitor.RunTick(context.Background(), now)
	assert.Equal(t, 1, first.TiersChanged)
	inbox := len(f.notifications(t, f.manager.ID))

	second := f.monitor.RunTick(context.Background(), now.Add(10*time.Minute))
	assert.Zero(t, second.TiersChanged)
	assert.Zero(t, second.HighRiskAlerts)
	assert.Len(t, f.notifications(t, f.manager.ID), inbox)
}

func TestRunTickAlertsAgainOnBreach(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{limit: 4, status: domain.TicketStatusEscalated, tier: domain.RiskTierHighRisk, assignee: &f.seniorA.ID})

	report := f.monitor.RunTick(context.Background(), t0.Add(5*time.Hour))
	assert.Equal(t, 1, report.TiersChanged)
	assert.Equal(t, 1, report.HighRiskAlerts)
	assert.Empty(t, report.Outcomes)
	assert.Equal(t, domain.RiskTierBreached, f.ticket(t, ticket.ID).RiskTier)
}

func TestRunTickLeavesResolvedTicketsFrozen(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{limit: 4, status: domain.TicketStatusResolved, tier: domain.RiskTierWarning})

	report := f.monitor.RunTick(context.Background(), t0.Add(100*time.Hour))
	assert.Zero(t, report.Scanned)
	assert.Equal(t, domain.RiskTierWarning, f.ticket(t, ticket.ID).RiskTier)
}

func TestRunTickAbandonsWhenListingFails(t *testing.T) {
	faulty := &faultyStore{failListActive: true}
	f := newFixture(t, withStore(func(s repository.Store) repository.Store {
		faulty.Store = s
		return faulty
	}))
	f.addTicket(t, ticketSeed{limit: 4, tier: domain.RiskTierHighRisk})

	report := f.monitor.RunTick(context.Background(), t0.Add(time.Hour))
	assert.ErrorIs(t, report.Err, errStoreUnavailable)
	assert.Zero(t, report.Scanned)
	assert.Empty(t, report.Outcomes)
}

func TestRunTickContinuesPastTicketFailure(t *testing.T) {
	faulty := &faultyStore{}
	f := newFixture(t, withStore(func(s repository.Store) repository.Store {
		faulty.Store = s
		return faulty
	}))
	broken := f.addTicket(t, ticketSeed{limit: 8})
	healthy := f.addTicket(t, ticketSeed{limit: 8})
	faulty.failTierFor = broken.ID

	report := f.monitor.RunTick(context.Background(), t0.Add(5*time.Hour))
	require.NoError(t, report.Err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.TiersChanged)
	assert.Equal(t, domain.RiskTierSafe, f.ticket(t, broken.ID).RiskTier)
	assert.Equal(t, domain.RiskTierWarning, f.ticket(t, healthy.ID).RiskTier)
}
