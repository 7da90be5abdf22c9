package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

func TestEscalateAssignsLeastLoadedSenior(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.addTicket(t, ticketSeed{title: "busy one", limit: 8, assignee: &f.seniorA.ID})
	f.addTicket(t, ticketSeed{title: "busy two", limit: 8, status: domain.TicketStatusInProgress, assignee: &f.seniorA.ID})
	ticket := f.addTicket(t, ticketSeed{title: "Mail server down", limit: 8, assignee: &f.tech.ID})

	updated, err := f.escalations.Escalate(ctx, ticket.ID, "customer is a VIP", &f.manager.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, updated.Status)
	require.NotNil(t, updated.AssigneeID)
	assert.Equal(t, f.seniorB.ID, *updated.AssigneeID)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	assert.Equal(t, f.seniorB.ID, *stored.AssigneeID)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionEscalated, logs[0].Action)
	assert.Equal(t, &f.manager.ID, logs[0].ActorID)
	assert.Equal(t, "Escalated by Maria Manager. Reason: customer is a VIP", *logs[0].Details)

	seniorInbox := f.notifications(t, f.seniorB.ID)
	require.Len(t, seniorInbox, 1)
	assert.Equal(t, domain.SeverityAlert, seniorInbox[0].Severity)
	assert.Contains(t, seniorInbox[0].Message, "Escalated ticket assigned: Mail server down. Reason: customer is a VIP")

	techInbox := f.notifications(t, f.tech.ID)
	require.Len(t, techInbox, 1)
	assert.Equal(t, domain.SeverityInfo, techInbox[0].Severity)

	escalatedEvents := f.publishedOfType(events.EventTicketEscalated)
	require.Len(t, escalatedEvents, 1)
	assert.Equal(t, ticket.ID, escalatedEvents[0].TicketID)
	assert.NotEmpty(t, escalatedEvents[0].ID)
	assert.Len(t, f.publishedOfType(events.EventNotificationCreated), 2)
}

func TestEscalateSkipsPreviousAssigneeNoticeWhenUnchanged(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{limit: 8, assignee: &f.seniorA.ID})
	f.addTicket(t, ticketSeed{limit: 8, assignee: &f.seniorB.ID})

	// seniorA already carries this ticket, seniorB carries one too; the tie goes to seniorA.
	updated, err := f.escalations.Escalate(context.Background(), ticket.ID, "stuck", nil)
	require.NoError(t, err)
	assert.Equal(t, f.seniorA.ID, *updated.AssigneeID)
	assert.Len(t, f.notifications(t, f.seniorA.ID), 1)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].ActorID)
	assert.Equal(t, "Escalated by System. Reason: stuck", *logs[0].Details)
}

func TestEscalateErrors(t *testing.T) {
	t.Run("ticket not found", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.escalations.Escalate(context.Background(), 999, "reason", &f.manager.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
	})

	t.Run("reason required", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.addTicket(t, ticketSeed{limit: 8})
		_, err := f.escalations.Escalate(context.Background(), ticket.ID, "  ", &f.manager.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	})

	t.Run("no eligible technician", func(t *testing.T) {
		f := newFixture(t, withoutSeniors())
		ticket := f.addTicket(t, ticketSeed{limit: 8, assignee: &f.tech.ID})
		_, err := f.escalations.Escalate(context.Background(), ticket.ID, "reason", &f.manager.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeNoEligibleTechnician))

		stored := f.ticket(t, ticket.ID)
		assert.Equal(t, domain.TicketStatusOpen, stored.Status)
		assert.Equal(t, f.tech.ID, *stored.AssigneeID)
		assert.Empty(t, f.logs(t, ticket.ID))
	})

	t.Run("resolved ticket", func(t *testing.T) {
		f := newFixture(t)
		ticket := f.addTicket(t, ticketSeed{limit: 8, status: domain.TicketStatusResolved})
		_, err := f.escalations.Escalate(context.Background(), ticket.ID, "reason", &f.manager.ID)
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	})
}

func TestEscalateRollsBackWhenNotificationFails(t *testing.T) {
	faulty := &faultyStore{failNotifications: true}
	f := newFixture(t, withStore(func(s repository.Store) repository.Store {
		faulty.Store = s
		return faulty
	}))
	ticket := f.addTicket(t, ticketSeed{limit: 8, assignee: &f.tech.ID})

	_, err := f.escalations.Escalate(context.Background(), ticket.ID, "reason", &f.manager.ID)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInternal))

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)
	assert.Equal(t, f.tech.ID, *stored.AssigneeID)
	assert.Empty(t, f.logs(t, ticket.ID))
	assert.Empty(t, f.published)
}

func TestReassign(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.addTicket(t, ticketSeed{title: "Printer jam", limit: 8, status: domain.TicketStatusEscalated, assignee: &f.seniorA.ID})

	updated, err := f.escalations.Reassign(ctx, ticket.ID, f.seniorB.ID, &f.manager.ID, ptr("shift change"))
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusEscalated, updated.Status)
	assert.Equal(t, f.seniorB.ID, *updated.AssigneeID)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionReassigned, logs[0].Action)
	assert.Equal(t, "Reassigned by Maria Manager. Reason: shift change", *logs[0].Details)

	newInbox := f.notifications(t, f.seniorB.ID)
	require.Len(t, newInbox, 1)
	assert.Equal(t, "Ticket assigned to you: Printer jam", newInbox[0].Message)

	oldInbox := f.notifications(t, f.seniorA.ID)
	require.Len(t, oldInbox, 1)
	assert.Contains(t, oldInbox[0].Message, "has been reassigned")

	reassigned := f.publishedOfType(events.EventTicketReassigned)
	require.Len(t, reassigned, 1)
	payload, ok := reassigned[0].Payload.(events.TicketReassignedPayload)
	require.True(t, ok)
	assert.Equal(t, f.seniorA.ID, *payload.OldAssigneeID)
	assert.Equal(t, f.seniorB.ID, payload.NewAssigneeID)
	assert.Equal(t, domain.TicketStatusEscalated, payload.Status)
	assert.Equal(t, "shift change", payload.Reason)
	assert.Empty(t, f.publishedOfType(events.EventTicketEscalated))
}

func TestReassignErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.addTicket(t, ticketSeed{limit: 8, assignee: &f.tech.ID})
	resolved := f.addTicket(t, ticketSeed{limit: 8, status: domain.TicketStatusResolved})

	_, err := f.escalations.Reassign(ctx, 999, f.seniorA.ID, &f.manager.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.escalations.Reassign(ctx, ticket.ID, 999, &f.manager.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	_, err = f.escalations.Reassign(ctx, ticket.ID, f.requester.ID, &f.manager.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = f.escalations.Reassign(ctx, resolved.ID, f.seniorA.ID, &f.manager.ID, nil)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))

	assert.Equal(t, f.tech.ID, *f.ticket(t, ticket.ID).AssigneeID)
}

func TestAutoEscalateSweepIsolatesFailures(t *testing.T) {
	faulty := &faultyStore{}
	f := newFixture(t, withStore(func(s repository.Store) repository.Store {
		faulty.Store = s
		return faulty
	}))
	first := f.addTicket(t, ticketSeed{title: "first", limit: 4, tier: domain.RiskTierHighRisk})
	second := f.addTicket(t, ticketSeed{title: "second", limit: 4, tier: domain.RiskTierBreached, assignee: &f.tech.ID})
	third := f.addTicket(t, ticketSeed{title: "third", limit: 4, status: domain.TicketStatusInProgress, tier: domain.RiskTierHighRisk})
	faulty.failUpdateFor = second.ID

	outcomes := f.escalations.AutoEscalateSweep(context.Background())
	require.Len(t, outcomes, 3)

	assert.Equal(t, first.ID, outcomes[0].TicketID)
	assert.True(t, outcomes[0].Escalated)
	assert.Equal(t, f.seniorA.Name, outcomes[0].AssigneeName)

	assert.Equal(t, second.ID, outcomes[1].TicketID)
	assert.False(t, outcomes[1].Escalated)
	assert.Equal(t, domain.RiskTierBreached, outcomes[1].RiskTier)
	assert.Contains(t, outcomes[1].Reason, "store unavailable")

	assert.Equal(t, third.ID, outcomes[2].TicketID)
	assert.True(t, outcomes[2].Escalated)
	assert.Equal(t, f.seniorB.Name, outcomes[2].AssigneeName)

	stuck := f.ticket(t, second.ID)
	assert.Equal(t, domain.TicketStatusOpen, stuck.Status)
	assert.Equal(t, f.tech.ID, *stuck.AssigneeID)
	assert.Empty(t, f.logs(t, second.ID))
}

func TestAutoEscalateSweepNotifiesManagers(t *testing.T) {
	f := newFixture(t)
	ticket := f.addTicket(t, ticketSeed{title: "DB latency", limit: 4, tier: domain.RiskTierHighRisk, assignee: &f.tech.ID})

	outcomes := f.escalations.AutoEscalateSweep(context.Background())
	require.Len(t, outcomes, 1)
	require.True(t, outcomes[0].Escalated)

	logs := f.logs(t, ticket.ID)
	require.Len(t, logs, 1)
	assert.Equal(t, domain.ActionAutoEscalated, logs[0].Action)
	assert.Nil(t, logs[0].ActorID)

	managerInbox := f.notifications(t, f.manager.ID)
	require.Len(t, managerInbox, 1)
	assert.Equal(t, domain.SeverityWarning, managerInbox[0].Severity)
	assert.Contains(t, managerInbox[0].Message, "auto-escalated to Sam Senior - Risk: HIGH_RISK")

	seniorInbox := f.notifications(t, f.seniorA.ID)
	require.Len(t, seniorInbox, 1)
	assert.Equal(t, domain.SeverityAlert, seniorInbox[0].Severity)

	assert.Len(t, f.notifications(t, f.tech.ID), 1)
	assert.Len(t, f.publishedOfType(events.EventTicketAutoEscalated), 1)
}

func TestAutoEscalateSweepWithoutSeniors(t *testing.T) {
	f := newFixture(t, withoutSeniors())
	ticket := f.addTicket(t, ticketSeed{limit: 4, tier: domain.RiskTierBreached})

	outcomes := f.escalations.AutoEscalateSweep(context.Background())
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Escalated)
	assert.Equal(t, "no eligible senior technician available", outcomes[0].Reason)
	assert.Equal(t, domain.TicketStatusOpen, f.ticket(t, ticket.ID).Status)
}

func TestAutoEscalateSweepIgnoresEscalatedAndResolved(t *testing.T) {
	f := newFixture(t)
	f.addTicket(t, ticketSeed{limit: 4, tier: domain.RiskTierBreached, status: domain.TicketStatusEscalated, assignee: &f.seniorA.ID})
	f.addTicket(t, ticketSeed{limit: 4, tier: domain.RiskTierBreached, status: domain.TicketStatusResolved})
	f.addTicket(t, ticketSeed{limit: 4, tier: domain.RiskTierWarning})

	assert.Empty(t, f.escalations.AutoEscalateSweep(context.Background()))
}

func countActions(entries []domain.ActivityLogEntry, action string) int {
	n := 0
	for _, e := range entries {
		if e.Action == action {
			n++
		}
	}
	return n
}

func TestConcurrentSweepsEscalateOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.addTicket(t, ticketSeed{limit: 8, tier: domain.RiskTierHighRisk, assignee: &f.tech.ID})

	var wg sync.WaitGroup
	outcomes := make([][]EscalationOutcome, 2)
	for i := range outcomes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i] = f.escalations.AutoEscalateSweep(ctx)
		}(i)
	}
	wg.Wait()

	escalated := 0
	for _, run := range outcomes {
		for _, o := range run {
			if o.Escalated {
				escalated++
			}
		}
	}
	assert.Equal(t, 1, escalated)

	logs := f.logs(t, ticket.ID)
	assert.Equal(t, 1, countActions(logs, domain.ActionAutoEscalated))
	auto := f.publishedOfType(events.EventTicketAutoEscalated)
	require.Len(t, auto, 1)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	payload := auto[0].Payload.(events.TicketEscalatedPayload)
	assert.Equal(t, payload.NewAssigneeID, *stored.AssigneeID)
}

func TestSweepRacingManualEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ticket := f.addTicket(t, ticketSeed{limit: 8, tier: domain.RiskTierHighRisk, assignee: &f.tech.ID})

	var (
		wg     sync.WaitGroup
		manual *domain.Ticket
		err    error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.escalations.AutoEscalateSweep(ctx)
	}()
	go func() {
		defer wg.Done()
		manual, err = f.escalations.Escalate(ctx, ticket.ID, "customer is a VIP", &f.manager.ID)
	}()
	wg.Wait()

	// Whichever transaction runs second sees the first one's write: the sweep
	// skips an ESCALATED ticket, a manual escalation re-runs the balancer.
	require.NoError(t, err)
	logs := f.logs(t, ticket.ID)
	assert.Equal(t, 1, countActions(logs, domain.ActionEscalated))
	assert.LessOrEqual(t, countActions(logs, domain.ActionAutoEscalated), 1)

	stored := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.TicketStatusEscalated, stored.Status)
	require.NotNil(t, stored.AssigneeID)
	assert.Equal(t, *manual.AssigneeID, *stored.AssigneeID)
	assert.Contains(t, []int64{f.seniorA.ID, f.seniorB.ID}, *stored.AssigneeID)
}
