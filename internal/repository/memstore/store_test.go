package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

func seedTicket(t *testing.T, s *Store, status domain.TicketStatus) *domain.Ticket {
	t.Helper()
	ticket := &domain.Ticket{
		Title:         "printer on fire",
		Customer:      "acme",
		Priority:      domain.TicketPriorityHigh,
		Status:        status,
		RiskTier:      domain.RiskTierSafe,
		SLALimitHours: 8,
	}
	require.NoError(t, s.Tickets().Create(context.Background(), ticket))
	return ticket
}

func TestWithinTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	ticket := seedTicket(t, s, domain.TicketStatusOpen)

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Tickets().GetForUpdate(ctx, ticket.ID)
		require.NoError(t, err)
		locked.Status = domain.TicketStatusEscalated
		require.NoError(t, tx.Tickets().Update(ctx, locked))
		require.NoError(t, tx.ActivityLogs().Append(ctx, &domain.ActivityLogEntry{TicketID: ticket.ID, Action: domain.ActionEscalated}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	stored, err := s.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, stored.Status)

	logs, err := s.ActivityLogs().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestWithinTxCommits(t *testing.T) {
	ctx := context.Background()
	s := New()
	ticket := seedTicket(t, s, domain.TicketStatusOpen)

	err := s.WithinTx(ctx, func(tx repository.Store) error {
		changed, err := tx.Tickets().UpdateRiskTier(ctx, ticket.ID, domain.RiskTierWarning)
		require.NoError(t, err)
		assert.True(t, changed)
		return tx.WithinTx(ctx, func(inner repository.Store) error {
			return inner.ActivityLogs().Append(ctx, &domain.ActivityLogEntry{TicketID: ticket.ID, Action: domain.ActionProgressUpdate})
		})
	})
	require.NoError(t, err)

	stored, err := s.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskTierWarning, stored.RiskTier)

	logs, err := s.ActivityLogs().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestUpdateRiskTierSkipsResolved(t *testing.T) {
	ctx := context.Background()
	s := New()
	ticket := seedTicket(t, s, domain.TicketStatusResolved)

	changed, err := s.Tickets().UpdateRiskTier(ctx, ticket.ID, domain.RiskTierBreached)
	require.NoError(t, err)
	assert.False(t, changed)

	stored, err := s.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RiskTierSafe, stored.RiskTier)
}

func TestCountOpenAssignedIgnoresResolved(t *testing.T) {
	ctx := context.Background()
	s := New()
	tech := &domain.User{Name: "Tess", Email: "tess@example.com", Role: domain.UserRoleTechnician}
	require.NoError(t, s.Users().Create(ctx, tech))

	for _, status := range []domain.TicketStatus{
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusEscalated,
		domain.TicketStatusResolved,
	} {
		ticket := &domain.Ticket{Title: "t", Priority: domain.TicketPriorityLow, Status: status, AssigneeID: &tech.ID}
		require.NoError(t, s.Tickets().Create(ctx, ticket))
	}

	count, err := s.Tickets().CountOpenAssigned(ctx, tech.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestNotificationsAreScopedToOwner(t *testing.T) {
	ctx := context.Background()
	s := New(WithClock(func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }))
	alice := &domain.User{Name: "Alice", Email: "alice@example.com", Role: domain.UserRoleTechnician}
	bob := &domain.User{Name: "Bob", Email: "bob@example.com", Role: domain.UserRoleTechnician}
	require.NoError(t, s.Users().Create(ctx, alice))
	require.NoError(t, s.Users().Create(ctx, bob))

	n := &domain.Notification{UserID: alice.ID, Message: "hi", Severity: domain.SeverityInfo}
	require.NoError(t, s.Notifications().Create(ctx, n))

	_, err := s.Notifications().MarkRead(ctx, bob.ID, n.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	read, err := s.Notifications().MarkRead(ctx, alice.ID, n.ID)
	require.NoError(t, err)
	assert.True(t, read.Read)

	unread, err := s.Notifications().ListByUser(ctx, alice.ID, true)
	require.NoError(t, err)
	assert.Empty(t, unread)
}

func TestDuplicateEmailRejected(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Users().Create(ctx, &domain.User{Name: "A", Email: "a@example.com"}))
	err := s.Users().Create(ctx, &domain.User{Name: "B", Email: "A@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestCreateInRolledBackTxLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	ticket := &domain.Ticket{Title: "t", Priority: domain.TicketPriorityLow, Status: domain.TicketStatusOpen}
	err := s.WithinTx(ctx, func(tx repository.Store) error {
		require.NoError(t, tx.Tickets().Create(ctx, ticket))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Tickets().GetByID(ctx, ticket.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	next := seedTicket(t, s, domain.TicketStatusOpen)
	assert.Equal(t, ticket.ID, next.ID, "sequence rolls back with the transaction")
	next.Title = "changed"
	stored, err := s.Tickets().GetByID(ctx, next.ID)
	require.NoError(t, err)
	assert.Equal(t, "printer on fire", stored.Title, "caller struct is not aliased by the store")
}

func TestDeleteTicketCascades(t *testing.T) {
	ctx := context.Background()
	s := New()
	user := &domain.User{Name: "Tess", Email: "tess@example.com", Role: domain.UserRoleTechnician}
	require.NoError(t, s.Users().Create(ctx, user))
	ticket := seedTicket(t, s, domain.TicketStatusOpen)
	keep := seedTicket(t, s, domain.TicketStatusOpen)

	require.NoError(t, s.ActivityLogs().Append(ctx, &domain.ActivityLogEntry{TicketID: ticket.ID, Action: domain.ActionCreated}))
	require.NoError(t, s.ActivityLogs().Append(ctx, &domain.ActivityLogEntry{TicketID: keep.ID, Action: domain.ActionCreated}))
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, UserID: user.ID, Content: "on it"}))
	n := &domain.Notification{UserID: user.ID, Message: "assigned", Severity: domain.SeverityInfo, TicketID: &ticket.ID}
	require.NoError(t, s.Notifications().Create(ctx, n))

	require.NoError(t, s.Tickets().Delete(ctx, ticket.ID))
	assert.ErrorIs(t, s.Tickets().Delete(ctx, ticket.ID), repository.ErrNotFound)

	logs, err := s.ActivityLogs().ListByTicket(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Empty(t, logs)
	logs, err = s.ActivityLogs().ListByTicket(ctx, keep.ID)
	require.NoError(t, err)
	assert.Len(t, logs, 1)

	comments, err := s.Comments().ListByTicket(ctx, ticket.ID, true)
	require.NoError(t, err)
	assert.Empty(t, comments)

	inbox, err := s.Notifications().ListByUser(ctx, user.ID, false)
	require.NoError(t, err)
	require.Len(t, inbox, 1)
	assert.Nil(t, inbox[0].TicketID)
}

func TestCommentsOrderedAndFiltered(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New(WithClock(func() time.Time { return clock }))
	user := &domain.User{Name: "Mia", Email: "mia@example.com", Role: domain.UserRoleManager}
	require.NoError(t, s.Users().Create(ctx, user))
	ticket := seedTicket(t, s, domain.TicketStatusOpen)

	first := &domain.Comment{TicketID: ticket.ID, UserID: user.ID, Content: "first"}
	require.NoError(t, s.Comments().Create(ctx, first))
	clock = clock.Add(time.Minute)
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, UserID: user.ID, Content: "secret", Internal: true}))
	clock = clock.Add(time.Minute)
	require.NoError(t, s.Comments().Create(ctx, &domain.Comment{TicketID: ticket.ID, UserID: user.ID, Content: "third"}))

	all, err := s.Comments().ListByTicket(ctx, ticket.ID, true)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"first", "secret", "third"}, []string{all[0].Content, all[1].Content, all[2].Content})

	public, err := s.Comments().ListByTicket(ctx, ticket.ID, false)
	require.NoError(t, err)
	require.Len(t, public, 2)
	assert.Equal(t, "third", public[1].Content)

	clock = clock.Add(time.Minute)
	first.Content = "edited"
	require.NoError(t, s.Comments().UpdateContent(ctx, first))
	stored, err := s.Comments().GetByID(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "edited", stored.Content)
	assert.True(t, stored.UpdatedAt.After(stored.CreatedAt))

	err = s.Comments().Create(ctx, &domain.Comment{TicketID: 999, UserID: user.ID, Content: "x"})
	assert.ErrorIs(t, err, repository.ErrNotFound)
}
