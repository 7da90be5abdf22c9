package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	"github.com/spec-kit/sla-guard/internal/sla"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// TicketService coordinates ticket workflows outside of escalation.
type TicketService struct {
	store      repository.Store
	limits     sla.Limits
	dispatcher events.Dispatcher
	logger     *zap.Logger
	now        Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Store      repository.Store
	Limits     sla.Limits
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Clock      Clock
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Customer    string
	Description string
	Priority    domain.TicketPriority
	AssigneeID  *int64
}

// TicketUpdateInput carries the fields to edit. Nil fields are left alone.
type TicketUpdateInput struct {
	Title       *string
	Customer    *string
	Description *string
	Priority    *domain.TicketPriority
	AssigneeID  *int64
}

// TicketListFilter describes listing filters. Visibility scoping is applied on top.
type TicketListFilter struct {
	AssigneeID *int64
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	RiskTiers  []domain.RiskTier
	Customer   *string
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketView is a ticket with its live risk figures and display names.
type TicketView struct {
	Ticket       domain.Ticket
	Assessment   sla.Assessment
	AssigneeName string
	CreatorName  string
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	s := &TicketService{
		store:      deps.Store,
		limits:     deps.Limits,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		now:        deps.Clock,
	}
	if s.limits == nil {
		s.limits = sla.DefaultLimits()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.now == nil {
		s.now = systemClock
	}
	return s
}

// Create opens a ticket. The SLA limit is copied from the current configuration
// and never changes afterwards.
func (s *TicketService) Create(ctx context.Context, creator *domain.User, input TicketCreateInput) (*TicketView, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Customer = strings.TrimSpace(input.Customer)
	if input.Title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}
	if input.Customer == "" {
		return nil, apperrors.NewValidationError("customer is required", map[string]any{"field": "customer"})
	}
	if input.Priority == "" {
		input.Priority = domain.TicketPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}

	now := s.now()
	box := &outbox{}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		if input.AssigneeID != nil {
			assignee, err := lookupUser(ctx, tx.Users(), *input.AssigneeID)
			if err != nil {
				return err
			}
			if !domain.HasCapability(assignee, domain.CapabilityWorkTickets) {
				return apperrors.NewValidationError("assignee cannot work tickets", map[string]any{"assignee_id": assignee.ID})
			}
		}

		limit, err := limitFor(ctx, tx.SLAConfigs(), s.limits, input.Priority)
		if err != nil {
			return err
		}
		ticket = &domain.Ticket{
			Title:         input.Title,
			Customer:      input.Customer,
			Description:   strings.TrimSpace(input.Description),
			Priority:      input.Priority,
			Status:        domain.TicketStatusOpen,
			RiskTier:      sla.Assess(now, limit, now).Tier,
			SLALimitHours: limit,
			AssigneeID:    input.AssigneeID,
			CreatedByID:   &creator.ID,
			CreatedAt:     now,
		}
		if err := tx.Tickets().Create(ctx, ticket); err != nil {
			return err
		}
		box.add(events.Event{
			Type:     events.EventTicketCreated,
			TicketID: ticket.ID,
			Actor:    events.UserActor(&creator.ID),
			Payload: events.TicketCreatedPayload{
				Priority:      ticket.Priority,
				Title:         ticket.Title,
				SLALimitHours: ticket.SLALimitHours,
				AssigneeID:    ticket.AssigneeID,
			},
		})
		if err := appendLog(ctx, tx, ticket.ID, &creator.ID, domain.ActionCreated,
			fmt.Sprintf("Ticket created by %s", creator.Name), now); err != nil {
			return err
		}
		if ticket.AssigneeID != nil {
			if err := notify(ctx, tx, box, *ticket.AssigneeID, domain.SeverityInfo, ticket.ID,
				fmt.Sprintf("New ticket assigned: %s", ticket.Title)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publishAll(ctx, s.dispatcher, now, box.events)
	s.logger.Info("ticket created", zap.Int64("ticket_id", ticket.ID), zap.String("priority", string(ticket.Priority)))
	return s.describeOne(ctx, ticket, now), nil
}

// Get returns a ticket the viewer may see.
func (s *TicketService) Get(ctx context.Context, viewer *domain.User, id int64) (*TicketView, error) {
	ticket, err := s.visibleTicket(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	return s.describeOne(ctx, ticket, s.now()), nil
}

// List returns tickets matching the filter, newest first, restricted to what the viewer may see.
func (s *TicketService) List(ctx context.Context, viewer *domain.User, filter TicketListFilter) ([]TicketView, error) {
	repoFilter := repository.TicketFilter{
		AssigneeID: filter.AssigneeID,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		RiskTiers:  filter.RiskTiers,
		Customer:   filter.Customer,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	switch {
	case seesAllTickets(viewer):
	case domain.HasCapability(viewer, domain.CapabilityWorkTickets):
		repoFilter.AssigneeID = &viewer.ID
	default:
		repoFilter.CreatedByID = &viewer.ID
	}

	tickets, err := s.store.Tickets().List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.describe(ctx, tickets, s.now()), nil
}

// ListHighRisk returns unresolved HIGH_RISK and BREACHED tickets visible to the viewer.
func (s *TicketService) ListHighRisk(ctx context.Context, viewer *domain.User) ([]TicketView, error) {
	return s.List(ctx, viewer, TicketListFilter{
		Statuses: []domain.TicketStatus{
			domain.TicketStatusOpen,
			domain.TicketStatusInProgress,
			domain.TicketStatusEscalated,
		},
		RiskTiers: []domain.RiskTier{domain.RiskTierHighRisk, domain.RiskTierBreached},
		Limit:     100,
	})
}

// ListEscalated returns ESCALATED tickets: all of them for managers, their own for senior technicians.
func (s *TicketService) ListEscalated(ctx context.Context, viewer *domain.User) ([]TicketView, error) {
	filter := repository.TicketFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusEscalated},
		Limit:    100,
	}
	switch {
	case seesAllTickets(viewer):
	case domain.HasCapability(viewer, domain.CapabilityReceiveEscalations):
		filter.AssigneeID = &viewer.ID
	default:
		return nil, apperrors.NewForbidden("only managers and senior technicians can view escalated tickets")
	}

	tickets, err := s.store.Tickets().List(ctx, filter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return s.describe(ctx, tickets, s.now()), nil
}

// Accept moves an OPEN ticket to IN_PROGRESS. Only the assignee may accept.
func (s *TicketService) Accept(ctx context.Context, actor *domain.User, id int64) (*TicketView, error) {
	if !domain.HasCapability(actor, domain.CapabilityWorkTickets) {
		return nil, apperrors.NewForbidden("only technicians can accept tickets")
	}
	return s.transition(ctx, actor, id, func(tx repository.Store, ticket *domain.Ticket, now time.Time, box *outbox) error {
		if !sameUser(ticket.AssigneeID, actor.ID) {
			return apperrors.NewForbidden("you can only accept tickets assigned to you")
		}
		if ticket.Status != domain.TicketStatusOpen {
			return apperrors.NewInvalidTransition("only open tickets can be accepted",
				map[string]any{"ticket_id": ticket.ID, "status": ticket.Status})
		}
		old := ticket.Status
		ticket.Status = domain.TicketStatusInProgress
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendLog(ctx, tx, ticket.ID, &actor.ID, domain.ActionAccepted,
			fmt.Sprintf("Ticket accepted by %s", actor.Name), now); err != nil {
			return err
		}
		box.add(statusChanged(events.EventTicketAccepted, ticket, actor, old))
		return nil
	})
}

// UpdateProgress records work notes on a ticket assigned to the actor.
func (s *TicketService) UpdateProgress(ctx context.Context, actor *domain.User, id int64, notes string) (*TicketView, error) {
	if !domain.HasCapability(actor, domain.CapabilityWorkTickets) {
		return nil, apperrors.NewForbidden("only technicians can update ticket progress")
	}
	notes = strings.TrimSpace(notes)
	if notes == "" {
		return nil, apperrors.NewValidationError("notes are required", map[string]any{"field": "notes"})
	}
	return s.transition(ctx, actor, id, func(tx repository.Store, ticket *domain.Ticket, now time.Time, _ *outbox) error {
		if !sameUser(ticket.AssigneeID, actor.ID) {
			return apperrors.NewForbidden("you can only update tickets assigned to you")
		}
		if ticket.Status == domain.TicketStatusResolved {
			return apperrors.NewInvalidTransition("ticket is already resolved", map[string]any{"ticket_id": ticket.ID})
		}
		return appendLog(ctx, tx, ticket.ID, &actor.ID, domain.ActionProgressUpdate, notes, now)
	})
}

// Resolve closes a ticket. Its risk tier stays at the last computed value.
func (s *TicketService) Resolve(ctx context.Context, actor *domain.User, id int64) (*TicketView, error) {
	return s.transition(ctx, actor, id, func(tx repository.Store, ticket *domain.Ticket, now time.Time, box *outbox) error {
		if !seesAllTickets(actor) && !sameUser(ticket.AssigneeID, actor.ID) {
			return apperrors.NewForbidden("you can only resolve tickets assigned to you")
		}
		if ticket.Status == domain.TicketStatusResolved {
			return apperrors.NewInvalidTransition("ticket is already resolved", map[string]any{"ticket_id": ticket.ID})
		}
		old := ticket.Status
		ticket.Status = domain.TicketStatusResolved
		ticket.ResolvedAt = &now
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendLog(ctx, tx, ticket.ID, &actor.ID, domain.ActionResolved,
			fmt.Sprintf("Ticket resolved by %s", actor.Name), now); err != nil {
			return err
		}
		box.add(statusChanged(events.EventTicketResolved, ticket, actor, old))
		return nil
	})
}

// Update edits a ticket the actor may see. Priority and assignee changes are
// reserved for managers. The SLA limit stays at the value copied on creation.
func (s *TicketService) Update(ctx context.Context, actor *domain.User, id int64, input TicketUpdateInput) (*TicketView, error) {
	var fields []string
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
		}
		input.Title = &title
		fields = append(fields, "title")
	}
	if input.Customer != nil {
		customer := strings.TrimSpace(*input.Customer)
		if customer == "" {
			return nil, apperrors.NewValidationError("customer is required", map[string]any{"field": "customer"})
		}
		input.Customer = &customer
		fields = append(fields, "customer")
	}
	if input.Description != nil {
		description := strings.TrimSpace(*input.Description)
		input.Description = &description
		fields = append(fields, "description")
	}
	if input.Priority != nil {
		if !input.Priority.Valid() {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *input.Priority})
		}
		fields = append(fields, "priority")
	}
	if input.AssigneeID != nil {
		fields = append(fields, "assignee_id")
	}
	if len(fields) == 0 {
		return nil, apperrors.NewValidationError("no fields to update", nil)
	}
	if (input.Priority != nil || input.AssigneeID != nil) && !seesAllTickets(actor) {
		return nil, apperrors.NewForbidden("only managers can change priority or assignee")
	}

	return s.transition(ctx, actor, id, func(tx repository.Store, ticket *domain.Ticket, now time.Time, box *outbox) error {
		if !canView(actor, ticket) {
			return apperrors.NewForbidden("access denied")
		}
		if ticket.Status == domain.TicketStatusResolved {
			return apperrors.NewInvalidTransition("resolved tickets cannot be edited", map[string]any{"ticket_id": ticket.ID})
		}

		var newAssignee *domain.User
		if input.AssigneeID != nil && !sameUser(ticket.AssigneeID, *input.AssigneeID) {
			assignee, err := lookupUser(ctx, tx.Users(), *input.AssigneeID)
			if err != nil {
				return err
			}
			if !domain.HasCapability(assignee, domain.CapabilityWorkTickets) {
				return apperrors.NewValidationError("assignee cannot work tickets", map[string]any{"assignee_id": assignee.ID})
			}
			newAssignee = assignee
			ticket.AssigneeID = &assignee.ID
		}
		if input.Title != nil {
			ticket.Title = *input.Title
		}
		if input.Customer != nil {
			ticket.Customer = *input.Customer
		}
		if input.Description != nil {
			ticket.Description = *input.Description
		}
		if input.Priority != nil {
			ticket.Priority = *input.Priority
		}
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}
		if err := appendLog(ctx, tx, ticket.ID, &actor.ID, domain.ActionUpdated,
			fmt.Sprintf("Ticket updated by %s", actor.Name), now); err != nil {
			return err
		}
		if newAssignee != nil {
			if err := notify(ctx, tx, box, newAssignee.ID, domain.SeverityInfo, ticket.ID,
				fmt.Sprintf("New ticket assigned: %s", ticket.Title)); err != nil {
				return err
			}
		}
		box.add(events.Event{
			Type:     events.EventTicketUpdated,
			TicketID: ticket.ID,
			Actor:    events.UserActor(&actor.ID),
			Payload:  events.TicketUpdatedPayload{Fields: fields},
		})
		return nil
	})
}

// Delete removes a ticket together with its activity log and comments. Managers only.
func (s *TicketService) Delete(ctx context.Context, actor *domain.User, id int64) error {
	if !seesAllTickets(actor) {
		return apperrors.NewForbidden("only managers can delete tickets")
	}
	now := s.now()
	box := &outbox{}
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lookupTicket(ctx, tx.Tickets(), id, true)
		if err != nil {
			return err
		}
		if err := tx.Tickets().Delete(ctx, id); err != nil {
			return err
		}
		box.add(events.Event{
			Type:     events.EventTicketDeleted,
			TicketID: id,
			Actor:    events.UserActor(&actor.ID),
			Payload:  events.TicketDeletedPayload{Title: ticket.Title},
		})
		return nil
	})
	if err != nil {
		return apperrors.MapError(err)
	}
	publishAll(ctx, s.dispatcher, now, box.events)
	s.logger.Info("ticket deleted", zap.Int64("ticket_id", id), zap.Int64("actor_id", actor.ID))
	return nil
}

// ActivityLogView is an audit entry with the actor's display name.
type ActivityLogView struct {
	Entry     domain.ActivityLogEntry
	ActorName string
}

// ActivityLog returns the ticket's audit trail, newest first.
func (s *TicketService) ActivityLog(ctx context.Context, viewer *domain.User, id int64) ([]ActivityLogView, error) {
	if _, err := s.visibleTicket(ctx, viewer, id); err != nil {
		return nil, err
	}
	entries, err := s.store.ActivityLogs().ListByTicket(ctx, id)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	names := map[int64]string{}
	out := make([]ActivityLogView, 0, len(entries))
	for _, entry := range entries {
		name := "System"
		if entry.ActorID != nil {
			cached, ok := names[*entry.ActorID]
			if !ok {
				cached = actorName(ctx, s.store.Users(), entry.ActorID)
				names[*entry.ActorID] = cached
			}
			name = cached
		}
		out = append(out, ActivityLogView{Entry: entry, ActorName: name})
	}
	return out, nil
}

func (s *TicketService) transition(ctx context.Context, actor *domain.User, id int64,
	apply func(tx repository.Store, ticket *domain.Ticket, now time.Time, box *outbox) error) (*TicketView, error) {
	now := s.now()
	box := &outbox{}
	var ticket *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		ticket, err = lookupTicket(ctx, tx.Tickets(), id, true)
		if err != nil {
			return err
		}
		return apply(tx, ticket, now, box)
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	publishAll(ctx, s.dispatcher, now, box.events)
	s.logger.Debug("ticket updated",
		zap.Int64("ticket_id", id),
		zap.Int64("actor_id", actor.ID),
		zap.String("status", string(ticket.Status)))
	return s.describeOne(ctx, ticket, now), nil
}

func (s *TicketService) visibleTicket(ctx context.Context, viewer *domain.User, id int64) (*domain.Ticket, error) {
	ticket, err := lookupTicket(ctx, s.store.Tickets(), id, false)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !canView(viewer, ticket) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func (s *TicketService) describeOne(ctx context.Context, ticket *domain.Ticket, now time.Time) *TicketView {
	views := s.describe(ctx, []domain.Ticket{*ticket}, now)
	return &views[0]
}

func (s *TicketService) describe(ctx context.Context, tickets []domain.Ticket, now time.Time) []TicketView {
	names := map[int64]string{}
	name := func(id *int64) string {
		if id == nil {
			return ""
		}
		if n, ok := names[*id]; ok {
			return n
		}
		n := ""
		if user, err := s.store.Users().GetByID(ctx, *id); err == nil {
			n = user.Name
		}
		names[*id] = n
		return n
	}

	views := make([]TicketView, 0, len(tickets))
	for i := range tickets {
		t := tickets[i]
		views = append(views, TicketView{
			Ticket:       t,
			Assessment:   sla.AssessTicket(&t, now),
			AssigneeName: name(t.AssigneeID),
			CreatorName:  name(t.CreatedByID),
		})
	}
	return views
}

func statusChanged(eventType events.EventType, ticket *domain.Ticket, actor *domain.User, old domain.TicketStatus) events.Event {
	return events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    events.UserActor(&actor.ID),
		Payload:  events.TicketStatusChangedPayload{OldStatus: old, NewStatus: ticket.Status},
	}
}

func seesAllTickets(user *domain.User) bool {
	return domain.HasCapability(user, domain.CapabilityManageEscalations)
}

func canView(user *domain.User, ticket *domain.Ticket) bool {
	switch {
	case user == nil:
		return false
	case seesAllTickets(user):
		return true
	case domain.HasCapability(user, domain.CapabilityWorkTickets):
		return sameUser(ticket.AssigneeID, user.ID)
	default:
		return sameUser(ticket.CreatedByID, user.ID)
	}
}
