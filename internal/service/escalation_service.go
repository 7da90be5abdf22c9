package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// errNoLongerEligible marks a sweep candidate that another writer escalated or
// resolved between the listing and the row lock.
var errNoLongerEligible = errors.New("ticket no longer needs escalation")

// EscalationOutcome is the per-ticket audit record of a sweep.
type EscalationOutcome struct {
	TicketID     int64           `json:"ticket_id"`
	TicketTitle  string          `json:"ticket_title"`
	RiskTier     domain.RiskTier `json:"risk_level"`
	Escalated    bool            `json:"escalated"`
	AssigneeID   *int64          `json:"senior_technician_id,omitempty"`
	AssigneeName string          `json:"senior_technician,omitempty"`
	Reason       string          `json:"reason,omitempty"`
}

// EscalationService moves tickets to senior technicians, manually or from the monitor.
type EscalationService struct {
	store      repository.Store
	balancer   *WorkloadBalancer
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    Metrics
	now        Clock
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	Store      repository.Store
	Balancer   *WorkloadBalancer
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Metrics    Metrics
	Clock      Clock
}

// NewEscalationService creates the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	s := &EscalationService{
		store:      deps.Store,
		balancer:   deps.Balancer,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		metrics:    deps.Metrics,
		now:        deps.Clock,
	}
	if s.balancer == nil {
		s.balancer = NewWorkloadBalancer()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.now == nil {
		s.now = systemClock
	}
	return s
}

type escalationTrigger struct {
	auto        bool
	reason      string
	initiatorID *int64
}

type escalationResult struct {
	ticket   *domain.Ticket
	assignee domain.User
}

// Escalate assigns the ticket to the least loaded senior technician and marks it ESCALATED.
func (s *EscalationService) Escalate(ctx context.Context, ticketID int64, reason string, initiatorID *int64) (*domain.Ticket, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewValidationError("escalation reason is required", map[string]any{"field": "reason"})
	}

	box := &outbox{}
	var result *escalationResult
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		result, err = s.escalateInTx(ctx, tx, box, ticketID, escalationTrigger{reason: reason, initiatorID: initiatorID})
		return err
	})
	s.metrics.ObserveEscalation("manual", err == nil)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publishAll(ctx, s.dispatcher, s.now(), box.events)
	s.logger.Info("ticket escalated",
		zap.Int64("ticket_id", ticketID),
		zap.Int64("assignee_id", result.assignee.ID),
		zap.String("reason", reason))
	return result.ticket, nil
}

// Reassign hands the ticket to another user without changing its status.
func (s *EscalationService) Reassign(ctx context.Context, ticketID, newAssigneeID int64, initiatorID *int64, reason *string) (*domain.Ticket, error) {
	box := &outbox{}
	var updated *domain.Ticket
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		ticket, err := lookupTicket(ctx, tx.Tickets(), ticketID, true)
		if err != nil {
			return err
		}
		if ticket.Status == domain.TicketStatusResolved {
			return apperrors.NewInvalidTransition("resolved tickets cannot be reassigned",
				map[string]any{"ticket_id": ticketID, "status": ticket.Status})
		}
		assignee, err := lookupUser(ctx, tx.Users(), newAssigneeID)
		if err != nil {
			return err
		}
		if !domain.HasCapability(assignee, domain.CapabilityWorkTickets) {
			return apperrors.NewValidationError("assignee cannot work tickets",
				map[string]any{"assignee_id": newAssigneeID, "role": assignee.Role})
		}

		previous := ticket.AssigneeID
		ticket.AssigneeID = &assignee.ID
		if err := tx.Tickets().Update(ctx, ticket); err != nil {
			return err
		}

		details := "Reassigned by " + actorName(ctx, tx.Users(), initiatorID)
		var reasonText string
		if reason != nil && strings.TrimSpace(*reason) != "" {
			reasonText = strings.TrimSpace(*reason)
			details += ". Reason: " + reasonText
		}
		if err := appendLog(ctx, tx, ticket.ID, initiatorID, domain.ActionReassigned, details, s.now()); err != nil {
			return err
		}

		if err := notify(ctx, tx, box, assignee.ID, domain.SeverityInfo, ticket.ID,
			"Ticket assigned to you: "+ticket.Title); err != nil {
			return err
		}
		if previous != nil && *previous != assignee.ID {
			if err := notify(ctx, tx, box, *previous, domain.SeverityInfo, ticket.ID,
				fmt.Sprintf("Ticket #%d has been reassigned", ticket.ID)); err != nil {
				return err
			}
		}

		box.add(events.Event{
			Type:     events.EventTicketReassigned,
			TicketID: ticket.ID,
			Actor:    events.UserActor(initiatorID),
			Payload: events.TicketReassignedPayload{
				OldAssigneeID: previous,
				NewAssigneeID: assignee.ID,
				Status:        ticket.Status,
				Reason:        reasonText,
			},
		})
		updated = ticket
		return nil
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	publishAll(ctx, s.dispatcher, s.now(), box.events)
	s.logger.Info("ticket reassigned", zap.Int64("ticket_id", ticketID), zap.Int64("assignee_id", newAssigneeID))
	return updated, nil
}

// AutoEscalateSweep escalates every ticket at HIGH_RISK or BREACHED that is not
// already ESCALATED or RESOLVED. Each ticket runs in its own transaction and a
// failure is recorded in its outcome; the sweep itself never fails.
func (s *EscalationService) AutoEscalateSweep(ctx context.Context) []EscalationOutcome {
	tickets, err := s.store.Tickets().ListNeedingEscalation(ctx)
	if err != nil {
		s.logger.Error("list tickets needing escalation", zap.Error(err))
		return nil
	}

	outcomes := make([]EscalationOutcome, 0, len(tickets))
	for i := range tickets {
		ticket := tickets[i]
		outcome := EscalationOutcome{
			TicketID:    ticket.ID,
			TicketTitle: ticket.Title,
			RiskTier:    ticket.RiskTier,
		}

		box := &outbox{}
		var result *escalationResult
		err := s.store.WithinTx(ctx, func(tx repository.Store) error {
			var err error
			result, err = s.escalateInTx(ctx, tx, box, ticket.ID, escalationTrigger{auto: true})
			return err
		})
		s.metrics.ObserveEscalation("auto", err == nil)
		if err != nil {
			outcome.Reason = failureReason(err)
			s.logger.Warn("auto escalation failed",
				zap.Int64("ticket_id", ticket.ID),
				zap.String("risk_tier", string(ticket.RiskTier)),
				zap.Error(err))
			outcomes = append(outcomes, outcome)
			continue
		}

		publishAll(ctx, s.dispatcher, s.now(), box.events)
		outcome.Escalated = true
		outcome.AssigneeID = &result.assignee.ID
		outcome.AssigneeName = result.assignee.Name
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// NotifyHighRisk warns every manager that ticket entered a high risk tier. It
// writes through tx and returns the events to publish once tx commits.
func (s *EscalationService) NotifyHighRisk(ctx context.Context, tx repository.Store, ticket *domain.Ticket) ([]events.Event, error) {
	managers, err := tx.Users().ListByRoles(ctx, domain.RolesWith(domain.CapabilityManageEscalations)...)
	if err != nil {
		return nil, err
	}
	box := &outbox{}
	message := fmt.Sprintf("⚠️ HIGH RISK ALERT: Ticket #%d - %s has reached %s status", ticket.ID, ticket.Title, ticket.RiskTier)
	for _, manager := range managers {
		if err := notify(ctx, tx, box, manager.ID, domain.SeverityWarning, ticket.ID, message); err != nil {
			return nil, err
		}
	}
	return box.events, nil
}

func (s *EscalationService) escalateInTx(ctx context.Context, tx repository.Store, box *outbox, ticketID int64, trigger escalationTrigger) (*escalationResult, error) {
	ticket, err := lookupTicket(ctx, tx.Tickets(), ticketID, true)
	if err != nil {
		return nil, err
	}
	if ticket.Status == domain.TicketStatusResolved {
		if trigger.auto {
			return nil, errNoLongerEligible
		}
		return nil, apperrors.NewInvalidTransition("resolved tickets cannot be escalated",
			map[string]any{"ticket_id": ticketID, "status": ticket.Status})
	}
	if trigger.auto && !ticket.NeedsEscalation() {
		return nil, errNoLongerEligible
	}

	candidates, err := tx.Users().ListByRoles(ctx, domain.RolesWith(domain.CapabilityReceiveEscalations)...)
	if err != nil {
		return nil, err
	}
	targetID, ok, err := s.balancer.SelectEscalationTarget(ctx, tx.Tickets(), candidates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperrors.NewNoEligibleTechnician(map[string]any{"ticket_id": ticketID})
	}
	var target domain.User
	for _, c := range candidates {
		if c.ID == targetID {
			target = c
			break
		}
	}

	previous := ticket.AssigneeID
	ticket.Status = domain.TicketStatusEscalated
	ticket.AssigneeID = &target.ID
	if err := tx.Tickets().Update(ctx, ticket); err != nil {
		return nil, err
	}

	now := s.now()
	if trigger.auto {
		details := fmt.Sprintf("Automatically escalated due to %s status", ticket.RiskTier)
		if err := appendLog(ctx, tx, ticket.ID, nil, domain.ActionAutoEscalated, details, now); err != nil {
			return nil, err
		}
		if err := s.notifyAutoEscalation(ctx, tx, box, ticket, target, previous); err != nil {
			return nil, err
		}
	} else {
		details := fmt.Sprintf("Escalated by %s. Reason: %s", actorName(ctx, tx.Users(), trigger.initiatorID), trigger.reason)
		if err := appendLog(ctx, tx, ticket.ID, trigger.initiatorID, domain.ActionEscalated, details, now); err != nil {
			return nil, err
		}
		if err := notify(ctx, tx, box, target.ID, domain.SeverityAlert, ticket.ID,
			fmt.Sprintf("🚨 Escalated ticket assigned: %s. Reason: %s", ticket.Title, trigger.reason)); err != nil {
			return nil, err
		}
		if previous != nil && !sameUser(previous, target.ID) {
			if err := notify(ctx, tx, box, *previous, domain.SeverityInfo, ticket.ID,
				fmt.Sprintf("Ticket #%d has been escalated to senior technician", ticket.ID)); err != nil {
				return nil, err
			}
		}
	}

	eventType, actor := events.EventTicketEscalated, events.UserActor(trigger.initiatorID)
	if trigger.auto {
		eventType, actor = events.EventTicketAutoEscalated, events.SystemActor
	}
	box.add(events.Event{
		Type:     eventType,
		TicketID: ticket.ID,
		Actor:    actor,
		Payload: events.TicketEscalatedPayload{
			OldAssigneeID: previous,
			NewAssigneeID: target.ID,
			RiskTier:      ticket.RiskTier,
			Reason:        trigger.reason,
		},
	})
	return &escalationResult{ticket: ticket, assignee: target}, nil
}

func (s *EscalationService) notifyAutoEscalation(ctx context.Context, tx repository.Store, box *outbox, ticket *domain.Ticket, target domain.User, previous *int64) error {
	if err := notify(ctx, tx, box, target.ID, domain.SeverityAlert, ticket.ID,
		fmt.Sprintf("🚨 AUTO-ESCALATED: %s (Ticket #%d) - %s", ticket.Title, ticket.ID, ticket.RiskTier)); err != nil {
		return err
	}

	managers, err := tx.Users().ListByRoles(ctx, domain.RolesWith(domain.CapabilityManageEscalations)...)
	if err != nil {
		return err
	}
	for _, manager := range managers {
		if err := notify(ctx, tx, box, manager.ID, domain.SeverityWarning, ticket.ID,
			fmt.Sprintf("⚠️ Ticket #%d auto-escalated to %s - Risk: %s", ticket.ID, target.Name, ticket.RiskTier)); err != nil {
			return err
		}
	}

	if previous != nil && !sameUser(previous, target.ID) {
		return notify(ctx, tx, box, *previous, domain.SeverityInfo, ticket.ID,
			fmt.Sprintf("Ticket #%d has been auto-escalated due to high SLA risk", ticket.ID))
	}
	return nil
}

func failureReason(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	return err.Error()
}
