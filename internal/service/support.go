package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// Metrics receives service level measurements. observability.Metrics implements it.
type Metrics interface {
	ObserveEscalation(trigger string, escalated bool)
	ObserveTierTransition(tier domain.RiskTier)
	ObserveTick(duration time.Duration, scanned int, failed bool)
}

type nopMetrics struct{}

func (nopMetrics) ObserveEscalation(string, bool)        {}
func (nopMetrics) ObserveTierTransition(domain.RiskTier) {}
func (nopMetrics) ObserveTick(time.Duration, int, bool)  {}

// Clock returns the current instant.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

// outbox collects the events of one transaction; they are published only after commit.
type outbox struct {
	events []events.Event
}

func (o *outbox) add(event events.Event) {
	o.events = append(o.events, event)
}

func publishAll(ctx context.Context, dispatcher events.Dispatcher, now time.Time, pending []events.Event) {
	if dispatcher == nil {
		return
	}
	for _, event := range pending {
		if event.ID == "" {
			event.ID = uuid.NewString()
		}
		if event.Timestamp.IsZero() {
			event.Timestamp = now
		}
		_ = dispatcher.Publish(ctx, event)
	}
}

// notify stores a notification and queues its realtime event.
func notify(ctx context.Context, tx repository.Store, box *outbox, userID int64, severity domain.NotificationSeverity, ticketID int64, message string) error {
	n := &domain.Notification{
		UserID:   userID,
		Message:  message,
		Severity: severity,
		TicketID: &ticketID,
	}
	if err := tx.Notifications().Create(ctx, n); err != nil {
		return err
	}
	box.add(events.Event{
		Type:     events.EventNotificationCreated,
		TicketID: ticketID,
		Actor:    events.SystemActor,
		Payload:  events.NotificationCreatedPayload{Notification: *n},
	})
	return nil
}

func appendLog(ctx context.Context, tx repository.Store, ticketID int64, actorID *int64, action, details string, at time.Time) error {
	entry := &domain.ActivityLogEntry{
		TicketID:  ticketID,
		ActorID:   actorID,
		Action:    action,
		Timestamp: at,
	}
	if details != "" {
		entry.Details = &details
	}
	return tx.ActivityLogs().Append(ctx, entry)
}

func lookupTicket(ctx context.Context, repo repository.TicketRepository, id int64, lock bool) (*domain.Ticket, error) {
	var (
		ticket *domain.Ticket
		err    error
	)
	if lock {
		ticket, err = repo.GetForUpdate(ctx, id)
	} else {
		ticket, err = repo.GetByID(ctx, id)
	}
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": id})
		}
		return nil, err
	}
	return ticket, nil
}

func lookupUser(ctx context.Context, repo repository.UserRepository, id int64) (*domain.User, error) {
	user, err := repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("user", map[string]any{"user_id": id})
		}
		return nil, err
	}
	return user, nil
}

// actorName resolves the display name used in activity log details.
func actorName(ctx context.Context, repo repository.UserRepository, id *int64) string {
	if id == nil {
		return "System"
	}
	user, err := repo.GetByID(ctx, *id)
	if err != nil {
		return "Unknown"
	}
	return user.Name
}

func sameUser(a *int64, b int64) bool {
	return a != nil && *a == b
}
