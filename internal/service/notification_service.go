package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// EventSink receives ticket events after commit. messaging.KafkaEventPublisher implements it.
type EventSink interface {
	PublishEvent(ctx context.Context, event events.Event) error
}

// NotificationSink pushes a stored notification to its recipient in real time.
// messaging.RedisNotificationPublisher implements it.
type NotificationSink interface {
	PublishNotification(ctx context.Context, n domain.Notification) error
}

// NotificationService owns the per-user inbox and the outbound fan-out of events.
type NotificationService struct {
	store      repository.Store
	dispatcher events.Dispatcher
	eventSink  EventSink
	realtime   NotificationSink
	logger     *zap.Logger
}

// NotificationDependencies bundles collaborators. Both sinks are optional.
type NotificationDependencies struct {
	Store      repository.Store
	Dispatcher events.Dispatcher
	Events     EventSink
	Realtime   NotificationSink
	Logger     *zap.Logger
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	n := &NotificationService{
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
		eventSink:  deps.Events,
		realtime:   deps.Realtime,
		logger:     deps.Logger,
	}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	return n
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	for _, eventType := range events.TicketEventTypes {
		n.dispatcher.Subscribe(eventType, n.handleTicketEvent)
	}
	n.dispatcher.Subscribe(events.EventNotificationCreated, n.handleNotificationCreated)
}

// List returns the user's notifications, newest first.
func (n *NotificationService) List(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	list, err := n.store.Notifications().ListByUser(ctx, userID, unreadOnly)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return list, nil
}

// MarkRead acknowledges one notification. Only its recipient may do so.
func (n *NotificationService) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	notification, err := n.store.Notifications().MarkRead(ctx, userID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": id})
		}
		return nil, apperrors.MapError(err)
	}
	return notification, nil
}

// MarkAllRead acknowledges every unread notification of the user.
func (n *NotificationService) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	count, err := n.store.Notifications().MarkAllRead(ctx, userID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

func (n *NotificationService) handleTicketEvent(ctx context.Context, event events.Event) error {
	n.logger.Info(string(event.Type),
		zap.Int64("ticket_id", event.TicketID),
		zap.String("event_id", event.ID),
		zap.Any("payload", event.Payload))
	if n.eventSink == nil {
		return nil
	}
	return n.eventSink.PublishEvent(ctx, event)
}

func (n *NotificationService) handleNotificationCreated(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NotificationCreatedPayload)
	if !ok {
		return errors.New("unexpected notification payload")
	}
	n.logger.Debug("notification created",
		zap.Int64("user_id", payload.Notification.UserID),
		zap.String("severity", string(payload.Notification.Severity)))
	if n.realtime == nil {
		return nil
	}
	return n.realtime.PublishNotification(ctx, payload.Notification)
}
