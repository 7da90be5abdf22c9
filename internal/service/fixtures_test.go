package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/events"
	"github.com/spec-kit/sla-guard/internal/repository"
	"github.com/spec-kit/sla-guard/internal/repository/memstore"
)

var (
	t0                  = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	errStoreUnavailable = errors.New("store unavailable")
)

type fixture struct {
	mem         *memstore.Store
	store       repository.Store
	manager     domain.User
	seniorA     domain.User
	seniorB     domain.User
	tech        domain.User
	requester   domain.User
	dispatcher  events.Dispatcher
	escalations *EscalationService
	monitor     *MonitorService
	tickets     *TicketService
	comments    *CommentService

	mu        sync.Mutex
	published []events.Event
}

type fixtureOption func(*fixtureConfig)

type fixtureConfig struct {
	withoutSeniors bool
	wrap           func(repository.Store) repository.Store
}

func withoutSeniors() fixtureOption {
	return func(c *fixtureConfig) { c.withoutSeniors = true }
}

func withStore(wrap func(repository.Store) repository.Store) fixtureOption {
	return func(c *fixtureConfig) { c.wrap = wrap }
}

func newFixture(t *testing.T, opts ...fixtureOption) *fixture {
	t.Helper()
	cfg := fixtureConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}

	mem := memstore.New(memstore.WithClock(func() time.Time { return t0 }))
	f := &fixture{mem: mem, store: mem}
	if cfg.wrap != nil {
		f.store = cfg.wrap(mem)
	}

	f.manager = f.addUser(t, "Maria Manager", "maria@example.com", domain.UserRoleManager)
	if !cfg.withoutSeniors {
		f.seniorA = f.addUser(t, "Sam Senior", "sam@example.com", domain.UserRoleSeniorTechnician)
		f.seniorB = f.addUser(t, "Sia Senior", "sia@example.com", domain.UserRoleSeniorTechnician)
	}
	f.tech = f.addUser(t, "Theo Tech", "theo@example.com", domain.UserRoleTechnician)
	f.requester = f.addUser(t, "Rita Requester", "rita@example.com", domain.UserRoleUser)

	dispatcher := events.NewInMemoryDispatcher(nil)
	f.dispatcher = dispatcher
	for _, eventType := range append(append([]events.EventType{}, events.TicketEventTypes...), events.EventNotificationCreated) {
		dispatcher.Subscribe(eventType, func(_ context.Context, e events.Event) error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.published = append(f.published, e)
			return nil
		})
	}

	f.escalations = NewEscalationService(EscalationDependencies{
		Store:      f.store,
		Dispatcher: dispatcher,
		Clock:      func() time.Time { return t0 },
	})
	f.monitor = NewMonitorService(MonitorDependencies{
		Store:       f.store,
		Escalations: f.escalations,
		Dispatcher:  dispatcher,
	})
	f.tickets = NewTicketService(TicketDependencies{
		Store:      f.store,
		Dispatcher: dispatcher,
		Clock:      func() time.Time { return t0 },
	})
	f.comments = NewCommentService(CommentDependencies{
		Store:      f.store,
		Dispatcher: dispatcher,
	})
	return f
}

func (f *fixture) addUser(t *testing.T, name, email string, role domain.UserRole) domain.User {
	t.Helper()
	user := &domain.User{Name: name, Email: email, Role: role}
	require.NoError(t, f.mem.Users().Create(context.Background(), user))
	return *user
}

type ticketSeed struct {
	title     string
	priority  domain.TicketPriority
	limit     float64
	createdAt time.Time
	status    domain.TicketStatus
	tier      domain.RiskTier
	assignee  *int64
}

func (f *fixture) addTicket(t *testing.T, seed ticketSeed) domain.Ticket {
	t.Helper()
	if seed.title == "" {
		seed.title = "VPN down"
	}
	if seed.priority == "" {
		seed.priority = domain.TicketPriorityHigh
	}
	if seed.createdAt.IsZero() {
		seed.createdAt = t0
	}
	if seed.status == "" {
		seed.status = domain.TicketStatusOpen
	}
	if seed.tier == "" {
		seed.tier = domain.RiskTierSafe
	}
	ticket := &domain.Ticket{
		Title:         seed.title,
		Customer:      "Acme",
		Priority:      seed.priority,
		Status:        seed.status,
		RiskTier:      seed.tier,
		SLALimitHours: seed.limit,
		AssigneeID:    seed.assignee,
		CreatedAt:     seed.createdAt,
	}
	if seed.status == domain.TicketStatusResolved {
		resolved := seed.createdAt.Add(time.Hour)
		ticket.ResolvedAt = &resolved
	}
	require.NoError(t, f.mem.Tickets().Create(context.Background(), ticket))
	return *ticket
}

func (f *fixture) ticket(t *testing.T, id int64) *domain.Ticket {
	t.Helper()
	ticket, err := f.mem.Tickets().GetByID(context.Background(), id)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) notifications(t *testing.T, userID int64) []domain.Notification {
	t.Helper()
	list, err := f.mem.Notifications().ListByUser(context.Background(), userID, false)
	require.NoError(t, err)
	return list
}

func (f *fixture) logs(t *testing.T, ticketID int64) []domain.ActivityLogEntry {
	t.Helper()
	list, err := f.mem.ActivityLogs().ListByTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return list
}

func (f *fixture) publishedOfType(eventType events.EventType) []events.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []events.Event
	for _, e := range f.published {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

func ptr[T any](v T) *T { return &v }

// faultyStore injects storage failures into chosen operations, inside and outside transactions.
type faultyStore struct {
	repository.Store
	failUpdateFor     int64
	failTierFor       int64
	failNotifications bool
	failListActive    bool
}

func (f *faultyStore) with(inner repository.Store) *faultyStore {
	c := *f
	c.Store = inner
	return &c
}

func (f *faultyStore) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return f.Store.WithinTx(ctx, func(tx repository.Store) error {
		return fn(f.with(tx))
	})
}

func (f *faultyStore) Tickets() repository.TicketRepository {
	return faultyTickets{TicketRepository: f.Store.Tickets(), cfg: f}
}

func (f *faultyStore) Notifications() repository.NotificationRepository {
	if f.failNotifications {
		return failingNotifications{f.Store.Notifications()}
	}
	return f.Store.Notifications()
}

type faultyTickets struct {
	repository.TicketRepository
	cfg *faultyStore
}

func (r faultyTickets) Update(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.ID == r.cfg.failUpdateFor {
		return errStoreUnavailable
	}
	return r.TicketRepository.Update(ctx, ticket)
}

func (r faultyTickets) UpdateRiskTier(ctx context.Context, id int64, tier domain.RiskTier) (bool, error) {
	if id == r.cfg.failTierFor {
		return false, errStoreUnavailable
	}
	return r.TicketRepository.UpdateRiskTier(ctx, id, tier)
}

func (r faultyTickets) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	if r.cfg.failListActive {
		return nil, errStoreUnavailable
	}
	return r.TicketRepository.ListActive(ctx)
}

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *domain.Notification) error {
	return errStoreUnavailable
}
