// Package memstore is an in-process repository.Store used when no Postgres DSN
// is configured and by the service tests.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

type state struct {
	tickets       map[int64]domain.Ticket
	users         map[int64]domain.User
	logs          []domain.ActivityLogEntry
	notifications map[int64]domain.Notification
	slaConfigs    map[domain.TicketPriority]float64
	comments      map[int64]domain.Comment

	ticketSeq       int64
	userSeq         int64
	logSeq          int64
	notificationSeq int64
	commentSeq      int64
}

func newState() *state {
	return &state{
		tickets:       map[int64]domain.Ticket{},
		users:         map[int64]domain.User{},
		notifications: map[int64]domain.Notification{},
		slaConfigs:    map[domain.TicketPriority]float64{},
		comments:      map[int64]domain.Comment{},
	}
}

func (s *state) clone() *state {
	c := &state{
		tickets:         make(map[int64]domain.Ticket, len(s.tickets)),
		users:           make(map[int64]domain.User, len(s.users)),
		logs:            append([]domain.ActivityLogEntry(nil), s.logs...),
		notifications:   make(map[int64]domain.Notification, len(s.notifications)),
		slaConfigs:      make(map[domain.TicketPriority]float64, len(s.slaConfigs)),
		comments:        make(map[int64]domain.Comment, len(s.comments)),
		ticketSeq:       s.ticketSeq,
		userSeq:         s.userSeq,
		logSeq:          s.logSeq,
		notificationSeq: s.notificationSeq,
		commentSeq:      s.commentSeq,
	}
	for k, v := range s.tickets {
		c.tickets[k] = v
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.notifications {
		c.notifications[k] = v
	}
	for k, v := range s.slaConfigs {
		c.slaConfigs[k] = v
	}
	for k, v := range s.comments {
		c.comments[k] = v
	}
	return c
}

// Store keeps every table in memory behind one mutex. A transaction holds the
// mutex for its whole duration and works on a copy that replaces the live state
// only when fn succeeds.
type Store struct {
	mu    sync.Mutex
	state *state
	now   func() time.Time
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithSLAConfigs seeds the per-priority SLA hours.
func WithSLAConfigs(configs map[domain.TicketPriority]float64) Option {
	return func(s *Store) {
		for p, h := range configs {
			s.state.slaConfigs[p] = h
		}
	}
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{state: newState(), now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ repository.Store = (*Store)(nil)

func (s *Store) root() *view { return &view{store: s} }

func (s *Store) Tickets() repository.TicketRepository             { return ticketRepo{s.root()} }
func (s *Store) Users() repository.UserRepository                 { return userRepo{s.root()} }
func (s *Store) ActivityLogs() repository.ActivityLogRepository   { return activityLogRepo{s.root()} }
func (s *Store) Notifications() repository.NotificationRepository { return notificationRepo{s.root()} }
func (s *Store) SLAConfigs() repository.SLAConfigRepository       { return slaConfigRepo{s.root()} }
func (s *Store) Comments() repository.CommentRepository           { return commentRepo{s.root()} }

// WithinTx must not be combined with calls on the root store from inside fn;
// the mutex is already held.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &view{store: s, tx: s.state.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	s.state = tx.tx
	return nil
}

// view routes repository calls either to the live state, under the mutex, or
// to a transaction's private copy.
type view struct {
	store *Store
	tx    *state
}

func (v *view) Tickets() repository.TicketRepository             { return ticketRepo{v} }
func (v *view) Users() repository.UserRepository                 { return userRepo{v} }
func (v *view) ActivityLogs() repository.ActivityLogRepository   { return activityLogRepo{v} }
func (v *view) Notifications() repository.NotificationRepository { return notificationRepo{v} }
func (v *view) SLAConfigs() repository.SLAConfigRepository       { return slaConfigRepo{v} }
func (v *view) Comments() repository.CommentRepository           { return commentRepo{v} }

func (v *view) WithinTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if v.tx != nil {
		return fn(v)
	}
	return v.store.WithinTx(ctx, fn)
}

func (v *view) do(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if v.tx != nil {
		return fn(v.tx)
	}
	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	return fn(v.store.state)
}

func (v *view) now() time.Time { return v.store.now() }
