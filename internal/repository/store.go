package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned by every repository when the requested row does not exist.
var ErrNotFound = errors.New("record not found")

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the repositories the services need and scopes them to a transaction.
type Store interface {
	Tickets() TicketRepository
	Users() UserRepository
	ActivityLogs() ActivityLogRepository
	Notifications() NotificationRepository
	SLAConfigs() SLAConfigRepository
	Comments() CommentRepository
	// WithinTx runs fn against a store bound to one transaction. A non-nil error
	// from fn rolls back every write made through the transactional store.
	// Ids and timestamps that repositories wrote into arguments during a
	// rolled back transaction are void.
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

type pgStore struct {
	pool *pgxpool.Pool
	db   DBTX
	inTx bool
}

// NewPostgresStore returns a Store backed by the pool.
func NewPostgresStore(pool *pgxpool.Pool) Store {
	return &pgStore{pool: pool, db: pool}
}

func (s *pgStore) Tickets() TicketRepository             { return NewTicketRepository(s.db) }
func (s *pgStore) Users() UserRepository                 { return NewUserRepository(s.db) }
func (s *pgStore) ActivityLogs() ActivityLogRepository   { return NewActivityLogRepository(s.db) }
func (s *pgStore) Notifications() NotificationRepository { return NewNotificationRepository(s.db) }
func (s *pgStore) SLAConfigs() SLAConfigRepository       { return NewSLAConfigRepository(s.db) }
func (s *pgStore) Comments() CommentRepository           { return NewCommentRepository(s.db) }

func (s *pgStore) WithinTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return fn(&pgStore{pool: s.pool, db: tx, inTx: true})
	})
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
