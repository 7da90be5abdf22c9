package repository

import (
	"context"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// NotificationRepository persists per-user inbox entries.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error)
	// MarkRead flags a notification owned by userID as read; other users' rows are reported as not found.
	MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error)
	MarkAllRead(ctx context.Context, userID int64) (int64, error)
}

const notificationColumns = `id, user_id, message, type, ticket_id, read, created_at`

type notificationRepository struct {
	db DBTX
}

// NewNotificationRepository builds repository.
func NewNotificationRepository(db DBTX) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	const query = `
        INSERT INTO notifications (user_id, message, type, ticket_id, read)
        VALUES ($1,$2,$3,$4,FALSE)
        RETURNING id, created_at`
	n.Read = false
	return r.db.QueryRow(ctx, query,
		n.UserID,
		n.Message,
		n.Severity,
		n.TicketID,
	).Scan(&n.ID, &n.CreatedAt)
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=$1`
	if unreadOnly {
		query += ` AND read=FALSE`
	}
	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		var n domain.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.Severity, &n.TicketID, &n.Read, &n.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	query := `UPDATE notifications SET read=TRUE WHERE id=$1 AND user_id=$2 RETURNING ` + notificationColumns
	var n domain.Notification
	if err := r.db.QueryRow(ctx, query, id, userID).Scan(
		&n.ID, &n.UserID, &n.Message, &n.Severity, &n.TicketID, &n.Read, &n.CreatedAt,
	); err != nil {
		return nil, notFound(err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE notifications SET read=TRUE WHERE user_id=$1 AND read=FALSE`, userID)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
