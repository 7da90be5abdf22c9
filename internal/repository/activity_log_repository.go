package repository

import (
	"context"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// ActivityLogRepository stores audit entries. Entries are append-only.
type ActivityLogRepository interface {
	Append(ctx context.Context, entry *domain.ActivityLogEntry) error
	ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLogEntry, error)
}

type activityLogRepository struct {
	db DBTX
}

// NewActivityLogRepository builds repository.
func NewActivityLogRepository(db DBTX) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	const query = `
        INSERT INTO activity_logs (ticket_id, user_id, action, details, timestamp)
        VALUES ($1,$2,$3,$4,COALESCE($5, NOW()))
        RETURNING id, timestamp`
	var ts any
	if !entry.Timestamp.IsZero() {
		ts = entry.Timestamp
	}
	return r.db.QueryRow(ctx, query,
		entry.TicketID,
		entry.ActorID,
		entry.Action,
		entry.Details,
		ts,
	).Scan(&entry.ID, &entry.Timestamp)
}

// ListByTicket returns the newest entries first.
func (r *activityLogRepository) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLogEntry, error) {
	const query = `
        SELECT id, ticket_id, user_id, action, details, timestamp
        FROM activity_logs WHERE ticket_id=$1 ORDER BY timestamp DESC, id DESC`
	rows, err := r.db.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ActivityLogEntry
	for rows.Next() {
		var entry domain.ActivityLogEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.TicketID,
			&entry.ActorID,
			&entry.Action,
			&entry.Details,
			&entry.Timestamp,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
