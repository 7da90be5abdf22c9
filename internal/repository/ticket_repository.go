package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// TicketFilter captures search parameters.
type TicketFilter struct {
	AssigneeID  *int64
	CreatedByID *int64
	Statuses    []domain.TicketStatus
	Priorities  []domain.TicketPriority
	RiskTiers   []domain.RiskTier
	Customer    *string
	SearchTerm  *string
	Limit       int
	Offset      int
}

// TicketStats aggregates counts for the analytics views.
type TicketStats struct {
	Total              int
	ByStatus           map[domain.TicketStatus]int
	ByRiskTier         map[domain.RiskTier]int
	ActiveHighRisk     int
	AvgResolutionHours float64
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	// Delete removes the ticket with its activity log and comments.
	// Notifications keep their text but lose the ticket link.
	Delete(ctx context.Context, id int64) error
	// UpdateRiskTier touches only the risk column and never a RESOLVED row.
	// It reports whether a row was changed.
	UpdateRiskTier(ctx context.Context, id int64, tier domain.RiskTier) (bool, error)
	GetByID(ctx context.Context, id int64) (*domain.Ticket, error)
	// GetForUpdate loads the ticket and locks it until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error)
	ListActive(ctx context.Context) ([]domain.Ticket, error)
	ListNeedingEscalation(ctx context.Context) ([]domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
	CountOpenAssigned(ctx context.Context, userID int64) (int, error)
	CountHighRiskAssigned(ctx context.Context, userID int64) (int, error)
	Stats(ctx context.Context) (*TicketStats, error)
}

const ticketColumns = `id, title, customer, description, priority, status, risk_level, sla_limit_hours,
               assignee_id, created_by_user_id, created_at, updated_at, resolved_at`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, customer, description, priority, status, risk_level, sla_limit_hours,
                             assignee_id, created_by_user_id, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$10)
        RETURNING id, updated_at`
	if ticket.CreatedAt.IsZero() {
		ticket.CreatedAt = time.Now().UTC()
	}
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Customer,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.RiskTier,
		ticket.SLALimitHours,
		ticket.AssigneeID,
		ticket.CreatedByID,
		ticket.CreatedAt,
	).Scan(&ticket.ID, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET title=$1, customer=$2, description=$3, priority=$4, status=$5, risk_level=$6,
            assignee_id=$7, resolved_at=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	err := r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Customer,
		ticket.Description,
		ticket.Priority,
		ticket.Status,
		ticket.RiskTier,
		ticket.AssigneeID,
		ticket.ResolvedAt,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
	return notFound(err)
}

func (r *ticketRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ticketRepository) UpdateRiskTier(ctx context.Context, id int64, tier domain.RiskTier) (bool, error) {
	const query = `
        UPDATE tickets SET risk_level=$1, updated_at=NOW()
        WHERE id=$2 AND status <> $3 AND risk_level <> $1`
	cmd, err := r.db.Exec(ctx, query, tier, id, domain.TicketStatusResolved)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1 FOR UPDATE`
	return r.fetchSingle(ctx, query, id)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, notFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE status <> $1 ORDER BY id`
	rows, err := r.db.Query(ctx, query, domain.TicketStatusResolved)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListNeedingEscalation(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        WHERE risk_level IN ($1,$2) AND status NOT IN ($3,$4)
        ORDER BY id`
	rows, err := r.db.Query(ctx, query,
		domain.RiskTierHighRisk,
		domain.RiskTierBreached,
		domain.TicketStatusEscalated,
		domain.TicketStatusResolved,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	base := `SELECT ` + ticketColumns + ` FROM tickets`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assignee_id=$%d", len(args)))
	}
	if filter.CreatedByID != nil {
		args = append(args, *filter.CreatedByID)
		clauses = append(clauses, fmt.Sprintf("created_by_user_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		clauses = append(clauses, inClause("status", filter.Statuses, &args))
	}
	if len(filter.Priorities) > 0 {
		clauses = append(clauses, inClause("priority", filter.Priorities, &args))
	}
	if len(filter.RiskTiers) > 0 {
		clauses = append(clauses, inClause("risk_level", filter.RiskTiers, &args))
	}
	if filter.Customer != nil && strings.TrimSpace(*filter.Customer) != "" {
		args = append(args, "%"+strings.ToLower(strings.TrimSpace(*filter.Customer))+"%")
		clauses = append(clauses, fmt.Sprintf("LOWER(customer) LIKE $%d", len(args)))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(customer) LIKE %s OR CAST(id AS TEXT) LIKE %s)",
			placeholder, placeholder, placeholder))
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC, id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) CountOpenAssigned(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assignee_id=$1 AND status IN ($2,$3,$4)`
	var count int
	err := r.db.QueryRow(ctx, query, userID,
		domain.TicketStatusOpen,
		domain.TicketStatusInProgress,
		domain.TicketStatusEscalated,
	).Scan(&count)
	return count, err
}

func (r *ticketRepository) CountHighRiskAssigned(ctx context.Context, userID int64) (int, error) {
	const query = `SELECT COUNT(*) FROM tickets WHERE assignee_id=$1 AND status <> $2 AND risk_level IN ($3,$4)`
	var count int
	err := r.db.QueryRow(ctx, query, userID,
		domain.TicketStatusResolved,
		domain.RiskTierHighRisk,
		domain.RiskTierBreached,
	).Scan(&count)
	return count, err
}

func (r *ticketRepository) Stats(ctx context.Context) (*TicketStats, error) {
	stats := &TicketStats{
		ByStatus:   map[domain.TicketStatus]int{},
		ByRiskTier: map[domain.RiskTier]int{},
	}

	rows, err := r.db.Query(ctx, `SELECT status, risk_level, COUNT(*) FROM tickets GROUP BY status, risk_level`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			status domain.TicketStatus
			tier   domain.RiskTier
			count  int
		)
		if err := rows.Scan(&status, &tier, &count); err != nil {
			return nil, err
		}
		stats.Total += count
		stats.ByStatus[status] += count
		stats.ByRiskTier[tier] += count
		if status != domain.TicketStatusResolved && tier.NeedsEscalation() {
			stats.ActiveHighRisk += count
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	const avgQuery = `
        SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0)
        FROM tickets WHERE status=$1 AND resolved_at IS NOT NULL`
	if err := r.db.QueryRow(ctx, avgQuery, domain.TicketStatusResolved).Scan(&stats.AvgResolutionHours); err != nil {
		return nil, err
	}
	return stats, nil
}

func inClause[T ~string](column string, values []T, args *[]any) string {
	placeholders := make([]string, len(values))
	for i, v := range values {
		*args = append(*args, v)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	return fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ","))
}

func pageBounds(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Customer,
		&ticket.Description,
		&ticket.Priority,
		&ticket.Status,
		&ticket.RiskTier,
		&ticket.SLALimitHours,
		&ticket.AssigneeID,
		&ticket.CreatedByID,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
