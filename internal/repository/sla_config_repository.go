package repository

import (
	"context"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// SLAConfigRepository stores the per-priority SLA budgets.
type SLAConfigRepository interface {
	Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error)
	List(ctx context.Context) ([]domain.SLAConfig, error)
	Upsert(ctx context.Context, cfg *domain.SLAConfig) error
}

type slaConfigRepository struct {
	db DBTX
}

// NewSLAConfigRepository builds repository.
func NewSLAConfigRepository(db DBTX) SLAConfigRepository {
	return &slaConfigRepository{db: db}
}

func (r *slaConfigRepository) Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	var cfg domain.SLAConfig
	err := r.db.QueryRow(ctx, `SELECT priority, sla_hours FROM sla_configs WHERE priority=$1`, priority).
		Scan(&cfg.Priority, &cfg.Hours)
	if err != nil {
		return nil, notFound(err)
	}
	return &cfg, nil
}

func (r *slaConfigRepository) List(ctx context.Context) ([]domain.SLAConfig, error) {
	rows, err := r.db.Query(ctx, `SELECT priority, sla_hours FROM sla_configs ORDER BY sla_hours, priority`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.SLAConfig
	for rows.Next() {
		var cfg domain.SLAConfig
		if err := rows.Scan(&cfg.Priority, &cfg.Hours); err != nil {
			return nil, err
		}
		result = append(result, cfg)
	}
	return result, rows.Err()
}

func (r *slaConfigRepository) Upsert(ctx context.Context, cfg *domain.SLAConfig) error {
	const query = `
        INSERT INTO sla_configs (priority, sla_hours) VALUES ($1,$2)
        ON CONFLICT (priority) DO UPDATE SET sla_hours=EXCLUDED.sla_hours`
	_, err := r.db.Exec(ctx, query, cfg.Priority, cfg.Hours)
	return err
}
