package service

import (
	"context"
	"errors"
	"math"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
	"github.com/spec-kit/sla-guard/internal/sla"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// SLAService manages per-priority SLA budgets.
type SLAService struct {
	store  repository.Store
	limits sla.Limits
	logger *zap.Logger
}

// SLADependencies bundles collaborators for the SLA service.
type SLADependencies struct {
	Store  repository.Store
	Limits sla.Limits
	Logger *zap.Logger
}

// NewSLAService creates the service.
func NewSLAService(deps SLADependencies) *SLAService {
	s := &SLAService{store: deps.Store, limits: deps.Limits, logger: deps.Logger}
	if s.limits == nil {
		s.limits = sla.DefaultLimits()
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

// List returns one entry per priority, most urgent first. Priorities without a
// stored row report the configured default.
func (s *SLAService) List(ctx context.Context) ([]domain.SLAConfig, error) {
	stored, err := s.store.SLAConfigs().List(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byPriority := make(map[domain.TicketPriority]float64, len(stored))
	for _, cfg := range stored {
		byPriority[cfg.Priority] = cfg.Hours
	}
	out := make([]domain.SLAConfig, 0, len(domain.Priorities))
	for _, p := range domain.Priorities {
		hours, ok := byPriority[p]
		if !ok {
			hours = s.limits.For(p)
		}
		out = append(out, domain.SLAConfig{Priority: p, Hours: hours})
	}
	return out, nil
}

// Update stores new hours for a priority. Existing tickets keep the limit they
// were created with.
func (s *SLAService) Update(ctx context.Context, priority domain.TicketPriority, hours float64) (*domain.SLAConfig, error) {
	priority = domain.TicketPriority(strings.ToUpper(strings.TrimSpace(string(priority))))
	if !priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return nil, apperrors.NewValidationError("sla hours must be a positive number", map[string]any{"field": "sla_hours"})
	}

	cfg := &domain.SLAConfig{Priority: priority, Hours: hours}
	if err := s.store.SLAConfigs().Upsert(ctx, cfg); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("sla config updated", zap.String("priority", string(priority)), zap.Float64("hours", hours))
	return cfg, nil
}

// LimitFor returns the hours a new ticket of this priority receives.
func (s *SLAService) LimitFor(ctx context.Context, priority domain.TicketPriority) (float64, error) {
	return limitFor(ctx, s.store.SLAConfigs(), s.limits, priority)
}

func limitFor(ctx context.Context, repo repository.SLAConfigRepository, limits sla.Limits, priority domain.TicketPriority) (float64, error) {
	cfg, err := repo.Get(ctx, priority)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return limits.For(priority), nil
		}
		return 0, err
	}
	return cfg.Hours, nil
}
