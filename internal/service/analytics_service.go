package service

import (
	"context"
	"math"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
	apperrors "github.com/spec-kit/sla-guard/pkg/util/errorutil"
)

// Overview summarises the ticket population for the dashboard.
type Overview struct {
	TotalTickets       int     `json:"total_tickets"`
	HighRiskTickets    int     `json:"high_risk_tickets"`
	BreachedTickets    int     `json:"breached_tickets"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	OpenTickets        int     `json:"open_tickets"`
	InProgressTickets  int     `json:"in_progress_tickets"`
	ResolvedTickets    int     `json:"resolved_tickets"`
	EscalatedTickets   int     `json:"escalated_tickets"`
}

// RiskDistribution counts tickets per stored tier, resolved ones included.
type RiskDistribution struct {
	Safe     int `json:"safe"`
	Warning  int `json:"warning"`
	HighRisk int `json:"high_risk"`
	Breached int `json:"breached"`
}

// TechnicianWorkload is one row of the workload table.
type TechnicianWorkload struct {
	TechnicianID    int64           `json:"technician_id"`
	TechnicianName  string          `json:"technician_name"`
	Role            domain.UserRole `json:"role"`
	AssignedTickets int             `json:"assigned_tickets"`
	HighRiskTickets int             `json:"high_risk_tickets"`
}

// AnalyticsService provides read-only aggregates.
type AnalyticsService struct {
	store repository.Store
}

// NewAnalyticsService creates the service.
func NewAnalyticsService(store repository.Store) *AnalyticsService {
	return &AnalyticsService{store: store}
}

// Overview returns dashboard counters.
func (s *AnalyticsService) Overview(ctx context.Context) (*Overview, error) {
	stats, err := s.store.Tickets().Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &Overview{
		TotalTickets:       stats.Total,
		HighRiskTickets:    stats.ActiveHighRisk,
		BreachedTickets:    stats.ByRiskTier[domain.RiskTierBreached],
		AvgResolutionHours: math.Round(stats.AvgResolutionHours*100) / 100,
		OpenTickets:        stats.ByStatus[domain.TicketStatusOpen],
		InProgressTickets:  stats.ByStatus[domain.TicketStatusInProgress],
		ResolvedTickets:    stats.ByStatus[domain.TicketStatusResolved],
		EscalatedTickets:   stats.ByStatus[domain.TicketStatusEscalated],
	}, nil
}

// RiskDistribution returns ticket counts per tier.
func (s *AnalyticsService) RiskDistribution(ctx context.Context) (*RiskDistribution, error) {
	stats, err := s.store.Tickets().Stats(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return &RiskDistribution{
		Safe:     stats.ByRiskTier[domain.RiskTierSafe],
		Warning:  stats.ByRiskTier[domain.RiskTierWarning],
		HighRisk: stats.ByRiskTier[domain.RiskTierHighRisk],
		Breached: stats.ByRiskTier[domain.RiskTierBreached],
	}, nil
}

// TechnicianWorkload lists every ticket-working user with open and high risk counts.
func (s *AnalyticsService) TechnicianWorkload(ctx context.Context) ([]TechnicianWorkload, error) {
	users, err := s.store.Users().ListByRoles(ctx, domain.RolesWith(domain.CapabilityWorkTickets)...)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := make([]TechnicianWorkload, 0, len(users))
	for _, u := range users {
		assigned, err := s.store.Tickets().CountOpenAssigned(ctx, u.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		highRisk, err := s.store.Tickets().CountHighRiskAssigned(ctx, u.ID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		out = append(out, TechnicianWorkload{
			TechnicianID:    u.ID,
			TechnicianName:  u.Name,
			Role:            u.Role,
			AssignedTickets: assigned,
			HighRiskTickets: highRisk,
		})
	}
	return out, nil
}
