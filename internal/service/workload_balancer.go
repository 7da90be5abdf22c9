package service

import (
	"context"

	"github.com/spec-kit/sla-guard/internal/domain"
)

// WorkloadCounter reports how many open tickets a user currently carries.
type WorkloadCounter interface {
	CountOpenAssigned(ctx context.Context, userID int64) (int, error)
}

// WorkloadBalancer picks escalation targets.
type WorkloadBalancer struct{}

// NewWorkloadBalancer constructs the balancer.
func NewWorkloadBalancer() *WorkloadBalancer {
	return &WorkloadBalancer{}
}

// SelectEscalationTarget returns the candidate with the fewest open tickets.
// Ties go to the earliest candidate. ok is false when candidates is empty.
func (b *WorkloadBalancer) SelectEscalationTarget(ctx context.Context, counter WorkloadCounter, candidates []domain.User) (int64, bool, error) {
	var (
		bestID    int64
		bestCount int
		found     bool
	)
	for _, candidate := range candidates {
		count, err := counter.CountOpenAssigned(ctx, candidate.ID)
		if err != nil {
			return 0, false, err
		}
		if !found || count < bestCount {
			bestID, bestCount, found = candidate.ID, count, true
		}
	}
	return bestID, found, nil
}
