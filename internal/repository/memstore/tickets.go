package memstore

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

type ticketRepo struct{ v *view }

// Create fills in ID, CreatedAt and UpdatedAt like the Postgres RETURNING clause
// does. Inside a transaction that later rolls back those values are void.
func (r ticketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	return r.v.do(ctx, func(st *state) error {
		stored := copyTicket(*ticket)
		st.ticketSeq++
		stored.ID = st.ticketSeq
		if stored.CreatedAt.IsZero() {
			stored.CreatedAt = r.v.now()
		}
		stored.UpdatedAt = stored.CreatedAt
		st.tickets[stored.ID] = stored
		ticket.ID, ticket.CreatedAt, ticket.UpdatedAt = stored.ID, stored.CreatedAt, stored.UpdatedAt
		return nil
	})
}

func (r ticketRepo) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.v.do(ctx, func(st *state) error {
		current, ok := st.tickets[ticket.ID]
		if !ok {
			return repository.ErrNotFound
		}
		current.Title = ticket.Title
		current.Customer = ticket.Customer
		current.Description = ticket.Description
		current.Priority = ticket.Priority
		current.Status = ticket.Status
		current.RiskTier = ticket.RiskTier
		current.AssigneeID = ticket.AssigneeID
		current.ResolvedAt = ticket.ResolvedAt
		current.UpdatedAt = r.v.now()
		st.tickets[ticket.ID] = copyTicket(current)
		ticket.UpdatedAt = current.UpdatedAt
		return nil
	})
}

func (r ticketRepo) Delete(ctx context.Context, id int64) error {
	return r.v.do(ctx, func(st *state) error {
		if _, ok := st.tickets[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.tickets, id)
		logs := st.logs[:0:0]
		for _, e := range st.logs {
			if e.TicketID != id {
				logs = append(logs, e)
			}
		}
		st.logs = logs
		for cid, c := range st.comments {
			if c.TicketID == id {
				delete(st.comments, cid)
			}
		}
		for nid, n := range st.notifications {
			if n.TicketID != nil && *n.TicketID == id {
				n.TicketID = nil
				st.notifications[nid] = n
			}
		}
		return nil
	})
}

func (r ticketRepo) UpdateRiskTier(ctx context.Context, id int64, tier domain.RiskTier) (bool, error) {
	var changed bool
	err := r.v.do(ctx, func(st *state) error {
		current, ok := st.tickets[id]
		if !ok || current.Status == domain.TicketStatusResolved || current.RiskTier == tier {
			return nil
		}
		current.RiskTier = tier
		current.UpdatedAt = r.v.now()
		st.tickets[id] = current
		changed = true
		return nil
	})
	return changed, err
}

func (r ticketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	var out *domain.Ticket
	err := r.v.do(ctx, func(st *state) error {
		t, ok := st.tickets[id]
		if !ok {
			return repository.ErrNotFound
		}
		c := copyTicket(t)
		out = &c
		return nil
	})
	return out, err
}

// GetForUpdate relies on the transaction already holding the store mutex.
func (r ticketRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Ticket, error) {
	return r.GetByID(ctx, id)
}

func (r ticketRepo) ListActive(ctx context.Context) ([]domain.Ticket, error) {
	return r.collect(ctx, func(t domain.Ticket) bool { return t.IsActive() }, byID)
}

func (r ticketRepo) ListNeedingEscalation(ctx context.Context) ([]domain.Ticket, error) {
	return r.collect(ctx, func(t domain.Ticket) bool { return t.NeedsEscalation() }, byID)
}

func (r ticketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	all, err := r.collect(ctx, func(t domain.Ticket) bool { return matches(t, filter) }, newestFirst)
	if err != nil {
		return nil, err
	}
	limit, offset := filter.Limit, filter.Offset
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r ticketRepo) CountOpenAssigned(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, func(t domain.Ticket) bool {
		return t.AssigneeID != nil && *t.AssigneeID == userID && t.CountsAsWorkload()
	})
}

func (r ticketRepo) CountHighRiskAssigned(ctx context.Context, userID int64) (int, error) {
	return r.count(ctx, func(t domain.Ticket) bool {
		return t.AssigneeID != nil && *t.AssigneeID == userID && t.IsActive() && t.RiskTier.NeedsEscalation()
	})
}

func (r ticketRepo) Stats(ctx context.Context) (*repository.TicketStats, error) {
	stats := &repository.TicketStats{
		ByStatus:   map[domain.TicketStatus]int{},
		ByRiskTier: map[domain.RiskTier]int{},
	}
	var resolvedHours float64
	var resolved int
	err := r.v.do(ctx, func(st *state) error {
		for _, t := range st.tickets {
			stats.Total++
			stats.ByStatus[t.Status]++
			stats.ByRiskTier[t.RiskTier]++
			if t.IsActive() && t.RiskTier.NeedsEscalation() {
				stats.ActiveHighRisk++
			}
			if t.Status == domain.TicketStatusResolved && t.ResolvedAt != nil {
				resolvedHours += t.ResolvedAt.Sub(t.CreatedAt).Hours()
				resolved++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if resolved > 0 {
		stats.AvgResolutionHours = resolvedHours / float64(resolved)
	}
	return stats, nil
}

func (r ticketRepo) collect(ctx context.Context, keep func(domain.Ticket) bool, less func(a, b domain.Ticket) bool) ([]domain.Ticket, error) {
	var out []domain.Ticket
	err := r.v.do(ctx, func(st *state) error {
		for _, t := range st.tickets {
			if keep(t) {
				out = append(out, copyTicket(t))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out, err
}

func (r ticketRepo) count(ctx context.Context, keep func(domain.Ticket) bool) (int, error) {
	var n int
	err := r.v.do(ctx, func(st *state) error {
		for _, t := range st.tickets {
			if keep(t) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func byID(a, b domain.Ticket) bool { return a.ID < b.ID }

func newestFirst(a, b domain.Ticket) bool {
	if a.CreatedAt.Equal(b.CreatedAt) {
		return a.ID > b.ID
	}
	return a.CreatedAt.After(b.CreatedAt)
}

func matches(t domain.Ticket, f repository.TicketFilter) bool {
	if f.AssigneeID != nil && (t.AssigneeID == nil || *t.AssigneeID != *f.AssigneeID) {
		return false
	}
	if f.CreatedByID != nil && (t.CreatedByID == nil || *t.CreatedByID != *f.CreatedByID) {
		return false
	}
	if len(f.Statuses) > 0 && !contains(f.Statuses, t.Status) {
		return false
	}
	if len(f.Priorities) > 0 && !contains(f.Priorities, t.Priority) {
		return false
	}
	if len(f.RiskTiers) > 0 && !contains(f.RiskTiers, t.RiskTier) {
		return false
	}
	if f.Customer != nil {
		if c := strings.ToLower(strings.TrimSpace(*f.Customer)); c != "" && !strings.Contains(strings.ToLower(t.Customer), c) {
			return false
		}
	}
	if f.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*f.SearchTerm))
		if term != "" &&
			!strings.Contains(strings.ToLower(t.Title), term) &&
			!strings.Contains(strings.ToLower(t.Customer), term) &&
			!strings.Contains(strconv.FormatInt(t.ID, 10), term) {
			return false
		}
	}
	return true
}

func contains[T comparable](values []T, v T) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func copyTicket(t domain.Ticket) domain.Ticket {
	if t.AssigneeID != nil {
		id := *t.AssigneeID
		t.AssigneeID = &id
	}
	if t.CreatedByID != nil {
		id := *t.CreatedByID
		t.CreatedByID = &id
	}
	if t.ResolvedAt != nil {
		at := *t.ResolvedAt
		t.ResolvedAt = &at
	}
	return t
}

