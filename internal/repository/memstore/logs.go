package memstore

import (
	"context"
	"sort"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

type activityLogRepo struct{ v *view }

func (r activityLogRepo) Append(ctx context.Context, entry *domain.ActivityLogEntry) error {
	return r.v.do(ctx, func(st *state) error {
		if _, ok := st.tickets[entry.TicketID]; !ok {
			return repository.ErrNotFound
		}
		st.logSeq++
		entry.ID = st.logSeq
		if entry.Timestamp.IsZero() {
			entry.Timestamp = r.v.now()
		}
		st.logs = append(st.logs, *entry)
		return nil
	})
}

func (r activityLogRepo) ListByTicket(ctx context.Context, ticketID int64) ([]domain.ActivityLogEntry, error) {
	var out []domain.ActivityLogEntry
	err := r.v.do(ctx, func(st *state) error {
		for _, e := range st.logs {
			if e.TicketID == ticketID {
				out = append(out, e)
			}
		}
		return nil
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].ID > out[j].ID
		}
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out, err
}

type notificationRepo struct{ v *view }

func (r notificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	return r.v.do(ctx, func(st *state) error {
		if _, ok := st.users[n.UserID]; !ok {
			return repository.ErrNotFound
		}
		st.notificationSeq++
		n.ID = st.notificationSeq
		n.Read = false
		n.CreatedAt = r.v.now()
		st.notifications[n.ID] = *n
		return nil
	})
}

func (r notificationRepo) ListByUser(ctx context.Context, userID int64, unreadOnly bool) ([]domain.Notification, error) {
	var out []domain.Notification
	err := r.v.do(ctx, func(st *state) error {
		for _, n := range st.notifications {
			if n.UserID == userID && (!unreadOnly || !n.Read) {
				out = append(out, n)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, err
}

func (r notificationRepo) MarkRead(ctx context.Context, userID, id int64) (*domain.Notification, error) {
	var out *domain.Notification
	err := r.v.do(ctx, func(st *state) error {
		n, ok := st.notifications[id]
		if !ok || n.UserID != userID {
			return repository.ErrNotFound
		}
		n.Read = true
		st.notifications[id] = n
		out = &n
		return nil
	})
	return out, err
}

func (r notificationRepo) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.v.do(ctx, func(st *state) error {
		for id, n := range st.notifications {
			if n.UserID == userID && !n.Read {
				n.Read = true
				st.notifications[id] = n
				count++
			}
		}
		return nil
	})
	return count, err
}

type slaConfigRepo struct{ v *view }

func (r slaConfigRepo) Get(ctx context.Context, priority domain.TicketPriority) (*domain.SLAConfig, error) {
	var out *domain.SLAConfig
	err := r.v.do(ctx, func(st *state) error {
		hours, ok := st.slaConfigs[priority]
		if !ok {
			return repository.ErrNotFound
		}
		out = &domain.SLAConfig{Priority: priority, Hours: hours}
		return nil
	})
	return out, err
}

func (r slaConfigRepo) List(ctx context.Context) ([]domain.SLAConfig, error) {
	var out []domain.SLAConfig
	err := r.v.do(ctx, func(st *state) error {
		for p, h := range st.slaConfigs {
			out = append(out, domain.SLAConfig{Priority: p, Hours: h})
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hours == out[j].Hours {
			return out[i].Priority < out[j].Priority
		}
		return out[i].Hours < out[j].Hours
	})
	return out, err
}

func (r slaConfigRepo) Upsert(ctx context.Context, cfg *domain.SLAConfig) error {
	return r.v.do(ctx, func(st *state) error {
		st.slaConfigs[cfg.Priority] = cfg.Hours
		return nil
	})
}
