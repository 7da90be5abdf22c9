package memstore

import (
	"context"
	"sort"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

type commentRepo struct{ v *view }

func (r commentRepo) Create(ctx context.Context, comment *domain.Comment) error {
	return r.v.do(ctx, func(st *state) error {
		if _, ok := st.tickets[comment.TicketID]; !ok {
			return repository.ErrNotFound
		}
		if _, ok := st.users[comment.UserID]; !ok {
			return repository.ErrNotFound
		}
		st.commentSeq++
		comment.ID = st.commentSeq
		comment.CreatedAt = r.v.now()
		comment.UpdatedAt = comment.CreatedAt
		st.comments[comment.ID] = *comment
		return nil
	})
}

func (r commentRepo) GetByID(ctx context.Context, id int64) (*domain.Comment, error) {
	var out *domain.Comment
	err := r.v.do(ctx, func(st *state) error {
		c, ok := st.comments[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &c
		return nil
	})
	return out, err
}

func (r commentRepo) ListByTicket(ctx context.Context, ticketID int64, includeInternal bool) ([]domain.Comment, error) {
	var out []domain.Comment
	err := r.v.do(ctx, func(st *state) error {
		for _, c := range st.comments {
			if c.TicketID == ticketID && (includeInternal || !c.Internal) {
				out = append(out, c)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, err
}

func (r commentRepo) UpdateContent(ctx context.Context, comment *domain.Comment) error {
	return r.v.do(ctx, func(st *state) error {
		current, ok := st.comments[comment.ID]
		if !ok {
			return repository.ErrNotFound
		}
		current.Content = comment.Content
		current.UpdatedAt = r.v.now()
		st.comments[comment.ID] = current
		comment.UpdatedAt = current.UpdatedAt
		return nil
	})
}

func (r commentRepo) Delete(ctx context.Context, id int64) error {
	return r.v.do(ctx, func(st *state) error {
		if _, ok := st.comments[id]; !ok {
			return repository.ErrNotFound
		}
		delete(st.comments, id)
		return nil
	})
}
