package memstore

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/spec-kit/sla-guard/internal/domain"
	"github.com/spec-kit/sla-guard/internal/repository"
)

// ErrDuplicateEmail mirrors the unique constraint on users.email.
var ErrDuplicateEmail = errors.New("memstore: email already registered")

type userRepo struct{ v *view }

func (r userRepo) Create(ctx context.Context, user *domain.User) error {
	return r.v.do(ctx, func(st *state) error {
		for _, existing := range st.users {
			if strings.EqualFold(existing.Email, user.Email) {
				return ErrDuplicateEmail
			}
		}
		st.userSeq++
		user.ID = st.userSeq
		if user.CreatedAt.IsZero() {
			user.CreatedAt = r.v.now()
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(ctx, func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrNotFound
		}
		out = &u
		return nil
	})
	return out, err
}

func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.v.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if strings.EqualFold(u.Email, email) {
				found := u
				out = &found
				return nil
			}
		}
		return repository.ErrNotFound
	})
	return out, err
}

func (r userRepo) ListByRoles(ctx context.Context, roles ...domain.UserRole) ([]domain.User, error) {
	var out []domain.User
	err := r.v.do(ctx, func(st *state) error {
		for _, u := range st.users {
			if contains(roles, u.Role) {
				out = append(out, u)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}
