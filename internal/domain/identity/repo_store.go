package identity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type userRepoStore struct {
	users *store.Collection[User]
}

// NewUserRepoStore keeps user accounts under hms_users_v1.
func NewUserRepoStore(s store.Store) UserRepository {
	return &userRepoStore{users: store.NewCollection(s, store.KeyUsers, func(u User) string { return u.ID })}
}

// Create rejects an email that is already registered.
func (r *userRepoStore) Create(ctx context.Context, u *User) error {
	return r.users.Mutate(ctx, func(items []User) ([]User, error) {
		for _, existing := range items {
			if normalizeEmail(existing.Email) == normalizeEmail(u.Email) {
				return nil, fmt.Errorf("%w: %s", ErrEmailTaken, u.Email)
			}
		}
		return append(items, *u), nil
	})
}

func (r *userRepoStore) GetByID(ctx context.Context, id string) (*User, error) {
	u, err := r.users.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &u, nil
}

func (r *userRepoStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	all, err := r.users.All(ctx)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if normalizeEmail(all[i].Email) == normalizeEmail(email) {
			return &all[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, email)
}

func (r *userRepoStore) Update(ctx context.Context, id string, fn func(u *User) error) (*User, error) {
	u, err := r.users.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &u, nil
}

func (r *userRepoStore) List(ctx context.Context) ([]*User, error) {
	all, err := r.users.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*User, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
