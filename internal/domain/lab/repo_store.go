package lab

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type assignmentRepoStore struct {
	items *store.Collection[Assignment]
}

func NewAssignmentRepoStore(s store.Store) AssignmentRepository {
	return &assignmentRepoStore{items: store.NewCollection(s, store.KeyLabAssignments, func(a Assignment) string { return a.ID })}
}

func (r *assignmentRepoStore) Create(ctx context.Context, a *Assignment) error {
	return r.items.Insert(ctx, *a)
}

func (r *assignmentRepoStore) GetByID(ctx context.Context, id string) (*Assignment, error) {
	a, err := r.items.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &a, nil
}

func (r *assignmentRepoStore) Update(ctx context.Context, id string, fn func(*Assignment) error) (*Assignment, error) {
	a, err := r.items.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &a, nil
}

func (r *assignmentRepoStore) Delete(ctx context.Context, id string) error {
	return notFound(id, r.items.Delete(ctx, id))
}

func (r *assignmentRepoStore) List(ctx context.Context, f Filter) ([]*Assignment, error) {
	all, err := r.items.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Assignment
	for i := range all {
		if f.match(all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
