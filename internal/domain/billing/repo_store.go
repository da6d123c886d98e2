package billing

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type billRepoStore struct {
	bills *store.Collection[Bill]
}

// NewBillRepoStore keeps bills as the JSON array under hms_bills_v1.
func NewBillRepoStore(s store.Store) BillRepository {
	return &billRepoStore{bills: store.NewCollection(s, store.KeyBills, func(b Bill) string { return b.ID })}
}

func (r *billRepoStore) Create(ctx context.Context, b *Bill) error {
	return r.bills.Insert(ctx, *b)
}

func (r *billRepoStore) GetByID(ctx context.Context, id string) (*Bill, error) {
	b, err := r.bills.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &b, nil
}

func (r *billRepoStore) Update(ctx context.Context, id string, fn func(b *Bill) error) (*Bill, error) {
	b, err := r.bills.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &b, nil
}

func (r *billRepoStore) Delete(ctx context.Context, id string) error {
	return notFound(id, r.bills.Delete(ctx, id))
}

// List returns matching bills, newest first.
func (r *billRepoStore) List(ctx context.Context, f Filter) ([]*Bill, error) {
	all, err := r.bills.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Bill
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
