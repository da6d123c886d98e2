package tpa

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/hms/hms/internal/platform/store"
)

// records adapts a collection to the lookups shared by every TPA ledger.
type records[T any] struct {
	c        *store.Collection[T]
	notFound error
}

func (r records[T]) get(ctx context.Context, id string) (*T, error) {
	v, err := r.c.Get(ctx, id)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	return &v, nil
}

func (r records[T]) update(ctx context.Context, id string, fn func(*T) error) (*T, error) {
	v, err := r.c.Update(ctx, id, fn)
	if err != nil {
		return nil, r.wrap(id, err)
	}
	return &v, nil
}

func (r records[T]) delete(ctx context.Context, id string) error {
	return r.wrap(id, r.c.Delete(ctx, id))
}

// list returns the items keep accepts ordered newest first by at.
func (r records[T]) list(ctx context.Context, keep func(*T) bool, at func(*T) time.Time) ([]*T, error) {
	all, err := r.c.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*T
	for i := range all {
		if keep(&all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return at(out[i]).After(at(out[j])) })
	return out, nil
}

func (r records[T]) wrap(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", r.notFound, id)
	}
	return err
}

type tpaRepoStore struct{ records[TPA] }

// NewTPARepoStore keeps TPAs under hms_tpa_v2.
func NewTPARepoStore(s store.Store) TPARepository {
	c := store.NewCollection(s, store.KeyTPAs, func(t TPA) string { return t.ID })
	return &tpaRepoStore{records[TPA]{c: c, notFound: ErrTPANotFound}}
}

func (r *tpaRepoStore) Create(ctx context.Context, t *TPA) error { return r.c.Insert(ctx, *t) }
func (r *tpaRepoStore) GetByID(ctx context.Context, id string) (*TPA, error) {
	return r.get(ctx, id)
}
func (r *tpaRepoStore) Update(ctx context.Context, id string, fn func(*TPA) error) (*TPA, error) {
	return r.update(ctx, id, fn)
}
func (r *tpaRepoStore) Delete(ctx context.Context, id string) error { return r.delete(ctx, id) }

// List returns TPAs alphabetically.
func (r *tpaRepoStore) List(ctx context.Context) ([]*TPA, error) {
	out, err := r.list(ctx, func(*TPA) bool { return true }, func(t *TPA) time.Time { return t.CreatedAt })
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type policyRepoStore struct{ records[Policy] }

// NewPolicyRepoStore keeps policies under hms_insurance_policies_v1.
func NewPolicyRepoStore(s store.Store) PolicyRepository {
	c := store.NewCollection(s, store.KeyPolicies, func(p Policy) string { return p.ID })
	return &policyRepoStore{records[Policy]{c: c, notFound: ErrPolicyNotFound}}
}

func (r *policyRepoStore) Create(ctx context.Context, p *Policy) error { return r.c.Insert(ctx, *p) }
func (r *policyRepoStore) GetByID(ctx context.Context, id string) (*Policy, error) {
	return r.get(ctx, id)
}
func (r *policyRepoStore) Update(ctx context.Context, id string, fn func(*Policy) error) (*Policy, error) {
	return r.update(ctx, id, fn)
}
func (r *policyRepoStore) Delete(ctx context.Context, id string) error { return r.delete(ctx, id) }
func (r *policyRepoStore) List(ctx context.Context, f PolicyFilter) ([]*Policy, error) {
	return r.list(ctx, f.match, func(p *Policy) time.Time { return p.CreatedAt })
}

type claimRepoStore struct{ records[Claim] }

// NewClaimRepoStore keeps claims under hms_tpa_claims_v2.
func NewClaimRepoStore(s store.Store) ClaimRepository {
	c := store.NewCollection(s, store.KeyClaims, func(c Claim) string { return c.ID })
	return &claimRepoStore{records[Claim]{c: c, notFound: ErrClaimNotFound}}
}

func (r *claimRepoStore) Create(ctx context.Context, c *Claim) error { return r.c.Insert(ctx, *c) }
func (r *claimRepoStore) GetByID(ctx context.Context, id string) (*Claim, error) {
	return r.get(ctx, id)
}
func (r *claimRepoStore) Update(ctx context.Context, id string, fn func(*Claim) error) (*Claim, error) {
	return r.update(ctx, id, fn)
}
func (r *claimRepoStore) Delete(ctx context.Context, id string) error { return r.delete(ctx, id) }
func (r *claimRepoStore) List(ctx context.Context, f ClaimFilter) ([]*Claim, error) {
	return r.list(ctx, f.match, func(c *Claim) time.Time { return c.SubmissionDate })
}

type billRepoStore struct{ records[Bill] }

// NewBillRepoStore keeps TPA bills under hms_tpa_bills_v1.
func NewBillRepoStore(s store.Store) BillRepository {
	c := store.NewCollection(s, store.KeyTPABills, func(b Bill) string { return b.ID })
	return &billRepoStore{records[Bill]{c: c, notFound: ErrBillNotFound}}
}

func (r *billRepoStore) Create(ctx context.Context, b *Bill) error { return r.c.Insert(ctx, *b) }
func (r *billRepoStore) GetByID(ctx context.Context, id string) (*Bill, error) {
	return r.get(ctx, id)
}
func (r *billRepoStore) Update(ctx context.Context, id string, fn func(*Bill) error) (*Bill, error) {
	return r.update(ctx, id, fn)
}
func (r *billRepoStore) List(ctx context.Context, tpaID string) ([]*Bill, error) {
	return r.list(ctx,
		func(b *Bill) bool { return tpaID == "" || b.TPAID == tpaID },
		func(b *Bill) time.Time { return b.CreatedDate })
}
