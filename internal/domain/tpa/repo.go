package tpa

import "context"

type TPARepository interface {
	Create(ctx context.Context, t *TPA) error
	GetByID(ctx context.Context, id string) (*TPA, error)
	Update(ctx context.Context, id string, fn func(t *TPA) error) (*TPA, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*TPA, error)
}

type PolicyRepository interface {
	Create(ctx context.Context, p *Policy) error
	GetByID(ctx context.Context, id string) (*Policy, error)
	Update(ctx context.Context, id string, fn func(p *Policy) error) (*Policy, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f PolicyFilter) ([]*Policy, error)
}

type ClaimRepository interface {
	Create(ctx context.Context, c *Claim) error
	GetByID(ctx context.Context, id string) (*Claim, error)
	// Update applies fn to the stored claim and saves the result.
	Update(ctx context.Context, id string, fn func(c *Claim) error) (*Claim, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f ClaimFilter) ([]*Claim, error)
}

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id string) (*Bill, error)
	Update(ctx context.Context, id string, fn func(b *Bill) error) (*Bill, error)
	List(ctx context.Context, tpaID string) ([]*Bill, error)
}
