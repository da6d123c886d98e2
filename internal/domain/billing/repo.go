package billing

import "context"

type BillRepository interface {
	Create(ctx context.Context, b *Bill) error
	GetByID(ctx context.Context, id string) (*Bill, error)
	// Update applies fn to the stored bill and saves the result.
	Update(ctx context.Context, id string, fn func(b *Bill) error) (*Bill, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]*Bill, error)
}
