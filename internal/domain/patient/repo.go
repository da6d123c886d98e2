package patient

import "context"

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id string) (*Patient, error)
	Update(ctx context.Context, id string, fn func(p *Patient) error) (*Patient, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]*Patient, error)
}
