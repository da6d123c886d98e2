package lab

import "context"

type AssignmentRepository interface {
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id string) (*Assignment, error)
	Update(ctx context.Context, id string, fn func(a *Assignment) error) (*Assignment, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f Filter) ([]*Assignment, error)
}
