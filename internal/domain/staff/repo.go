package staff

import "context"

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id string) (*Doctor, error)
	Update(ctx context.Context, id string, fn func(d *Doctor) error) (*Doctor, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f DoctorFilter) ([]*Doctor, error)
}

type MemberRepository interface {
	Create(ctx context.Context, m *Member) error
	GetByID(ctx context.Context, id string) (*Member, error)
	Update(ctx context.Context, id string, fn func(m *Member) error) (*Member, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f MemberFilter) ([]*Member, error)
}
