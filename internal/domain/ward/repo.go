package ward

import "context"

type RoomRepository interface {
	Create(ctx context.Context, r *Room) error
	GetByID(ctx context.Context, id string) (*Room, error)
	Update(ctx context.Context, id string, fn func(r *Room) error) (*Room, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f RoomFilter) ([]*Room, error)
	// Seed stores rooms only when no room has been saved yet and reports
	// whether it did.
	Seed(ctx context.Context, rooms []Room) (bool, error)
}

type AdmissionRepository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id string) (*Admission, error)
	Update(ctx context.Context, id string, fn func(a *Admission) error) (*Admission, error)
	List(ctx context.Context, f AdmissionFilter) ([]*Admission, error)
}
