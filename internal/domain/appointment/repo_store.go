package appointment

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type repoStore struct {
	appointments *store.Collection[Appointment]
}

// NewRepoStore keeps appointments under hms_appointments_v1.
func NewRepoStore(s store.Store) Repository {
	return &repoStore{appointments: store.NewCollection(s, store.KeyAppointments, func(a Appointment) string { return a.ID })}
}

func (r *repoStore) Create(ctx context.Context, a *Appointment) error {
	return r.appointments.Insert(ctx, *a)
}

func (r *repoStore) GetByID(ctx context.Context, id string) (*Appointment, error) {
	a, err := r.appointments.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &a, nil
}

func (r *repoStore) Update(ctx context.Context, id string, fn func(a *Appointment) error) (*Appointment, error) {
	a, err := r.appointments.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &a, nil
}

func (r *repoStore) Delete(ctx context.Context, id string) error {
	return notFound(id, r.appointments.Delete(ctx, id))
}

// List returns matching appointments in calendar order.
func (r *repoStore) List(ctx context.Context, f Filter) ([]*Appointment, error) {
	all, err := r.appointments.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Appointment
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
