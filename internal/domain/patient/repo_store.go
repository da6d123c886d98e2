package patient

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type patientRepoStore struct {
	patients *store.Collection[Patient]
}

// NewPatientRepoStore keeps patients under hms_patients_v1.
func NewPatientRepoStore(s store.Store) PatientRepository {
	return &patientRepoStore{patients: store.NewCollection(s, store.KeyPatients, func(p Patient) string { return p.ID })}
}

func (r *patientRepoStore) Create(ctx context.Context, p *Patient) error {
	return r.patients.Insert(ctx, *p)
}

func (r *patientRepoStore) GetByID(ctx context.Context, id string) (*Patient, error) {
	p, err := r.patients.Get(ctx, id)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &p, nil
}

func (r *patientRepoStore) Update(ctx context.Context, id string, fn func(p *Patient) error) (*Patient, error) {
	p, err := r.patients.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(id, err)
	}
	return &p, nil
}

func (r *patientRepoStore) Delete(ctx context.Context, id string) error {
	return notFound(id, r.patients.Delete(ctx, id))
}

// List returns matching patients, most recently registered first.
func (r *patientRepoStore) List(ctx context.Context, f Filter) ([]*Patient, error) {
	all, err := r.patients.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Patient
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RegistrationDate.After(out[j].RegistrationDate) })
	return out, nil
}

func notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}
