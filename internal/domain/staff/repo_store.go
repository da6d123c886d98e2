package staff

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type doctorRepoStore struct {
	doctors *store.Collection[Doctor]
}

// NewDoctorRepoStore keeps doctors under hms_doctors_v1.
func NewDoctorRepoStore(s store.Store) DoctorRepository {
	return &doctorRepoStore{doctors: store.NewCollection(s, store.KeyDoctors, func(d Doctor) string { return string(d.ID) })}
}

func (r *doctorRepoStore) Create(ctx context.Context, d *Doctor) error {
	return r.doctors.Insert(ctx, *d)
}

func (r *doctorRepoStore) GetByID(ctx context.Context, id string) (*Doctor, error) {
	d, err := r.doctors.Get(ctx, id)
	if err != nil {
		return nil, notFound(ErrDoctorNotFound, id, err)
	}
	return &d, nil
}

func (r *doctorRepoStore) Update(ctx context.Context, id string, fn func(d *Doctor) error) (*Doctor, error) {
	d, err := r.doctors.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(ErrDoctorNotFound, id, err)
	}
	return &d, nil
}

func (r *doctorRepoStore) Delete(ctx context.Context, id string) error {
	return notFound(ErrDoctorNotFound, id, r.doctors.Delete(ctx, id))
}

// List returns matching doctors by name.
func (r *doctorRepoStore) List(ctx context.Context, f DoctorFilter) ([]*Doctor, error) {
	all, err := r.doctors.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Doctor
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type memberRepoStore struct {
	members *store.Collection[Member]
}

// NewMemberRepoStore keeps staff members under hms_staff_v1.
func NewMemberRepoStore(s store.Store) MemberRepository {
	return &memberRepoStore{members: store.NewCollection(s, store.KeyStaff, func(m Member) string { return m.ID })}
}

func (r *memberRepoStore) Create(ctx context.Context, m *Member) error {
	return r.members.Insert(ctx, *m)
}

func (r *memberRepoStore) GetByID(ctx context.Context, id string) (*Member, error) {
	m, err := r.members.Get(ctx, id)
	if err != nil {
		return nil, notFound(ErrMemberNotFound, id, err)
	}
	return &m, nil
}

func (r *memberRepoStore) Update(ctx context.Context, id string, fn func(m *Member) error) (*Member, error) {
	m, err := r.members.Update(ctx, id, fn)
	if err != nil {
		return nil, notFound(ErrMemberNotFound, id, err)
	}
	return &m, nil
}

func (r *memberRepoStore) Delete(ctx context.Context, id string) error {
	return notFound(ErrMemberNotFound, id, r.members.Delete(ctx, id))
}

func (r *memberRepoStore) List(ctx context.Context, f MemberFilter) ([]*Member, error) {
	all, err := r.members.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Member
	for i := range all {
		if f.match(&all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func notFound(sentinel error, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}
