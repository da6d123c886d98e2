package ward

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hms/hms/internal/platform/store"
)

type roomRepoStore struct {
	rooms *store.Collection[Room]
}

func NewRoomRepoStore(s store.Store) RoomRepository {
	return &roomRepoStore{rooms: store.NewCollection(s, store.KeyWardRooms, func(r Room) string { return r.ID })}
}

func (r *roomRepoStore) Create(ctx context.Context, room *Room) error {
	return r.rooms.Insert(ctx, *room)
}

func (r *roomRepoStore) GetByID(ctx context.Context, id string) (*Room, error) {
	room, err := r.rooms.Get(ctx, id)
	if err != nil {
		return nil, wrapNotFound(ErrRoomNotFound, id, err)
	}
	return &room, nil
}

func (r *roomRepoStore) Update(ctx context.Context, id string, fn func(*Room) error) (*Room, error) {
	room, err := r.rooms.Update(ctx, id, fn)
	if err != nil {
		return nil, wrapNotFound(ErrRoomNotFound, id, err)
	}
	return &room, nil
}

func (r *roomRepoStore) Delete(ctx context.Context, id string) error {
	return wrapNotFound(ErrRoomNotFound, id, r.rooms.Delete(ctx, id))
}

// List returns rooms ordered by room number.
func (r *roomRepoStore) List(ctx context.Context, f RoomFilter) ([]*Room, error) {
	all, err := r.rooms.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Room
	for i := range all {
		if f.match(all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RoomNumber < out[j].RoomNumber })
	return out, nil
}

func (r *roomRepoStore) Seed(ctx context.Context, rooms []Room) (bool, error) {
	seeded := false
	err := r.rooms.Mutate(ctx, func(existing []Room) ([]Room, error) {
		if len(existing) > 0 {
			return existing, nil
		}
		seeded = true
		return rooms, nil
	})
	return seeded, err
}

type admissionRepoStore struct {
	admissions *store.Collection[Admission]
}

func NewAdmissionRepoStore(s store.Store) AdmissionRepository {
	return &admissionRepoStore{admissions: store.NewCollection(s, store.KeyAdmissions, func(a Admission) string { return a.ID })}
}

func (r *admissionRepoStore) Create(ctx context.Context, a *Admission) error {
	return r.admissions.Insert(ctx, *a)
}

func (r *admissionRepoStore) GetByID(ctx context.Context, id string) (*Admission, error) {
	a, err := r.admissions.Get(ctx, id)
	if err != nil {
		return nil, wrapNotFound(ErrAdmissionNotFound, id, err)
	}
	return &a, nil
}

func (r *admissionRepoStore) Update(ctx context.Context, id string, fn func(*Admission) error) (*Admission, error) {
	a, err := r.admissions.Update(ctx, id, fn)
	if err != nil {
		return nil, wrapNotFound(ErrAdmissionNotFound, id, err)
	}
	return &a, nil
}

// List returns matching admissions, most recent first.
func (r *admissionRepoStore) List(ctx context.Context, f AdmissionFilter) ([]*Admission, error) {
	all, err := r.admissions.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []*Admission
	for i := range all {
		if f.match(all[i]) {
			out = append(out, &all[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AdmissionDate > out[j].AdmissionDate })
	return out, nil
}

func wrapNotFound(sentinel error, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", sentinel, id)
	}
	return err
}
