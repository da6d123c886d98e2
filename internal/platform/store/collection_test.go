package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type item struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newItems(s Store) *Collection[item] {
	return NewCollection(s, KeyDoctors, func(i item) string { return i.ID })
}

func TestCollection_CRUD(t *testing.T) {
	ctx := context.Background()
	c := newItems(NewMemory())

	if err := c.Insert(ctx, item{ID: "D1", Name: "Dr. Rao"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := c.Insert(ctx, item{ID: "D1", Name: "dup"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := c.Get(ctx, "D1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "Dr. Rao" {
		t.Errorf("expected Dr. Rao, got %s", got.Name)
	}

	updated, err := c.Update(ctx, "D1", func(it *item) error {
		it.Name = "Dr. Iyer"
		return nil
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Name != "Dr. Iyer" {
		t.Errorf("expected updated name, got %s", updated.Name)
	}

	if err := c.Delete(ctx, "D1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "D1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := c.Delete(ctx, "D1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCollection_EmptyVersusCorrupt(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	c := newItems(m)

	items, err := c.All(ctx)
	if err != nil {
		t.Fatalf("expected no error for unwritten key, got %v", err)
	}
	if len(items) != 0 {
		t.Errorf("expected empty list, got %d items", len(items))
	}

	m.Put(ctx, KeyDoctors, json.RawMessage(`{"broken":`), 0)
	if _, err := c.All(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}

func TestCollection_UpdateErrorDiscardsChange(t *testing.T) {
	ctx := context.Background()
	c := newItems(NewMemory())
	c.Insert(ctx, item{ID: "D1", Name: "A"})

	_, err := c.Update(ctx, "D1", func(it *item) error {
		it.Name = "B"
		return errors.New("rejected")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	got, _ := c.Get(ctx, "D1")
	if got.Name != "A" {
		t.Errorf("expected name A, got %s", got.Name)
	}
}

func TestCollection_Replace(t *testing.T) {
	ctx := context.Background()
	c := newItems(NewMemory())
	c.Insert(ctx, item{ID: "a"})

	if err := c.Replace(ctx, []item{{ID: "x"}, {ID: "y"}}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	all, _ := c.All(ctx)
	if len(all) != 2 || all[0].ID != "x" {
		t.Errorf("unexpected items after replace %v", all)
	}
}

func TestFilter(t *testing.T) {
	got := Filter([]int{1, 2, 3, 4}, func(i int) bool { return i%2 == 0 })
	if len(got) != 2 || got[0] != 2 || got[1] != 4 {
		t.Errorf("unexpected filter result %v", got)
	}
}
