package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Collection is a typed view of the JSON array stored under one key.
type Collection[T any] struct {
	s    Store
	key  string
	idOf func(T) string
}

func NewCollection[T any](s Store, key string, idOf func(T) string) *Collection[T] {
	return &Collection[T]{s: s, key: key, idOf: idOf}
}

func (c *Collection[T]) Key() string { return c.key }

func (c *Collection[T]) load(ctx context.Context) ([]T, int64, error) {
	rec, err := c.s.Get(ctx, c.key)
	if err != nil {
		return nil, 0, err
	}
	data := bytes.TrimSpace(rec.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, rec.Version, nil
	}

	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, 0, fmt.Errorf("%w: %s: %v", ErrCorrupt, c.key, err)
	}
	return items, rec.Version, nil
}

// All returns every item. A key that was never written yields an empty
// slice; unreadable data yields ErrCorrupt.
func (c *Collection[T]) All(ctx context.Context) ([]T, error) {
	items, _, err := c.load(ctx)
	return items, err
}

// Mutate is a read-modify-write of the whole array. It runs inside Atomic,
// joining the caller's transaction when there is one.
func (c *Collection[T]) Mutate(ctx context.Context, fn func(items []T) ([]T, error)) error {
	return c.s.Atomic(ctx, func(ctx context.Context) error {
		items, version, err := c.load(ctx)
		if err != nil {
			return err
		}
		out, err := fn(items)
		if err != nil {
			return err
		}
		if out == nil {
			out = []T{}
		}
		data, err := json.Marshal(out)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.key, err)
		}
		_, err = c.s.Put(ctx, c.key, data, version)
		return err
	})
}

// Replace overwrites the whole array.
func (c *Collection[T]) Replace(ctx context.Context, items []T) error {
	return c.Mutate(ctx, func([]T) ([]T, error) {
		return items, nil
	})
}

func (c *Collection[T]) index(items []T, id string) int {
	for i, it := range items {
		if c.idOf(it) == id {
			return i
		}
	}
	return -1
}

func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var zero T
	items, err := c.All(ctx)
	if err != nil {
		return zero, err
	}
	if i := c.index(items, id); i >= 0 {
		return items[i], nil
	}
	return zero, fmt.Errorf("%w: %s %s", ErrNotFound, c.key, id)
}

// Insert appends item. Ids must be unique within the key.
func (c *Collection[T]) Insert(ctx context.Context, item T) error {
	return c.Mutate(ctx, func(items []T) ([]T, error) {
		if c.index(items, c.idOf(item)) >= 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicate, c.key, c.idOf(item))
		}
		return append(items, item), nil
	})
}

// Update applies fn to the item with the given id and returns the result.
func (c *Collection[T]) Update(ctx context.Context, id string, fn func(item *T) error) (T, error) {
	var updated T
	err := c.Mutate(ctx, func(items []T) ([]T, error) {
		i := c.index(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, c.key, id)
		}
		if err := fn(&items[i]); err != nil {
			return nil, err
		}
		updated = items[i]
		return items, nil
	})
	return updated, err
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.Mutate(ctx, func(items []T) ([]T, error) {
		i := c.index(items, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, c.key, id)
		}
		return append(items[:i], items[i+1:]...), nil
	})
}

// Filter returns the items for which keep is true, in stored order.
func Filter[T any](items []T, keep func(T) bool) []T {
	out := make([]T, 0, len(items))
	for _, it := range items {
		if keep(it) {
			out = append(out, it)
		}
	}
	return out
}
