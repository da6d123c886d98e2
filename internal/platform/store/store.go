// Package store persists the hospital's record arrays under fixed keys.
//
// Every key holds one JSON array plus a version number. Writes are
// compare-and-swap against that version, and Atomic groups several writes
// so they commit together or not at all.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("record not found")
	ErrDuplicate       = errors.New("record already exists")
	ErrVersionConflict = errors.New("record version conflict")
	ErrCorrupt         = errors.New("corrupted record data")
	ErrClosed          = errors.New("store closed")
)

// Record is the stored value of one key. A key that was never written has
// Version 0 and no Data.
type Record struct {
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Store is implemented by the memory, file, postgres and mysql backends.
//
// Inside Atomic, callers must pass the context handed to fn to every Get and
// Put; that context carries the transaction.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	// Put writes data if the key is still at expectVersion and returns the
	// new version. It fails with ErrVersionConflict otherwise.
	Put(ctx context.Context, key string, data json.RawMessage, expectVersion int64) (int64, error)
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
	Keys(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
	Close() error
}

// Transactor is the part of Store that services use to group writes.
type Transactor interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}
