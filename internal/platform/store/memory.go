package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Memory keeps records in a map. Atomic holds the store lock for the whole
// callback, stages writes in a private overlay and applies them in one step.
type Memory struct {
	mu      sync.Mutex
	records map[string]Record
	closed  bool
	now     func() time.Time

	// persist, when set, must durably save the full record set before the
	// commit becomes visible. The file backend uses it.
	persist func(records map[string]Record) error
}

type memTxKey struct{}

type memTx struct {
	owner  *Memory
	staged map[string]Record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record), now: time.Now}
}

func (m *Memory) txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	if tx != nil && tx.owner == m {
		return tx
	}
	return nil
}

func (m *Memory) Get(ctx context.Context, key string) (Record, error) {
	if tx := m.txFrom(ctx); tx != nil {
		return tx.get(key), nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return Record{}, ErrClosed
	}
	return m.lookupLocked(key), nil
}

func (m *Memory) lookupLocked(key string) Record {
	rec, ok := m.records[key]
	if !ok {
		return Record{Key: key}
	}
	rec.Data = cloneRaw(rec.Data)
	return rec
}

func (m *Memory) Put(ctx context.Context, key string, data json.RawMessage, expectVersion int64) (int64, error) {
	if tx := m.txFrom(ctx); tx != nil {
		return tx.put(key, data, expectVersion)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}

	cur := m.lookupLocked(key)
	if cur.Version != expectVersion {
		return 0, fmt.Errorf("%w: %s at version %d, expected %d", ErrVersionConflict, key, cur.Version, expectVersion)
	}
	next := Record{Key: key, Data: cloneRaw(data), Version: cur.Version + 1, UpdatedAt: m.now().UTC()}
	if err := m.commitLocked(map[string]Record{key: next}); err != nil {
		return 0, err
	}
	return next.Version, nil
}

// Atomic runs fn with a staging transaction. Nested calls join the
// enclosing transaction.
func (m *Memory) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.txFrom(ctx) != nil {
		return fn(ctx)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	tx := &memTx{owner: m, staged: make(map[string]Record)}
	if err := fn(context.WithValue(ctx, memTxKey{}, tx)); err != nil {
		return err
	}
	return m.commitLocked(tx.staged)
}

func (m *Memory) commitLocked(staged map[string]Record) error {
	if len(staged) == 0 {
		return nil
	}
	if m.persist != nil {
		next := make(map[string]Record, len(m.records)+len(staged))
		for k, v := range m.records {
			next[k] = v
		}
		for k, v := range staged {
			next[k] = v
		}
		if err := m.persist(next); err != nil {
			return fmt.Errorf("persist records: %w", err)
		}
	}
	for k, v := range staged {
		m.records[k] = v
	}
	return nil
}

func (m *Memory) Keys(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.records))
	for k := range m.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func (m *Memory) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (tx *memTx) get(key string) Record {
	if rec, ok := tx.staged[key]; ok {
		rec.Data = cloneRaw(rec.Data)
		return rec
	}
	return tx.owner.lookupLocked(key)
}

func (tx *memTx) put(key string, data json.RawMessage, expectVersion int64) (int64, error) {
	cur := tx.get(key)
	if cur.Version != expectVersion {
		return 0, fmt.Errorf("%w: %s at version %d, expected %d", ErrVersionConflict, key, cur.Version, expectVersion)
	}
	next := Record{Key: key, Data: cloneRaw(data), Version: cur.Version + 1, UpdatedAt: tx.owner.now().UTC()}
	tx.staged[key] = next
	return next.Version, nil
}
