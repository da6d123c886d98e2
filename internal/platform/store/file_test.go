package store

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFile_PersistsAndReloads(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "hms.json")

	f, err := OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	if _, err := f.Put(ctx, KeyPatients, json.RawMessage(`[{"id":"PAT-1"}]`), 0); err != nil {
		t.Fatalf("Put: %v", err)
	}

	reopened, err := OpenFile(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	rec, err := reopened.Get(ctx, KeyPatients)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Version != 1 {
		t.Errorf("expected version 1, got %d", rec.Version)
	}
	var items []map[string]string
	json.Unmarshal(rec.Data, &items)
	if len(items) != 1 || items[0]["id"] != "PAT-1" {
		t.Errorf("unexpected data %s", rec.Data)
	}
}

func TestFile_FailedAtomicLeavesFileUntouched(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "hms.json")
	f, _ := OpenFile(path)
	f.Put(ctx, KeyBills, json.RawMessage(`[]`), 0)
	before, _ := os.ReadFile(path)

	f.Atomic(ctx, func(ctx context.Context) error {
		f.Put(ctx, KeyBills, json.RawMessage(`[{"id":"x"}]`), 1)
		return errors.New("abort")
	})

	after, _ := os.ReadFile(path)
	if string(before) != string(after) {
		t.Error("expected snapshot unchanged after rollback")
	}
}

func TestFile_CorruptSnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hms.json")
	os.WriteFile(path, []byte("{not json"), 0o644)

	if _, err := OpenFile(path); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
}
