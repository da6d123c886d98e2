package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

const fileFormatVersion = 1

type fileSnapshot struct {
	Format  int               `json:"format"`
	Records map[string]Record `json:"records"`
}

// File is a Memory store that writes a JSON snapshot on every commit. The
// snapshot is written to a temporary file and renamed into place.
type File struct {
	*Memory
	path string
}

// OpenFile loads path if it exists. An unreadable snapshot is reported as
// ErrCorrupt rather than treated as empty.
func OpenFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	f := &File{Memory: NewMemory(), path: path}
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read store file %s: %w", path, err)
	default:
		var snap fileSnapshot
		if err := json.Unmarshal(raw, &snap); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
		}
		if snap.Format != fileFormatVersion {
			return nil, fmt.Errorf("%w: %s: unsupported format %d", ErrCorrupt, path, snap.Format)
		}
		for k, rec := range snap.Records {
			rec.Key = k
			f.records[k] = rec
		}
	}

	f.persist = f.write
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) write(records map[string]Record) error {
	data, err := json.MarshalIndent(fileSnapshot{Format: fileFormatVersion, Records: records}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".hms-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	return os.Rename(tmp.Name(), f.path)
}

func (f *File) Ping(ctx context.Context) error {
	if err := f.Memory.Ping(ctx); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(f.path))
	return err
}
