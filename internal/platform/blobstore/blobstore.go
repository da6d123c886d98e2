// Package blobstore keeps binary documents: claim attachments and rendered
// bill invoices. Objects are addressed by caller-chosen keys such as
// "claims/CLM-1/DOC-2" or "invoices/BILL-3.pdf".
package blobstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var (
	ErrNotFound           = errors.New("blob not found")
	ErrTooLarge           = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("content type is not allowed")
	ErrInvalidKey         = errors.New("invalid blob key")
)

// MaxSize is the largest accepted object (10 MB).
const MaxSize = 10 << 20

// AllowedContentTypes are the document types accepted for claim uploads.
var AllowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/png":       true,
	"image/jpeg":      true,
	"text/plain":      true,
	"text/html":       true,
}

type Object struct {
	Key         string    `json:"key"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (*Object, error)
	Get(ctx context.Context, key string) ([]byte, *Object, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]Object, error)
}

// Validate checks a key, content type and size before upload.
func Validate(key, contentType string, size int) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	if !AllowedContentTypes[contentType] {
		return fmt.Errorf("%w: %s", ErrInvalidContentType, contentType)
	}
	if size > MaxSize {
		return ErrTooLarge
	}
	return nil
}

func describe(key, contentType string, data []byte) *Object {
	sum := sha256.Sum256(data)
	return &Object{
		Key:         key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      hex.EncodeToString(sum[:]),
		CreatedAt:   time.Now().UTC(),
	}
}

type memBlob struct {
	obj  Object
	data []byte
}

// Memory is a Store for development and tests.
type Memory struct {
	mu    sync.RWMutex
	blobs map[string]memBlob
}

func NewMemory() *Memory {
	return &Memory{blobs: make(map[string]memBlob)}
}

func (m *Memory) Put(_ context.Context, key, contentType string, data []byte) (*Object, error) {
	if err := Validate(key, contentType, len(data)); err != nil {
		return nil, err
	}
	obj := describe(key, contentType, data)
	cp := append([]byte(nil), data...)

	m.mu.Lock()
	m.blobs[key] = memBlob{obj: *obj, data: cp}
	m.mu.Unlock()
	return obj, nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, *Object, error) {
	m.mu.RLock()
	b, ok := m.blobs[key]
	m.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	obj := b.obj
	return append([]byte(nil), b.data...), &obj, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.blobs[key]; !ok {
		return ErrNotFound
	}
	delete(m.blobs, key)
	return nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Object, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Object
	for k, b := range m.blobs {
		if strings.HasPrefix(k, prefix) {
			out = append(out, b.obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
