package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"
)

// Memory is an in-process Store used for local runs and tests. Its signed
// URLs use the memory:// scheme and are never dereferenced.
type Memory struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string][]byte
	types   map[string]string
	now     func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty Memory store for bucket.
func NewMemory(bucket string) *Memory {
	return &Memory{
		bucket:  bucket,
		objects: map[string][]byte{},
		types:   map[string]string{},
		now:     time.Now,
	}
}

// Bucket implements Store.
func (m *Memory) Bucket() string { return m.bucket }

// Put implements Store.
func (m *Memory) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	m.types[key] = contentType
	return nil
}

// SignedURL implements Store. Keys that were never written still get a
// link, because page images are written by the external rasterizer.
func (m *Memory) SignedURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	u := url.URL{
		Scheme:   "memory",
		Host:     m.bucket,
		Path:     "/" + key,
		RawQuery: url.Values{"expires": {m.now().Add(ttl).UTC().Format(time.RFC3339)}}.Encode(),
	}
	return u.String(), nil
}

// Get returns a copy of the object stored under key.
func (m *Memory) Get(key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrObjectNotFound, key)
	}
	return bytes.Clone(data), m.types[key], nil
}
