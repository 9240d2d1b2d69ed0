package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"charityfeed/internal/observability"

	"github.com/pkg/errors"
)

// ErrObjectNotFound is returned by MemoryStore.Get for unknown keys.
var ErrObjectNotFound = errors.New("object not found")

// MemoryStore is an in-process ObjectStore for development and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	base    string
	buckets map[string]map[string]memoryObject

	// FailUploads makes every Upload fail; used to exercise upload error paths.
	FailUploads bool
}

type memoryObject struct {
	data        []byte
	contentType string
}

// NewMemoryStore returns an empty store whose URLs start with base.
func NewMemoryStore(base string) *MemoryStore {
	if base == "" {
		base = "http://localhost:8375/media"
	}
	return &MemoryStore{
		base:    strings.TrimRight(base, "/"),
		buckets: make(map[string]map[string]memoryObject),
	}
}

// PublicBase is the prefix every public URL starts with.
func (m *MemoryStore) PublicBase() string {
	return m.base
}

func (m *MemoryStore) Ping(context.Context) error {
	return nil
}

func (m *MemoryStore) EnsureBuckets(_ context.Context, buckets ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, b := range buckets {
		if _, ok := m.buckets[b]; !ok {
			m.buckets[b] = make(map[string]memoryObject)
		}
	}
	return nil
}

func (m *MemoryStore) Upload(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.FailUploads {
		observability.MediaUploads.WithLabelValues(bucket, "error").Inc()
		return nil, errors.Errorf("bucket %s rejected %s", bucket, key)
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read upload body")
	}
	if size >= 0 && int64(len(data)) != size {
		return nil, fmt.Errorf("size mismatch for %s: declared %d, read %d", key, size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	objects, ok := m.buckets[bucket]
	if !ok {
		return nil, errors.Errorf("bucket %s does not exist", bucket)
	}
	objects[key] = memoryObject{data: data, contentType: contentType}
	observability.MediaUploads.WithLabelValues(bucket, "ok").Inc()

	return &Object{
		Bucket:      bucket,
		Key:         key,
		URL:         m.PublicURL(bucket, key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

func (m *MemoryStore) PublicURL(bucket, key string) string {
	return joinPublicURL(m.base, bucket, key)
}

func (m *MemoryStore) Delete(_ context.Context, bucket, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if objects, ok := m.buckets[bucket]; ok {
		delete(objects, key)
	}
	return nil
}

// Get returns a stored object's bytes and content type.
func (m *MemoryStore) Get(bucket, key string) ([]byte, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.buckets[bucket][key]
	if !ok {
		return nil, "", ErrObjectNotFound
	}
	return bytes.Clone(obj.data), obj.contentType, nil
}

// Len counts objects in bucket.
func (m *MemoryStore) Len(bucket string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.buckets[bucket])
}
