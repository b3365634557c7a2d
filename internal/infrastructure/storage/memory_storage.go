package storage

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/application/catalog"
	"github.com/google/uuid"
)

// DefaultMemoryBaseURL is the public prefix used by NewMemoryObjectStorage
const DefaultMemoryBaseURL = "http://localhost:8080/media"

type memoryObject struct {
	data        []byte
	contentType string
	modified    time.Time
}

// MemoryObjectStorage keeps objects in process memory. It backs development
// runs without a bucket and the tests of everything that consumes storage.
type MemoryObjectStorage struct {
	BaseURL string

	mu      sync.RWMutex
	objects map[string]memoryObject
	now     func() time.Time
}

// Ensure MemoryObjectStorage implements catalog.ObjectStorage
var _ catalog.ObjectStorage = (*MemoryObjectStorage)(nil)

// NewMemoryObjectStorage creates an empty in-memory store
func NewMemoryObjectStorage(baseURL string) *MemoryObjectStorage {
	if baseURL == "" {
		baseURL = DefaultMemoryBaseURL
	}
	return &MemoryObjectStorage{
		BaseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

// Upload stores a copy of data at path
func (s *MemoryObjectStorage) Upload(_ context.Context, path string, data []byte, contentType string) (catalog.UploadResult, error) {
	key, err := cleanKey(path)
	if err != nil {
		return catalog.UploadResult{}, err
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{
		data:        append([]byte(nil), data...),
		contentType: contentType,
		modified:    s.now(),
	}
	s.mu.Unlock()

	return catalog.UploadResult{
		Path:        key,
		PublicURL:   s.PublicURL(key),
		Size:        int64(len(data)),
		ContentType: contentType,
	}, nil
}

// PublicURL returns BaseURL/path
func (s *MemoryObjectStorage) PublicURL(path string) string {
	return s.BaseURL + "/" + escapeKey(strings.TrimPrefix(path, "/"))
}

// SignedURL returns the public URL with a random token and expiry attached
func (s *MemoryObjectStorage) SignedURL(_ context.Context, path string, ttl time.Duration) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	expires := s.now().Add(ttl).Unix()
	return s.PublicURL(key) + "?token=" + uuid.NewString() + "&expires=" + strconv.FormatInt(expires, 10), nil
}

// Delete removes path; deleting a missing object is not an error
func (s *MemoryObjectStorage) Delete(_ context.Context, path string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

// List returns objects under prefix sorted by key
func (s *MemoryObjectStorage) List(_ context.Context, prefix string) ([]catalog.ObjectEntry, error) {
	prefix = strings.TrimPrefix(prefix, "/")
	s.mu.RLock()
	entries := make([]catalog.ObjectEntry, 0, len(s.objects))
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entries = append(entries, catalog.ObjectEntry{
			Path:         key,
			PublicURL:    s.PublicURL(key),
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

// Get returns a copy of the object at path
func (s *MemoryObjectStorage) Get(_ context.Context, path string) ([]byte, error) {
	key, err := cleanKey(path)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// ObjectKey extracts the key from a URL under BaseURL
func (s *MemoryObjectStorage) ObjectKey(rawURL string) (string, bool) {
	return objectKeyFromURL(s.BaseURL, rawURL)
}
