package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStorage struct {
	mu        sync.Mutex
	objects   map[string][]byte
	uploadErr error
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: make(map[string][]byte)}
}

func (s *fakeObjectStorage) Upload(_ context.Context, path string, data []byte, contentType string) (UploadResult, error) {
	if s.uploadErr != nil {
		return UploadResult{}, s.uploadErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[path] = data
	return UploadResult{Path: path, PublicURL: s.PublicURL(path), Size: int64(len(data)), ContentType: contentType}, nil
}

func (s *fakeObjectStorage) PublicURL(path string) string {
	return "https://bucket.test/" + path
}

func (s *fakeObjectStorage) SignedURL(_ context.Context, path string, _ time.Duration) (string, error) {
	return s.PublicURL(path) + "?token=t", nil
}

func (s *fakeObjectStorage) Delete(_ context.Context, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, path)
	return nil
}

func (s *fakeObjectStorage) List(_ context.Context, prefix string) ([]ObjectEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := make([]ObjectEntry, 0)
	for k, v := range s.objects {
		if strings.HasPrefix(k, prefix) {
			entries = append(entries, ObjectEntry{Path: k, PublicURL: s.PublicURL(k), Size: int64(len(v))})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	return entries, nil
}

func TestImageLibrary_Upload(t *testing.T) {
	storage := newFakeObjectStorage()
	lib := NewImageLibrary(storage, 1024, nil)
	lib.now = func() time.Time { return time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	t.Run("stores under folder/year/month with a slug", func(t *testing.T) {
		res, err := lib.Upload(ctx, UploadImageInput{
			Filename:    "Arduino UNO R3 (front).JPG",
			ContentType: "image/jpeg; charset=binary",
			Data:        []byte{0xff, 0xd8, 0xff},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.Path, "products/2024/03/"), res.Path)
		assert.True(t, strings.HasSuffix(res.Path, "-arduino-uno-r3-front.jpg"), res.Path)
		assert.Equal(t, "https://bucket.test/"+res.Path, res.PublicURL)
		assert.Equal(t, "image/jpeg", res.ContentType)
	})

	t.Run("custom folder", func(t *testing.T) {
		res, err := lib.Upload(ctx, UploadImageInput{
			Filename: "x.png", ContentType: "image/png", Folder: "/banners/", Data: []byte{1},
		})
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(res.Path, "banners/2024/03/"))
		assert.True(t, strings.HasSuffix(res.Path, ".png"))
	})

	tests := []struct {
		name string
		in   UploadImageInput
		want error
	}{
		{"svg rejected", UploadImageInput{Filename: "a.svg", ContentType: "image/svg+xml", Data: []byte("<svg/>")}, ErrImageTypeNotAllowed},
		{"empty", UploadImageInput{Filename: "a.png", ContentType: "image/png"}, ErrImageEmpty},
		{"too large", UploadImageInput{Filename: "a.png", ContentType: "image/png", Data: make([]byte, 2048)}, ErrImageTooLarge},
		{"folder escape", UploadImageInput{Filename: "a.png", ContentType: "image/png", Folder: "../secrets", Data: []byte{1}}, ErrInvalidImagePath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := lib.Upload(ctx, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	t.Run("storage failure is wrapped", func(t *testing.T) {
		storage.uploadErr = errors.New("quota exceeded")
		defer func() { storage.uploadErr = nil }()
		_, err := lib.Upload(ctx, UploadImageInput{Filename: "a.gif", ContentType: "image/gif", Data: []byte{1}})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quota exceeded")
	})
}

func TestImageLibrary_ListAndDelete(t *testing.T) {
	storage := newFakeObjectStorage()
	lib := NewImageLibrary(storage, 0, nil)
	ctx := context.Background()

	a, err := lib.Upload(ctx, UploadImageInput{Filename: "a.webp", ContentType: "image/webp", Data: []byte{1}})
	require.NoError(t, err)
	_, err = lib.Upload(ctx, UploadImageInput{Filename: "b.webp", ContentType: "image/webp", Folder: "banners", Data: []byte{1}})
	require.NoError(t, err)

	entries, err := lib.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.Path, entries[0].Path)

	assert.ErrorIs(t, lib.Delete(ctx, "../etc/passwd"), ErrInvalidImagePath)
	assert.ErrorIs(t, lib.Delete(ctx, "  "), ErrInvalidImagePath)

	require.NoError(t, lib.Delete(ctx, "/"+a.Path))
	entries, err = lib.List(ctx, "products")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "hc-sr04-sensor", slugify("HC-SR04 Sensor!!"))
	assert.Equal(t, "", slugify("***"))
	assert.Len(t, slugify(strings.Repeat("ab ", 40)), 47)
}
