package catalog

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AllowedImageTypes is the whitelist of upload content types.
// SVG is excluded because it can carry script.
var AllowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// DefaultImageFolder is the storage prefix used when an upload names none
const DefaultImageFolder = "products"

var (
	// ErrImageTypeNotAllowed is returned for content types outside AllowedImageTypes
	ErrImageTypeNotAllowed = shared.NewDomainError("INVALID_IMAGE_TYPE", "Only JPEG, PNG, GIF and WebP images can be uploaded")
	// ErrImageTooLarge is returned when an upload exceeds the configured size
	ErrImageTooLarge = shared.NewDomainError("IMAGE_TOO_LARGE", "Image exceeds the maximum upload size")
	// ErrImageEmpty is returned for zero-byte uploads
	ErrImageEmpty = shared.NewDomainError("IMAGE_EMPTY", "Image file is empty")
	// ErrInvalidImagePath is returned for paths that escape the image folder
	ErrInvalidImagePath = shared.NewDomainError("INVALID_IMAGE_PATH", "Invalid image path")
)

// UploadResult describes a stored object
type UploadResult struct {
	Path        string `json:"path"`
	PublicURL   string `json:"public_url"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// ObjectEntry is one object in a storage listing
type ObjectEntry struct {
	Path         string    `json:"path"`
	PublicURL    string    `json:"public_url"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
}

// ObjectStorage is the object store holding product images.
// It is implemented by the infrastructure layer (S3-compatible or in-memory).
type ObjectStorage interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (UploadResult, error)
	PublicURL(path string) string
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, path string) error
	List(ctx context.Context, prefix string) ([]ObjectEntry, error)
}

// UploadImageInput is an admin image upload
type UploadImageInput struct {
	Filename    string
	ContentType string
	Folder      string
	Data        []byte
}

// ImageLibrary manages product images in object storage for the admin surface
type ImageLibrary struct {
	storage ObjectStorage
	maxSize int64
	logger  *zap.Logger
	now     func() time.Time
}

// NewImageLibrary creates an ImageLibrary. maxSize <= 0 disables the size check.
func NewImageLibrary(storage ObjectStorage, maxSize int64, logger *zap.Logger) *ImageLibrary {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageLibrary{
		storage: storage,
		maxSize: maxSize,
		logger:  logger,
		now:     time.Now,
	}
}

// Upload validates and stores an image, returning its public URL
func (l *ImageLibrary) Upload(ctx context.Context, in UploadImageInput) (UploadResult, error) {
	contentType := strings.ToLower(strings.TrimSpace(in.ContentType))
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	ext, ok := AllowedImageTypes[contentType]
	if !ok {
		return UploadResult{}, ErrImageTypeNotAllowed
	}
	if len(in.Data) == 0 {
		return UploadResult{}, ErrImageEmpty
	}
	if l.maxSize > 0 && int64(len(in.Data)) > l.maxSize {
		return UploadResult{}, ErrImageTooLarge
	}

	folder, err := cleanFolder(in.Folder)
	if err != nil {
		return UploadResult{}, err
	}

	key := l.objectKey(folder, in.Filename, ext)
	result, err := l.storage.Upload(ctx, key, in.Data, contentType)
	if err != nil {
		return UploadResult{}, fmt.Errorf("failed to upload image: %w", err)
	}

	l.logger.Info("Product image uploaded",
		zap.String("path", result.Path),
		zap.Int("size", len(in.Data)),
	)
	return result, nil
}

// List returns the images stored under folder
func (l *ImageLibrary) List(ctx context.Context, folder string) ([]ObjectEntry, error) {
	folder, err := cleanFolder(folder)
	if err != nil {
		return nil, err
	}
	entries, err := l.storage.List(ctx, folder+"/")
	if err != nil {
		return nil, fmt.Errorf("failed to list images: %w", err)
	}
	return entries, nil
}

// Delete removes a stored image
func (l *ImageLibrary) Delete(ctx context.Context, objectPath string) error {
	objectPath = strings.TrimPrefix(strings.TrimSpace(objectPath), "/")
	if objectPath == "" || path.Clean(objectPath) != objectPath || strings.HasPrefix(objectPath, "..") {
		return ErrInvalidImagePath
	}
	if err := l.storage.Delete(ctx, objectPath); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	l.logger.Info("Product image deleted", zap.String("path", objectPath))
	return nil
}

// objectKey builds <folder>/<yyyy>/<mm>/<uuid>-<name><ext>
func (l *ImageLibrary) objectKey(folder, filename, ext string) string {
	now := l.now().UTC()
	base := slugify(strings.TrimSuffix(path.Base(filename), path.Ext(filename)))
	name := uuid.New().String()
	if base != "" {
		name += "-" + base
	}
	return fmt.Sprintf("%s/%04d/%02d/%s%s", folder, now.Year(), int(now.Month()), name, ext)
}

func cleanFolder(folder string) (string, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		return DefaultImageFolder, nil
	}
	if path.Clean(folder) != folder || strings.HasPrefix(folder, "..") {
		return "", ErrInvalidImagePath
	}
	return folder, nil
}

func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
			continue
		}
		dash = true
	}
	out := b.String()
	if len(out) > 48 {
		out = strings.TrimRight(out[:48], "-")
	}
	return out
}
