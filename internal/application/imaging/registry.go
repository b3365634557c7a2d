package imaging

import (
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/google/uuid"
)

// DisplayTarget describes an image that is currently shown somewhere
type DisplayTarget struct {
	ProductID uuid.UUID
	SourceURL string
	Category  imaging.FallbackCategory
	Quality   imaging.Quality
	// Apply receives every new resolution of the image; may be nil
	Apply func(imaging.ResolvedImage)
}

// TrackedImage is a registered DisplayTarget plus its latest resolution
type TrackedImage struct {
	ID string

	mu       sync.RWMutex
	target   DisplayTarget
	current  imaging.ResolvedImage
	version  int64
	lastSeen time.Time
}

// Target returns a copy of the display target
func (t *TrackedImage) Target() DisplayTarget {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.target
}

// Current returns the latest resolution, zero before the first one
func (t *TrackedImage) Current() imaging.ResolvedImage {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// Request builds the resolution request for the tracked image
func (t *TrackedImage) Request(force bool) imaging.Request {
	t.mu.RLock()
	defer t.mu.RUnlock()
	req := imaging.NewRequest(t.target.SourceURL)
	req.ForceRefresh = force
	req.Version = t.version
	if t.target.Quality != "" {
		req.Quality = t.target.Quality
	}
	if t.target.Category != "" {
		req.FallbackCategory = t.target.Category
	}
	return req
}

// apply stores img and hands it to the target's callback
func (t *TrackedImage) apply(img imaging.ResolvedImage) {
	t.mu.Lock()
	t.current = img
	fn := t.target.Apply
	t.mu.Unlock()
	if fn != nil {
		fn(img)
	}
}

// retarget points the image at a new source; stale versions are ignored
func (t *TrackedImage) retarget(sourceURL string, version int64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if version > 0 && version <= t.version {
		return false
	}
	if sourceURL != "" {
		t.target.SourceURL = sourceURL
	}
	if version > 0 {
		t.version = version
	}
	return true
}

// DisplayRegistry holds the images currently on display
type DisplayRegistry struct {
	mu     sync.RWMutex
	images map[string]*TrackedImage
	order  []string
	now    func() time.Time
}

// NewDisplayRegistry creates an empty registry
func NewDisplayRegistry() *DisplayRegistry {
	return &DisplayRegistry{
		images: make(map[string]*TrackedImage),
		now:    time.Now,
	}
}

// Register adds target and returns its handle and a function removing it again
func (r *DisplayRegistry) Register(target DisplayTarget) (*TrackedImage, func()) {
	img := &TrackedImage{ID: uuid.NewString(), target: target}
	r.add(img)
	return img, func() { r.Remove(img.ID) }
}

// Track registers target under a stable key, reusing the existing handle if
// the key is already tracked. The HTTP layer uses it so repeated requests for
// the same product image do not grow the registry.
func (r *DisplayRegistry) Track(key string, target DisplayTarget) *TrackedImage {
	r.mu.Lock()
	defer r.mu.Unlock()
	if img, ok := r.images[key]; ok {
		img.mu.Lock()
		img.lastSeen = r.now()
		img.mu.Unlock()
		return img
	}
	img := &TrackedImage{ID: key, target: target, lastSeen: r.now()}
	r.images[key] = img
	r.order = append(r.order, key)
	return img
}

func (r *DisplayRegistry) add(img *TrackedImage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	img.lastSeen = r.now()
	r.images[img.ID] = img
	r.order = append(r.order, img.ID)
}

// Remove drops an image
func (r *DisplayRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.images[id]; !ok {
		return
	}
	delete(r.images, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// PruneIdle removes images not seen since before cutoff and returns how many
func (r *DisplayRegistry) PruneIdle(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.order[:0]
	removed := 0
	for _, id := range r.order {
		img := r.images[id]
		img.mu.RLock()
		idle := img.lastSeen.Before(cutoff)
		img.mu.RUnlock()
		if idle {
			delete(r.images, id)
			removed++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return removed
}

// Snapshot returns the registered images in registration order
func (r *DisplayRegistry) Snapshot() []*TrackedImage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*TrackedImage, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.images[id])
	}
	return out
}

// ForProduct returns the images tagged with productID
func (r *DisplayRegistry) ForProduct(productID uuid.UUID) []*TrackedImage {
	var out []*TrackedImage
	for _, img := range r.Snapshot() {
		if img.Target().ProductID == productID {
			out = append(out, img)
		}
	}
	return out
}

// Len returns the number of registered images
func (r *DisplayRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.images)
}
