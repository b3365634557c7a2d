package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Load sources reported on ProductsRefreshed and in metrics
const (
	SourcePrimary = "primary"
	SourceNone    = "none"
)

// Sync signal reasons
const (
	ReasonAdded        = "added"
	ReasonUpdated      = "updated"
	ReasonDeleted      = "deleted"
	ReasonImageUpdated = "image_updated"
	ReasonStockUpdated = "stock_updated"
)

// ProductStoreConfig holds the store timings
type ProductStoreConfig struct {
	// InstanceID tags outgoing sync signals; own signals are ignored on receipt
	InstanceID string
	// ReloadDelay is the wait before the forced reload that follows UpdateImage
	ReloadDelay time.Duration
	// ListenDebounce collapses bursts of sync signals into one reload
	ListenDebounce time.Duration
}

// DefaultProductStoreConfig returns a random instance id, 2s reload delay and 300ms debounce
func DefaultProductStoreConfig() ProductStoreConfig {
	return ProductStoreConfig{
		InstanceID:     uuid.NewString(),
		ReloadDelay:    2 * time.Second,
		ListenDebounce: 300 * time.Millisecond,
	}
}

// ProductStore is the local product cache of one instance.
//
// Every write goes to the repository first. The server-confirmed record is
// merged into the cache, the snapshot is persisted, a typed event is
// published in-process and a sync signal tells sibling instances to reload.
type ProductStore struct {
	repo        catalog.ProductRepository
	legacy      catalog.ProductSource
	snapshots   catalog.SnapshotStore
	broadcaster catalog.Broadcaster
	bus         shared.EventBus
	cfg         ProductStoreConfig
	logger      *zap.Logger
	metrics     *telemetry.StoreMetrics
	now         func() time.Time

	mu         sync.RWMutex
	products   []catalog.Product
	categories []string
	lastErr    error
	loaded     bool
	// last image version handed out per product
	issued map[uuid.UUID]int64

	loads singleflight.Group

	timerMu     sync.Mutex
	reloadTimer *time.Timer
	listenTimer *time.Timer
	closed      bool

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ProductStoreOption configures a ProductStore
type ProductStoreOption func(*ProductStore)

// WithLegacySource sets the source used when the repository fails or is empty
func WithLegacySource(src catalog.ProductSource) ProductStoreOption {
	return func(s *ProductStore) {
		s.legacy = src
	}
}

// WithSnapshotStore sets the durable local copy
func WithSnapshotStore(store catalog.SnapshotStore) ProductStoreOption {
	return func(s *ProductStore) {
		s.snapshots = store
	}
}

// WithBroadcaster sets the cross-instance channel
func WithBroadcaster(b catalog.Broadcaster) ProductStoreOption {
	return func(s *ProductStore) {
		s.broadcaster = b
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ProductStoreOption {
	return func(s *ProductStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m *telemetry.StoreMetrics) ProductStoreOption {
	return func(s *ProductStore) {
		s.metrics = m
	}
}

// WithClock overrides the clock used for image versions
func WithClock(now func() time.Time) ProductStoreOption {
	return func(s *ProductStore) {
		s.now = now
	}
}

// NewProductStore creates a ProductStore
func NewProductStore(repo catalog.ProductRepository, bus shared.EventBus, cfg ProductStoreConfig, opts ...ProductStoreOption) *ProductStore {
	defaults := DefaultProductStoreConfig()
	if cfg.InstanceID == "" {
		cfg.InstanceID = defaults.InstanceID
	}
	if cfg.ReloadDelay <= 0 {
		cfg.ReloadDelay = defaults.ReloadDelay
	}
	if cfg.ListenDebounce <= 0 {
		cfg.ListenDebounce = defaults.ListenDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &ProductStore{
		repo:       repo,
		bus:        bus,
		cfg:        cfg,
		logger:     zap.NewNop(),
		now:        time.Now,
		products:   []catalog.Product{},
		categories: []string{},
		issued:     make(map[uuid.UUID]int64),
		baseCtx:    ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// InstanceID returns the id carried by this store's sync signals
func (s *ProductStore) InstanceID() string {
	return s.cfg.InstanceID
}

// WarmStart seeds the cache from the snapshot store so a restarted instance
// serves the last known catalog until the first load completes
func (s *ProductStore) WarmStart(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}
	products, err := s.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load product snapshot: %w", err)
	}
	if len(products) == 0 {
		return nil
	}

	s.mu.Lock()
	if s.loaded {
		s.mu.Unlock()
		return nil
	}
	s.setProductsLocked(products)
	s.mu.Unlock()

	s.logger.Info("product store warm started", zap.Int("products", len(products)))
	return nil
}

// LoadProducts loads the product set. Without force an already loaded set
// is kept. The repository is tried first, then the legacy source; when both
// fail the set becomes empty and Err reports the failure.
func (s *ProductStore) LoadProducts(ctx context.Context, force bool) error {
	s.mu.RLock()
	loaded := s.loaded
	s.mu.RUnlock()
	if loaded && !force {
		return nil
	}

	ch := s.loads.DoChan("load", func() (any, error) {
		return nil, s.load(context.WithoutCancel(ctx))
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *ProductStore) load(ctx context.Context) error {
	products, source, err := s.fetch(ctx)

	s.mu.Lock()
	if err != nil {
		s.products = []catalog.Product{}
		s.categories = []string{}
		s.lastErr = err
		s.loaded = true
		s.mu.Unlock()

		s.metrics.RecordProductLoad(SourceNone)
		s.logger.Error("failed to load products from any source", zap.Error(err))
		return err
	}

	local := make(map[uuid.UUID]catalog.Product, len(s.products))
	for _, p := range s.products {
		local[p.ID] = p
	}
	merged := make([]catalog.Product, 0, len(products))
	for _, p := range products {
		if prev, ok := local[p.ID]; ok {
			merged = append(merged, catalog.Merge(prev, p))
			continue
		}
		merged = append(merged, p)
	}
	s.setProductsLocked(merged)
	s.lastErr = nil
	s.loaded = true
	snapshot := s.copyProductsLocked()
	s.mu.Unlock()

	s.metrics.RecordProductLoad(source)
	s.saveSnapshot(ctx, snapshot)
	s.publish(ctx, catalog.NewProductsRefreshedEvent(len(snapshot), source))
	s.logger.Debug("products loaded", zap.String("source", source), zap.Int("products", len(snapshot)))
	return nil
}

// fetch returns the products and the name of the source that served them
func (s *ProductStore) fetch(ctx context.Context) ([]catalog.Product, string, error) {
	products, err := s.repo.List(ctx, catalog.ProductFilter{})
	if err == nil && len(products) > 0 {
		return products, SourcePrimary, nil
	}
	if err != nil {
		s.logger.Warn("primary product source failed", zap.Error(err))
	}

	if s.legacy != nil {
		legacy, lerr := s.legacy.List(ctx)
		if lerr == nil && len(legacy) > 0 {
			return legacy, s.legacy.Name(), nil
		}
		if lerr != nil {
			s.logger.Warn("legacy product source failed", zap.String("source", s.legacy.Name()), zap.Error(lerr))
			if err != nil {
				err = errors.Join(err, lerr)
			}
		}
	}

	if err != nil {
		return nil, SourceNone, fmt.Errorf("%w: %w", catalog.ErrLoadFailed, err)
	}
	// the repository answered with an empty table
	return []catalog.Product{}, SourcePrimary, nil
}

// Products returns a copy of the cached products, newest first
func (s *ProductStore) Products() []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyProductsLocked()
}

// Query returns the cached products matching filter
func (s *ProductStore) Query(filter catalog.ProductFilter) []catalog.Product {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.InStockOnly && !p.InStock {
			continue
		}
		if filter.VisibleOnly && !p.Visible {
			continue
		}
		out = append(out, p.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out
}

// GetByID returns a cached product
func (s *ProductStore) GetByID(id uuid.UUID) (catalog.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(id); i >= 0 {
		return s.products[i].Clone(), nil
	}
	return catalog.Product{}, catalog.ErrProductNotFound
}

// Categories returns the distinct categories of the cached products
func (s *ProductStore) Categories() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.categories...)
}

// Err returns the error of the last load, nil after a successful one
func (s *ProductStore) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Loaded reports whether a load (or warm start) has populated the store
func (s *ProductStore) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded || len(s.products) > 0
}

// Subscribe registers handler for store events
func (s *ProductStore) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	s.bus.Subscribe(handler, eventTypes...)
}

// Unsubscribe removes a handler
func (s *ProductStore) Unsubscribe(handler shared.EventHandler) {
	s.bus.Unsubscribe(handler)
}

// Add inserts a product
func (s *ProductStore) Add(ctx context.Context, product catalog.Product) (catalog.Product, error) {
	server, err := s.repo.Insert(ctx, &product)
	if err != nil {
		return s.writeFailed("add", err)
	}

	merged := catalog.Merge(product, *server)
	s.mu.Lock()
	s.upsertLocked(merged, true)
	s.mu.Unlock()

	s.afterWrite(ctx, "add", catalog.NewProductAddedEvent(merged), ReasonAdded, merged.ID)
	return merged.Clone(), nil
}

// Update applies patch to a product
func (s *ProductStore) Update(ctx context.Context, id uuid.UUID, patch catalog.ProductPatch) (catalog.Product, error) {
	if err := patch.Validate(); err != nil {
		return catalog.Product{}, err
	}
	merged, err := s.write(ctx, id, patch)
	if err != nil {
		return s.writeFailed("update", err)
	}
	s.afterWrite(ctx, "update", catalog.NewProductUpdatedEvent(merged, patch.Changes()), ReasonUpdated, id)
	return merged.Clone(), nil
}

// Delete removes a product
func (s *ProductStore) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		_, err = s.writeFailed("delete", err)
		return err
	}

	s.mu.Lock()
	if i := s.indexLocked(id); i >= 0 {
		s.products = append(s.products[:i], s.products[i+1:]...)
		s.categories = catalog.DeriveCategories(s.products)
	}
	delete(s.issued, id)
	s.mu.Unlock()

	s.afterWrite(ctx, "delete", catalog.NewProductDeletedEvent(id), ReasonDeleted, id)
	return nil
}

// UpdateImage points the product at a new main image and bumps its image
// version. A forced reload follows after ReloadDelay so every consumer ends
// up with the server's view.
func (s *ProductStore) UpdateImage(ctx context.Context, id uuid.UUID, imageURL string) (catalog.Product, error) {
	current, err := s.current(ctx, id)
	if err != nil {
		return s.writeFailed("update_image", err)
	}

	version := s.reserveImageVersion(id, current.ImageVersion)
	patch := catalog.ProductPatch{Image: &imageURL, ImageVersion: &version}
	merged, err := s.write(ctx, id, patch)
	if err != nil {
		return s.writeFailed("update_image", err)
	}

	s.afterWrite(ctx, "update_image", catalog.NewProductImageUpdatedEvent(merged), ReasonImageUpdated, id)
	s.scheduleReload()
	return merged.Clone(), nil
}

// reserveImageVersion returns a version above prev, the cached version and
// every version already issued for id, so concurrent reassignments of one
// product never share a version
func (s *ProductStore) reserveImageVersion(id uuid.UUID, prev int64) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexLocked(id); i >= 0 && s.products[i].ImageVersion > prev {
		prev = s.products[i].ImageVersion
	}
	if last := s.issued[id]; last > prev {
		prev = last
	}
	version := catalog.NextImageVersion(prev, s.now())
	s.issued[id] = version
	return version
}

// ToggleStock flips the in-stock flag of a product
func (s *ProductStore) ToggleStock(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	current, err := s.current(ctx, id)
	if err != nil {
		return s.writeFailed("toggle_stock", err)
	}

	inStock := !current.InStock
	merged, err := s.write(ctx, id, catalog.ProductPatch{InStock: &inStock})
	if err != nil {
		return s.writeFailed("toggle_stock", err)
	}

	s.afterWrite(ctx, "toggle_stock", catalog.NewProductStockUpdatedEvent(id, merged.InStock), ReasonStockUpdated, id)
	return merged.Clone(), nil
}

// write sends patch to the repository and merges the confirmed record.
// The patch is applied to the local copy first so optional columns the
// server could not store survive locally.
func (s *ProductStore) write(ctx context.Context, id uuid.UUID, patch catalog.ProductPatch) (catalog.Product, error) {
	server, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return catalog.Product{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	local := *server
	i := s.indexLocked(id)
	if i >= 0 {
		local = s.products[i].Clone()
	}
	patch.Apply(&local, s.now())
	merged := catalog.Merge(local, *server)
	cached := merged
	if i >= 0 && s.products[i].ImageVersion > merged.ImageVersion {
		// a newer image reassignment landed first
		cached = merged.Clone()
		cached.Image = s.products[i].Image
		cached.ImageVersion = s.products[i].ImageVersion
	}
	s.upsertLocked(cached, false)
	return merged, nil
}

// current returns the cached product, asking the repository when it is not cached
func (s *ProductStore) current(ctx context.Context, id uuid.UUID) (catalog.Product, error) {
	if p, err := s.GetByID(id); err == nil {
		return p, nil
	}
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return catalog.Product{}, err
	}
	return *p, nil
}

func (s *ProductStore) writeFailed(op string, err error) (catalog.Product, error) {
	s.metrics.RecordProductWrite(op, false)
	s.logger.Warn("product write failed", zap.String("operation", op), zap.Error(err))
	if errors.Is(err, shared.ErrNotFound) {
		err = catalog.ErrProductNotFound
	}
	return catalog.Product{}, fmt.Errorf("%w: %w", catalog.ErrWriteFailed, err)
}

func (s *ProductStore) afterWrite(ctx context.Context, op string, event shared.DomainEvent, reason string, id uuid.UUID) {
	s.metrics.RecordProductWrite(op, true)
	s.saveSnapshot(ctx, s.Products())
	s.publish(ctx, event)
	s.notify(ctx, reason, id)
}

func (s *ProductStore) saveSnapshot(ctx context.Context, products []catalog.Product) {
	if s.snapshots == nil {
		return
	}
	if err := s.snapshots.Save(ctx, products); err != nil {
		s.logger.Warn("failed to save product snapshot", zap.Error(err))
	}
}

func (s *ProductStore) publish(ctx context.Context, event shared.DomainEvent) {
	if s.bus == nil {
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish product event",
			zap.String("event_type", event.EventType()),
			zap.Error(err))
	}
}

func (s *ProductStore) notify(ctx context.Context, reason string, id uuid.UUID) {
	if s.broadcaster == nil {
		return
	}
	signal := catalog.SyncSignal{
		Origin:    s.cfg.InstanceID,
		Reason:    reason,
		ProductID: id,
		At:        s.now(),
	}
	if err := s.broadcaster.Notify(ctx, signal); err != nil {
		s.logger.Warn("failed to broadcast product change", zap.Error(err))
		return
	}
	s.metrics.RecordSyncSignal("sent")
}

// scheduleReload forces a reload after ReloadDelay, restarting a pending one
func (s *ProductStore) scheduleReload() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.closed {
		return
	}
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	s.reloadTimer = time.AfterFunc(s.cfg.ReloadDelay, s.backgroundReload)
}

// backgroundReload runs a forced reload unless the store is closed. The
// closed check and wg.Add share timerMu with Close so no Add follows its Wait.
func (s *ProductStore) backgroundReload() {
	s.timerMu.Lock()
	if s.closed {
		s.timerMu.Unlock()
		return
	}
	s.wg.Add(1)
	s.timerMu.Unlock()
	defer s.wg.Done()
	if err := s.LoadProducts(s.baseCtx, true); err != nil && s.baseCtx.Err() == nil {
		s.logger.Warn("background product reload failed", zap.Error(err))
	}
}

// Listen receives sync signals from sibling instances until ctx is done.
// A burst of foreign signals triggers one forced reload after ListenDebounce.
func (s *ProductStore) Listen(ctx context.Context) error {
	if s.broadcaster == nil {
		<-ctx.Done()
		return nil
	}
	return s.broadcaster.Listen(ctx, func(signal catalog.SyncSignal) {
		if signal.Origin == s.cfg.InstanceID {
			return
		}
		s.metrics.RecordSyncSignal("received")
		s.logger.Debug("product change signal received",
			zap.String("origin", signal.Origin),
			zap.String("reason", signal.Reason))

		s.timerMu.Lock()
		defer s.timerMu.Unlock()
		if s.closed {
			return
		}
		if s.listenTimer != nil {
			s.listenTimer.Stop()
		}
		s.listenTimer = time.AfterFunc(s.cfg.ListenDebounce, s.backgroundReload)
	})
}

// Close stops pending reloads and waits for running ones
func (s *ProductStore) Close() {
	s.timerMu.Lock()
	s.closed = true
	if s.reloadTimer != nil {
		s.reloadTimer.Stop()
	}
	if s.listenTimer != nil {
		s.listenTimer.Stop()
	}
	s.timerMu.Unlock()
	s.cancel()
	s.wg.Wait()
}

func (s *ProductStore) indexLocked(id uuid.UUID) int {
	for i := range s.products {
		if s.products[i].ID == id {
			return i
		}
	}
	return -1
}

// upsertLocked replaces the product with the same id or inserts it,
// at the front when prepend is set
func (s *ProductStore) upsertLocked(p catalog.Product, prepend bool) {
	if i := s.indexLocked(p.ID); i >= 0 {
		s.products[i] = p
	} else if prepend {
		s.products = append([]catalog.Product{p}, s.products...)
	} else {
		s.products = append(s.products, p)
	}
	s.categories = catalog.DeriveCategories(s.products)
}

func (s *ProductStore) setProductsLocked(products []catalog.Product) {
	s.products = make([]catalog.Product, len(products))
	for i, p := range products {
		s.products[i] = p.Clone()
	}
	s.categories = catalog.DeriveCategories(s.products)
}

func (s *ProductStore) copyProductsLocked() []catalog.Product {
	out := make([]catalog.Product, len(s.products))
	for i, p := range s.products {
		out[i] = p.Clone()
	}
	return out
}
