package imaging

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/imaging"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Refresh triggers, used as metric labels
const (
	TriggerProductImage = "product_image"
	TriggerProducts     = "products"
	TriggerNetwork      = "network"
	TriggerVisibility   = "visibility"
	TriggerPeriodic     = "periodic"
)

// ErrRefreshInProgress is returned by RefreshAll while another full refresh runs
var ErrRefreshInProgress = errors.New("imaging: full refresh already running")

// ImageCache is the cache the coordinator refreshes through
type ImageCache interface {
	GetOrResolve(ctx context.Context, req imaging.Request) (imaging.ResolvedImage, error)
	Clear()
}

// RefreshConfig holds the coordinator timings
type RefreshConfig struct {
	// Mobile enables the periodic and visibility triggers
	Mobile          bool
	Interval        time.Duration
	BatchSize       int
	BatchDelay      time.Duration
	NetworkDebounce time.Duration
}

// DefaultRefreshConfig returns 30s interval, batches of 3, 500ms between batches and a 1s network debounce
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Interval:        30 * time.Second,
		BatchSize:       3,
		BatchDelay:      500 * time.Millisecond,
		NetworkDebounce: time.Second,
	}
}

// RefreshCoordinator re-resolves displayed images when products change, the
// network changes, the app becomes visible again or the periodic timer fires.
//
// Only one full refresh runs at a time. Targeted refreshes for a single
// product are not blocked by it.
type RefreshCoordinator struct {
	cache    ImageCache
	registry *DisplayRegistry
	cfg      RefreshConfig
	logger   *zap.Logger
	metrics  *telemetry.StoreMetrics

	refreshing atomic.Bool
	hidden     atomic.Bool

	mu           sync.Mutex
	networkTimer *time.Timer
	closed       bool

	// background work started from events and signals
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// RefreshCoordinatorOption configures a RefreshCoordinator
type RefreshCoordinatorOption func(*RefreshCoordinator)

// WithCoordinatorLogger sets the logger
func WithCoordinatorLogger(logger *zap.Logger) RefreshCoordinatorOption {
	return func(c *RefreshCoordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCoordinatorMetrics sets the metrics sink
func WithCoordinatorMetrics(m *telemetry.StoreMetrics) RefreshCoordinatorOption {
	return func(c *RefreshCoordinator) {
		c.metrics = m
	}
}

// NewRefreshCoordinator creates a RefreshCoordinator
func NewRefreshCoordinator(cache ImageCache, registry *DisplayRegistry, cfg RefreshConfig, opts ...RefreshCoordinatorOption) *RefreshCoordinator {
	defaults := DefaultRefreshConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = defaults.Interval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaults.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.NetworkDebounce < 0 {
		cfg.NetworkDebounce = 0
	}
	ctx, cancel := context.WithCancel(context.Background())
	c := &RefreshCoordinator{
		cache:    cache,
		registry: registry,
		cfg:      cfg,
		logger:   zap.NewNop(),
		baseCtx:  ctx,
		cancel:   cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Registry returns the display registry
func (c *RefreshCoordinator) Registry() *DisplayRegistry {
	return c.registry
}

// Display tracks target under key and resolves it. Later refreshes keep the
// tracked resolution current.
func (c *RefreshCoordinator) Display(ctx context.Context, key string, target DisplayTarget, force bool) (imaging.ResolvedImage, error) {
	img := c.registry.Track(key, target)
	resolved, err := c.cache.GetOrResolve(ctx, img.Request(force))
	if err != nil {
		return imaging.ResolvedImage{}, err
	}
	img.apply(resolved)
	return resolved, nil
}

// ProductImageUpdated force-refreshes the images of one product. newURL and
// version replace the tracked source when given; a version not newer than the
// tracked one is ignored for that image.
func (c *RefreshCoordinator) ProductImageUpdated(ctx context.Context, productID uuid.UUID, newURL string, version int64) error {
	images := c.registry.ForProduct(productID)
	refreshed := 0
	for _, img := range images {
		if !img.retarget(newURL, version) {
			continue
		}
		if err := c.refreshOne(ctx, img, true); err != nil {
			return err
		}
		refreshed++
	}
	c.metrics.RecordRefresh(TriggerProductImage, refreshed)
	c.logger.Debug("product images refreshed",
		zap.String("product_id", productID.String()),
		zap.Int("images", refreshed))
	return nil
}

// RefreshAll re-resolves every displayed image in batches
func (c *RefreshCoordinator) RefreshAll(ctx context.Context) error {
	return c.refreshAll(ctx, TriggerProducts)
}

func (c *RefreshCoordinator) refreshAll(ctx context.Context, trigger string) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return ErrRefreshInProgress
	}
	defer c.refreshing.Store(false)

	images := c.registry.Snapshot()
	for start := 0; start < len(images); start += c.cfg.BatchSize {
		if start > 0 && c.cfg.BatchDelay > 0 {
			timer := time.NewTimer(c.cfg.BatchDelay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		end := min(start+c.cfg.BatchSize, len(images))
		g, gctx := errgroup.WithContext(ctx)
		for _, img := range images[start:end] {
			g.Go(func() error {
				return c.refreshOne(gctx, img, true)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	}

	c.metrics.RecordRefresh(trigger, len(images))
	c.logger.Debug("displayed images refreshed",
		zap.String("trigger", trigger),
		zap.Int("images", len(images)))
	return nil
}

// refreshOne resolves img and applies the result. Only context errors are returned.
func (c *RefreshCoordinator) refreshOne(ctx context.Context, img *TrackedImage, force bool) error {
	resolved, err := c.cache.GetOrResolve(ctx, img.Request(force))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.logger.Warn("image refresh failed",
			zap.String("image_id", img.ID),
			zap.Error(err))
		return nil
	}
	img.apply(resolved)
	return nil
}

// NetworkChanged clears the image cache and schedules a full refresh after
// the debounce window. Repeated changes within the window restart it.
func (c *RefreshCoordinator) NetworkChanged() {
	c.cache.Clear()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if c.networkTimer != nil {
		c.networkTimer.Stop()
	}
	c.networkTimer = time.AfterFunc(c.cfg.NetworkDebounce, func() {
		c.spawn(func(ctx context.Context) error {
			return c.refreshAll(ctx, TriggerNetwork)
		})
	})
}

// VisibilityChanged records visibility; becoming visible on mobile triggers a full refresh
func (c *RefreshCoordinator) VisibilityChanged(visible bool) {
	wasHidden := c.hidden.Swap(!visible)
	if visible && wasHidden && c.cfg.Mobile {
		c.spawn(func(ctx context.Context) error {
			return c.refreshAll(ctx, TriggerVisibility)
		})
	}
}

// Visible reports the last visibility signal, true initially
func (c *RefreshCoordinator) Visible() bool {
	return !c.hidden.Load()
}

// Run drives the periodic refresh on mobile until ctx is done. Ticks while
// hidden are skipped.
func (c *RefreshCoordinator) Run(ctx context.Context) error {
	if !c.cfg.Mobile {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if c.hidden.Load() {
				continue
			}
			err := c.refreshAll(ctx, TriggerPeriodic)
			if err != nil && !errors.Is(err, ErrRefreshInProgress) && ctx.Err() == nil {
				c.logger.Warn("periodic image refresh failed", zap.Error(err))
			}
		}
	}
}

// Handle implements shared.EventHandler for the product store's events.
// Work is started in the background so the publisher is not blocked.
func (c *RefreshCoordinator) Handle(ctx context.Context, event shared.DomainEvent) error {
	switch e := event.(type) {
	case *catalog.ProductImageUpdatedEvent:
		c.spawn(func(ctx context.Context) error {
			return c.ProductImageUpdated(ctx, e.ProductID, e.ImageURL, e.ImageVersion)
		})
	case *catalog.ProductsRefreshedEvent, *catalog.ProductUpdatedEvent, *catalog.ProductAddedEvent:
		c.spawn(func(ctx context.Context) error {
			return c.refreshAll(ctx, TriggerProducts)
		})
	}
	return nil
}

// EventTypes returns the product events the coordinator reacts to
func (c *RefreshCoordinator) EventTypes() []string {
	return []string{
		catalog.EventTypeProductImageUpdated,
		catalog.EventTypeProductsRefreshed,
		catalog.EventTypeProductUpdated,
		catalog.EventTypeProductAdded,
	}
}

// spawn runs fn in the background unless the coordinator is closed. The
// closed check and wg.Add share c.mu with Close so no Add follows its Wait.
func (c *RefreshCoordinator) spawn(fn func(ctx context.Context) error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.wg.Add(1)
	c.mu.Unlock()
	go func() {
		defer c.wg.Done()
		err := fn(c.baseCtx)
		if err != nil && !errors.Is(err, ErrRefreshInProgress) && c.baseCtx.Err() == nil {
			c.logger.Warn("background image refresh failed", zap.Error(err))
		}
	}()
}

// Wait blocks until background refreshes started so far have finished
func (c *RefreshCoordinator) Wait() {
	c.wg.Wait()
}

// Close stops pending timers, cancels background refreshes and waits for them
func (c *RefreshCoordinator) Close() {
	c.mu.Lock()
	c.closed = true
	if c.networkTimer != nil {
		c.networkTimer.Stop()
	}
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}

var _ shared.EventHandler = (*RefreshCoordinator)(nil)
