package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/cache"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/event"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// memoryRepo is a ProductRepository backed by a slice. dropFields simulates
// a table without some optional columns.
type memoryRepo struct {
	mu         sync.Mutex
	products   []catalog.Product
	listErr    error
	writeErr   error
	dropFields catalog.Field
	lists      int
}

func (r *memoryRepo) List(_ context.Context, _ catalog.ProductFilter) ([]catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lists++
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]catalog.Product, 0, len(r.products))
	for _, p := range r.products {
		out = append(out, r.strip(p))
	}
	return out, nil
}

func (r *memoryRepo) FindByID(_ context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.products {
		if p.ID == id {
			out := r.strip(p)
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Insert(_ context.Context, product *catalog.Product) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	stored := product.Clone()
	r.products = append([]catalog.Product{stored}, r.products...)
	out := r.strip(stored)
	return &out, nil
}

func (r *memoryRepo) Update(_ context.Context, id uuid.UUID, patch catalog.ProductPatch) (*catalog.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return nil, r.writeErr
	}
	for i := range r.products {
		if r.products[i].ID == id {
			patch.Without(r.dropFields).Apply(&r.products[i], time.Now())
			out := r.strip(r.products[i])
			return &out, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *memoryRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	for i := range r.products {
		if r.products[i].ID == id {
			r.products = append(r.products[:i], r.products[i+1:]...)
			return nil
		}
	}
	return shared.ErrNotFound
}

func (r *memoryRepo) listCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lists
}

func (r *memoryRepo) strip(p catalog.Product) catalog.Product {
	out := p.Clone()
	if r.dropFields&catalog.FieldImages != 0 {
		out.Images = nil
	}
	if r.dropFields&catalog.FieldFeatured != 0 {
		out.Featured = false
	}
	if r.dropFields&catalog.FieldVisible != 0 {
		out.Visible = false
	}
	if r.dropFields&catalog.FieldImageVersion != 0 {
		out.ImageVersion = 0
	}
	out.Fields = catalog.AllOptionalFields &^ r.dropFields
	return out
}

type staticSource struct {
	products []catalog.Product
	err      error
}

func (s staticSource) Name() string { return "legacy" }

func (s staticSource) List(context.Context) ([]catalog.Product, error) {
	return s.products, s.err
}

// eventRecorder collects published event types
type eventRecorder struct {
	mu     sync.Mutex
	events []shared.DomainEvent
}

func (r *eventRecorder) Handle(_ context.Context, e shared.DomainEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *eventRecorder) EventTypes() []string { return catalog.AllEventTypes }

func (r *eventRecorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.EventType()
	}
	return out
}

func (r *eventRecorder) last() shared.DomainEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return nil
	}
	return r.events[len(r.events)-1]
}

func product(t *testing.T, name, category, price string) catalog.Product {
	t.Helper()
	p, err := catalog.NewProduct(name, category, decimal.RequireFromString(price))
	require.NoError(t, err)
	return *p
}

type storeFixture struct {
	store     *ProductStore
	repo      *memoryRepo
	snapshots *cache.MemorySnapshotStore
	events    *eventRecorder
}

func newStoreFixture(t *testing.T, repo *memoryRepo, opts ...ProductStoreOption) storeFixture {
	t.Helper()
	bus := event.NewInMemoryEventBus(zaptest.NewLogger(t))
	rec := &eventRecorder{}
	bus.Subscribe(rec)
	snapshots := cache.NewMemorySnapshotStore()

	opts = append([]ProductStoreOption{
		WithSnapshotStore(snapshots),
		WithLogger(zaptest.NewLogger(t)),
	}, opts...)
	store := NewProductStore(repo, bus, ProductStoreConfig{
		InstanceID:     "instance-a",
		ReloadDelay:    50 * time.Millisecond,
		ListenDebounce: 30 * time.Millisecond,
	}, opts...)
	t.Cleanup(store.Close)
	return storeFixture{store: store, repo: repo, snapshots: snapshots, events: rec}
}

func TestProductStore_LoadFromPrimary(t *testing.T) {
	arduino := product(t, "Arduino Uno", "Microcontrollers", "350")
	sensor := product(t, "HC-SR04", "Sensors", "45.50")
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{arduino, sensor}})
	ctx := context.Background()

	require.NoError(t, f.store.LoadProducts(ctx, false))
	assert.NoError(t, f.store.Err())
	assert.Len(t, f.store.Products(), 2)
	assert.Equal(t, []string{"Microcontrollers", "Sensors"}, f.store.Categories())

	// the snapshot mirrors the store
	saved, err := f.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2)

	refreshed, ok := f.events.last().(*catalog.ProductsRefreshedEvent)
	require.True(t, ok)
	assert.Equal(t, 2, refreshed.Count)
	assert.Equal(t, SourcePrimary, refreshed.Source)

	// a second non-forced load keeps the set
	require.NoError(t, f.store.LoadProducts(ctx, false))
	assert.Equal(t, 1, f.repo.listCalls())

	require.NoError(t, f.store.LoadProducts(ctx, true))
	assert.Equal(t, 2, f.repo.listCalls())
}

func TestProductStore_LoadFallsBackToLegacy(t *testing.T) {
	legacy := product(t, "Raspberry Pi 4", "Boards", "1500")
	ctx := context.Background()

	t.Run("primary error", func(t *testing.T) {
		f := newStoreFixture(t, &memoryRepo{listErr: errors.New("connection refused")},
			WithLegacySource(staticSource{products: []catalog.Product{legacy}}))
		require.NoError(t, f.store.LoadProducts(ctx, false))
		require.Len(t, f.store.Products(), 1)
		assert.Equal(t, "Raspberry Pi 4", f.store.Products()[0].Name)
		assert.NoError(t, f.store.Err())
	})

	t.Run("primary empty", func(t *testing.T) {
		f := newStoreFixture(t, &memoryRepo{},
			WithLegacySource(staticSource{products: []catalog.Product{legacy}}))
		require.NoError(t, f.store.LoadProducts(ctx, false))
		assert.Len(t, f.store.Products(), 1)
	})

	t.Run("both fail", func(t *testing.T) {
		f := newStoreFixture(t, &memoryRepo{listErr: errors.New("timeout")},
			WithLegacySource(staticSource{err: errors.New("bucket missing")}))
		err := f.store.LoadProducts(ctx, false)
		require.Error(t, err)
		assert.ErrorIs(t, err, catalog.ErrLoadFailed)
		assert.ErrorIs(t, f.store.Err(), catalog.ErrLoadFailed)
		assert.Empty(t, f.store.Products())
		assert.Empty(t, f.store.Categories())
	})

	t.Run("both empty is not an error", func(t *testing.T) {
		f := newStoreFixture(t, &memoryRepo{}, WithLegacySource(staticSource{}))
		require.NoError(t, f.store.LoadProducts(ctx, false))
		assert.Empty(t, f.store.Products())
		assert.NoError(t, f.store.Err())
	})
}

func TestProductStore_WarmStart(t *testing.T) {
	ctx := context.Background()
	cached := product(t, "ESP32", "Microcontrollers", "220")

	f := newStoreFixture(t, &memoryRepo{listErr: errors.New("offline")})
	require.NoError(t, f.snapshots.Save(ctx, []catalog.Product{cached}))

	require.NoError(t, f.store.WarmStart(ctx))
	assert.True(t, f.store.Loaded())
	require.Len(t, f.store.Products(), 1)
	assert.Equal(t, cached.ID, f.store.Products()[0].ID)

	// the warm set only lasts until the first load; a failed load empties it
	require.ErrorIs(t, f.store.LoadProducts(ctx, false), catalog.ErrLoadFailed)
	assert.Empty(t, f.store.Products())
	assert.Equal(t, 1, f.repo.listCalls())
}

func TestProductStore_Add(t *testing.T) {
	f := newStoreFixture(t, &memoryRepo{})
	ctx := context.Background()
	existing := product(t, "Breadboard", "Accessories", "30")
	f.repo.products = []catalog.Product{existing}
	require.NoError(t, f.store.LoadProducts(ctx, false))

	added, err := f.store.Add(ctx, product(t, "Servo SG90", "Motors", "60"))
	require.NoError(t, err)
	assert.Equal(t, "Servo SG90", added.Name)

	products := f.store.Products()
	require.Len(t, products, 2)
	assert.Equal(t, added.ID, products[0].ID)
	assert.Contains(t, f.store.Categories(), "Motors")
	assert.Equal(t, catalog.EventTypeProductAdded, f.events.last().EventType())

	saved, err := f.snapshots.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, saved, 2)
}

func TestProductStore_WriteFailureLeavesCacheUntouched(t *testing.T) {
	existing := product(t, "Breadboard", "Accessories", "30")
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{existing}})
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))
	eventsBefore := len(f.events.types())

	f.repo.writeErr = errors.New("permission denied")

	_, err := f.store.Add(ctx, product(t, "LED", "Components", "1"))
	assert.ErrorIs(t, err, catalog.ErrWriteFailed)

	name := "Renamed"
	_, err = f.store.Update(ctx, existing.ID, catalog.ProductPatch{Name: &name})
	assert.ErrorIs(t, err, catalog.ErrWriteFailed)

	assert.ErrorIs(t, f.store.Delete(ctx, existing.ID), catalog.ErrWriteFailed)

	_, err = f.store.ToggleStock(ctx, existing.ID)
	assert.ErrorIs(t, err, catalog.ErrWriteFailed)

	products := f.store.Products()
	require.Len(t, products, 1)
	assert.Equal(t, "Breadboard", products[0].Name)
	assert.True(t, products[0].InStock)
	assert.Len(t, f.events.types(), eventsBefore)
}

func TestProductStore_Update(t *testing.T) {
	existing := product(t, "Breadboard", "Accessories", "30")
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{existing}})
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))

	t.Run("applies the patch", func(t *testing.T) {
		price := decimal.RequireFromString("35")
		updated, err := f.store.Update(ctx, existing.ID, catalog.ProductPatch{Price: &price})
		require.NoError(t, err)
		assert.True(t, price.Equal(updated.Price))

		got, err := f.store.GetByID(existing.ID)
		require.NoError(t, err)
		assert.True(t, price.Equal(got.Price))

		evt, ok := f.events.last().(*catalog.ProductUpdatedEvent)
		require.True(t, ok)
		assert.Equal(t, []string{"price"}, evt.Changes)
	})

	t.Run("invalid patch is rejected before the write", func(t *testing.T) {
		blank := "  "
		_, err := f.store.Update(ctx, existing.ID, catalog.ProductPatch{Name: &blank})
		require.Error(t, err)
		assert.NotErrorIs(t, err, catalog.ErrWriteFailed)
	})

	t.Run("unknown product", func(t *testing.T) {
		name := "x"
		_, err := f.store.Update(ctx, uuid.New(), catalog.ProductPatch{Name: &name})
		assert.ErrorIs(t, err, catalog.ErrWriteFailed)
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})
}

func TestProductStore_UpdateKeepsColumnsTheServerLacks(t *testing.T) {
	existing := product(t, "Breadboard", "Accessories", "30")
	repo := &memoryRepo{products: []catalog.Product{existing}, dropFields: catalog.FieldFeatured}
	f := newStoreFixture(t, repo)
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))

	featured := true
	updated, err := f.store.Update(ctx, existing.ID, catalog.ProductPatch{Featured: &featured})
	require.NoError(t, err)
	assert.True(t, updated.Featured)

	got, err := f.store.GetByID(existing.ID)
	require.NoError(t, err)
	assert.True(t, got.Featured)
}

func TestProductStore_Delete(t *testing.T) {
	a := product(t, "Breadboard", "Accessories", "30")
	b := product(t, "Servo", "Motors", "60")
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{a, b}})
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))

	require.NoError(t, f.store.Delete(ctx, b.ID))
	assert.Len(t, f.store.Products(), 1)
	assert.Equal(t, []string{"Accessories"}, f.store.Categories())
	_, err := f.store.GetByID(b.ID)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	assert.Equal(t, catalog.EventTypeProductDeleted, f.events.last().EventType())
}

func TestProductStore_ToggleStock(t *testing.T) {
	a := product(t, "Breadboard", "Accessories", "30")
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{a}})
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))

	toggled, err := f.store.ToggleStock(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, toggled.InStock)

	evt, ok := f.events.last().(*catalog.ProductStockUpdatedEvent)
	require.True(t, ok)
	assert.False(t, evt.InStock)

	toggled, err = f.store.ToggleStock(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, toggled.InStock)
}

func TestProductStore_UpdateImage(t *testing.T) {
	a := product(t, "Breadboard", "Accessories", "30")
	a.ImageVersion = 100
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{a}})
	ctx := context.Background()
	require.NoError(t, f.store.LoadProducts(ctx, false))
	loadsBefore := f.repo.listCalls()

	updated, err := f.store.UpdateImage(ctx, a.ID, "https://cdn.test/new.jpg")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/new.jpg", updated.Image)
	assert.Greater(t, updated.ImageVersion, int64(100))

	evt, ok := f.events.last().(*catalog.ProductImageUpdatedEvent)
	require.True(t, ok)
	assert.Equal(t, "https://cdn.test/new.jpg", evt.ImageURL)
	assert.Equal(t, updated.ImageVersion, evt.ImageVersion)

	// the delayed forced reload runs once
	assert.Eventually(t, func() bool {
		return f.repo.listCalls() == loadsBefore+1
	}, time.Second, 10*time.Millisecond)
}

// gatedRepo holds every Update until the expected number of writers arrived
type gatedRepo struct {
	*memoryRepo
	arrived sync.WaitGroup
}

func (r *gatedRepo) Update(ctx context.Context, id uuid.UUID, patch catalog.ProductPatch) (*catalog.Product, error) {
	r.arrived.Done()
	r.arrived.Wait()
	return r.memoryRepo.Update(ctx, id, patch)
}

func TestProductStore_ConcurrentUpdateImageVersionsIncrease(t *testing.T) {
	a := product(t, "Breadboard", "Accessories", "30")
	a.ImageVersion = 100
	repo := &gatedRepo{memoryRepo: &memoryRepo{products: []catalog.Product{a}}}
	repo.arrived.Add(2)

	fixed := time.UnixMilli(1_700_000_000_000)
	bus := event.NewInMemoryEventBus(zaptest.NewLogger(t))
	store := NewProductStore(repo, bus, ProductStoreConfig{
		InstanceID:  "instance-a",
		ReloadDelay: time.Hour,
	}, WithClock(func() time.Time { return fixed }), WithLogger(zaptest.NewLogger(t)))
	t.Cleanup(store.Close)

	ctx := context.Background()
	require.NoError(t, store.LoadProducts(ctx, false))

	urls := []string{"https://cdn.test/one.jpg", "https://cdn.test/two.jpg"}
	versions := make([]int64, len(urls))
	var wg sync.WaitGroup
	for i, url := range urls {
		wg.Add(1)
		go func() {
			defer wg.Done()
			updated, err := store.UpdateImage(ctx, a.ID, url)
			assert.NoError(t, err)
			versions[i] = updated.ImageVersion
		}()
	}
	wg.Wait()

	assert.NotEqual(t, versions[0], versions[1], "every reassignment gets its own version")
	for _, v := range versions {
		assert.GreaterOrEqual(t, v, fixed.UnixMilli())
	}

	// the cache keeps the newest reassignment
	newest := 0
	if versions[1] > versions[0] {
		newest = 1
	}
	cached, err := store.GetByID(a.ID)
	require.NoError(t, err)
	assert.Equal(t, versions[newest], cached.ImageVersion)
	assert.Equal(t, urls[newest], cached.Image)

	// a later reassignment still moves past both
	repo.arrived.Add(1)
	updated, err := store.UpdateImage(ctx, a.ID, "https://cdn.test/three.jpg")
	require.NoError(t, err)
	assert.Greater(t, updated.ImageVersion, versions[newest])
}

func TestProductStore_CloseStopsBackgroundReloads(t *testing.T) {
	t.Run("reloads racing close", func(t *testing.T) {
		repo := &memoryRepo{products: []catalog.Product{product(t, "A", "X", "1")}}
		for i := 0; i < 50; i++ {
			store := NewProductStore(repo, event.NewInMemoryEventBus(nil), ProductStoreConfig{InstanceID: "instance-a"})
			var wg sync.WaitGroup
			for j := 0; j < 4; j++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					store.backgroundReload()
				}()
			}
			store.Close()
			wg.Wait()
		}
	})

	t.Run("nothing reloads after close", func(t *testing.T) {
		a := product(t, "Breadboard", "Accessories", "30")
		f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{a}})
		ctx := context.Background()
		require.NoError(t, f.store.LoadProducts(ctx, false))
		f.store.Close()
		loads := f.repo.listCalls()

		f.store.backgroundReload()
		_, err := f.store.UpdateImage(ctx, a.ID, "https://cdn.test/new.jpg")
		require.NoError(t, err)
		time.Sleep(100 * time.Millisecond)
		assert.Equal(t, loads, f.repo.listCalls())
	})
}

func TestProductStore_Query(t *testing.T) {
	a := product(t, "Breadboard", "Accessories", "30")
	b := product(t, "Servo", "Motors", "60")
	b.InStock = false
	c := product(t, "Jumper wires", "Accessories", "15")
	c.Visible = false
	f := newStoreFixture(t, &memoryRepo{products: []catalog.Product{a, b, c}})
	require.NoError(t, f.store.LoadProducts(context.Background(), false))

	assert.Len(t, f.store.Query(catalog.ProductFilter{Category: "Accessories"}), 2)
	assert.Len(t, f.store.Query(catalog.ProductFilter{InStockOnly: true}), 2)
	assert.Len(t, f.store.Query(catalog.ProductFilter{VisibleOnly: true, Category: "Accessories"}), 1)
	assert.Len(t, f.store.Query(catalog.ProductFilter{Limit: 1}), 1)
}

func TestProductStore_CrossInstanceSync(t *testing.T) {
	hub := cache.NewMemoryHub()
	repo := &memoryRepo{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := newStoreFixture(t, repo, WithBroadcaster(hub.Join()))
	b := NewProductStore(repo, event.NewInMemoryEventBus(nil), ProductStoreConfig{
		InstanceID:     "instance-b",
		ListenDebounce: 80 * time.Millisecond,
	}, WithBroadcaster(hub.Join()))
	t.Cleanup(b.Close)

	go func() { _ = a.store.Listen(ctx) }()
	go func() { _ = b.Listen(ctx) }()
	require.Eventually(t, func() bool { return hub.Listeners() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, a.store.LoadProducts(ctx, false))
	require.NoError(t, b.LoadProducts(ctx, false))
	aLoads := repo.listCalls()

	// a burst of writes on A yields one debounced reload on B and none on A
	for _, name := range []string{"One", "Two", "Three"} {
		_, err := a.store.Add(ctx, product(t, name, "Kits", "10"))
		require.NoError(t, err)
	}

	assert.Eventually(t, func() bool { return len(b.Products()) == 3 }, time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, aLoads+1, repo.listCalls())

	last, ok := hub.Last()
	require.True(t, ok)
	assert.Equal(t, "instance-a", last.Origin)
	assert.Equal(t, ReasonAdded, last.Reason)
}

func TestProductStore_ConcurrentLoadsShareOneFetch(t *testing.T) {
	repo := &memoryRepo{products: []catalog.Product{product(t, "A", "X", "1")}}
	f := newStoreFixture(t, repo)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.store.LoadProducts(context.Background(), true))
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, repo.listCalls(), 10)
	assert.Len(t, f.store.Products(), 1)
}
