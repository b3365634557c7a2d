package persistence

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSchemaRecheckInterval is how long a degraded schema is trusted
// before the full column set is tried again
const DefaultSchemaRecheckInterval = 5 * time.Minute

// GormProductRepository implements catalog.ProductRepository using GORM.
//
// Older deployments of the products table lack the optional columns
// (images, featured, visible, image_version). When a query fails because one
// of them is missing, the repository retries with the base columns only and
// keeps doing so until the recheck interval has passed.
type GormProductRepository struct {
	db      *gorm.DB
	logger  *zap.Logger
	recheck time.Duration
	now     func() time.Time

	mu         sync.RWMutex
	degradedAt time.Time
}

// ProductRepositoryOption configures a GormProductRepository
type ProductRepositoryOption func(*GormProductRepository)

// WithRepositoryLogger sets the logger
func WithRepositoryLogger(logger *zap.Logger) ProductRepositoryOption {
	return func(r *GormProductRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSchemaRecheckInterval overrides DefaultSchemaRecheckInterval
func WithSchemaRecheckInterval(d time.Duration) ProductRepositoryOption {
	return func(r *GormProductRepository) {
		r.recheck = d
	}
}

// WithRepositoryClock overrides the clock used for degraded-schema bookkeeping
func WithRepositoryClock(now func() time.Time) ProductRepositoryOption {
	return func(r *GormProductRepository) {
		r.now = now
	}
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB, opts ...ProductRepositoryOption) *GormProductRepository {
	r := &GormProductRepository{
		db:      db,
		logger:  zap.NewNop(),
		recheck: DefaultSchemaRecheckInterval,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Degraded reports whether the repository is currently using base columns only
func (r *GormProductRepository) Degraded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.degradedAt.IsZero() {
		return false
	}
	return r.now().Sub(r.degradedAt) < r.recheck
}

func (r *GormProductRepository) markDegraded(err error) {
	r.mu.Lock()
	wasFull := r.degradedAt.IsZero()
	r.degradedAt = r.now()
	r.mu.Unlock()
	if wasFull {
		r.logger.Warn("products table is missing optional columns, using base columns",
			zap.Error(err))
	}
}

func (r *GormProductRepository) markFull() {
	r.mu.Lock()
	wasDegraded := !r.degradedAt.IsZero()
	r.degradedAt = time.Time{}
	r.mu.Unlock()
	if wasDegraded {
		r.logger.Info("products table has all optional columns again")
	}
}

// withFallback runs full, and base if full fails on a missing column
func (r *GormProductRepository) withFallback(full, base func() error) error {
	if !r.Degraded() {
		err := full()
		if err == nil {
			r.markFull()
			return nil
		}
		if !IsUndefinedColumn(err) {
			return err
		}
		r.markDegraded(err)
	}
	return base()
}

func fullProductColumns() []string {
	cols := make([]string, 0, len(models.BaseProductColumns)+len(models.OptionalProductColumns))
	cols = append(cols, models.BaseProductColumns...)
	return append(cols, models.OptionalProductColumns...)
}

func (r *GormProductRepository) listQuery(ctx context.Context, filter catalog.ProductFilter, full bool) *gorm.DB {
	query := r.db.WithContext(ctx)
	if full {
		query = query.Model(&models.ProductModel{}).Select(fullProductColumns())
	} else {
		query = query.Model(&models.BaseProductModel{}).Select(models.BaseProductColumns)
	}
	if filter.Category != "" {
		query = query.Where("category = ?", filter.Category)
	}
	if filter.InStockOnly {
		query = query.Where("in_stock = ?", true)
	}
	// Without the visible column every product counts as visible
	if filter.VisibleOnly && full {
		query = query.Where("visible = ?", true)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return query.Order("created_at DESC")
}

// List returns products matching the filter, newest first
func (r *GormProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	var products []catalog.Product
	err := r.withFallback(
		func() error {
			var rows []models.ProductModel
			if err := r.listQuery(ctx, filter, true).Find(&rows).Error; err != nil {
				return err
			}
			products = make([]catalog.Product, 0, len(rows))
			for i := range rows {
				products = append(products, *rows[i].ToDomain())
			}
			return nil
		},
		func() error {
			var rows []models.BaseProductModel
			if err := r.listQuery(ctx, filter, false).Find(&rows).Error; err != nil {
				return err
			}
			products = make([]catalog.Product, 0, len(rows))
			for i := range rows {
				products = append(products, *rows[i].ToDomain())
			}
			return nil
		},
	)
	if err != nil {
		return nil, err
	}
	return products, nil
}

// FindByID finds a product by its ID
func (r *GormProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	var product *catalog.Product
	err := r.withFallback(
		func() error {
			var row models.ProductModel
			if err := r.db.WithContext(ctx).Select(fullProductColumns()).
				Where("id = ?", id).First(&row).Error; err != nil {
				return err
			}
			product = row.ToDomain()
			return nil
		},
		func() error {
			var row models.BaseProductModel
			if err := r.db.WithContext(ctx).Select(models.BaseProductColumns).
				Where("id = ?", id).First(&row).Error; err != nil {
				return err
			}
			product = row.ToDomain()
			return nil
		},
	)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return product, nil
}

// Insert stores a new product and returns the record as read back
func (r *GormProductRepository) Insert(ctx context.Context, product *catalog.Product) (*catalog.Product, error) {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	now := r.now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	model := models.ProductModelFromDomain(product)
	err := r.withFallback(
		func() error {
			return r.db.WithContext(ctx).Create(model).Error
		},
		func() error {
			return r.db.WithContext(ctx).Create(&model.BaseProductModel).Error
		},
	)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, product.ID)
}

// Update applies a patch and returns the record as read back.
// On a degraded schema the optional fields of the patch are dropped.
func (r *GormProductRepository) Update(ctx context.Context, id uuid.UUID, patch catalog.ProductPatch) (*catalog.Product, error) {
	apply := func(model any, p catalog.ProductPatch) error {
		cols := models.PatchColumns(p)
		cols["updated_at"] = r.now()
		result := r.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(cols)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	}

	err := r.withFallback(
		func() error {
			return apply(&models.ProductModel{}, patch)
		},
		func() error {
			return apply(&models.BaseProductModel{}, patch.Without(catalog.AllOptionalFields))
		},
	)
	if err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

// Delete removes a product
func (r *GormProductRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.BaseProductModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*GormProductRepository)(nil)
