package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/catalog"
	"github.com/BUPE-NONDO/gifted-solutions-ecommerce-sub000/internal/domain/shared"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const baseProductsTable = `
	CREATE TABLE products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL DEFAULT '0',
		category TEXT,
		image TEXT,
		in_stock INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)
`

const optionalProductColumnsDDL = `
	ALTER TABLE products ADD COLUMN images TEXT;
	ALTER TABLE products ADD COLUMN featured INTEGER NOT NULL DEFAULT 0;
	ALTER TABLE products ADD COLUMN visible INTEGER NOT NULL DEFAULT 1;
	ALTER TABLE products ADD COLUMN image_version INTEGER NOT NULL DEFAULT 0;
`

// setupProductTestDB creates an in-memory SQLite products table.
// full controls whether the optional columns exist.
func setupProductTestDB(t *testing.T, full bool) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec(baseProductsTable).Error)
	if full {
		require.NoError(t, db.Exec(optionalProductColumnsDDL).Error)
	}
	return db
}

func newTestProduct(t *testing.T, name, category string, price int64) *catalog.Product {
	p, err := catalog.NewProduct(name, category, decimal.NewFromInt(price))
	require.NoError(t, err)
	return p
}

func TestGormProductRepository_FullSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("insert and find round trip", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, true))

		p := newTestProduct(t, "Arduino Uno R3", "Microcontrollers", 350)
		p.Images = []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}
		p.Featured = true
		p.ImageVersion = 42

		saved, err := repo.Insert(ctx, p)
		require.NoError(t, err)
		assert.Equal(t, p.ID, saved.ID)
		assert.Equal(t, "Arduino Uno R3", saved.Name)
		assert.True(t, saved.Price.Equal(decimal.NewFromInt(350)))
		assert.Equal(t, []string{"https://cdn.example.com/a.jpg", "https://cdn.example.com/b.jpg"}, saved.Images)
		assert.True(t, saved.Featured)
		assert.Equal(t, int64(42), saved.ImageVersion)
		assert.Equal(t, catalog.AllOptionalFields, saved.Fields)
		assert.False(t, repo.Degraded())
	})

	t.Run("list filters and orders newest first", func(t *testing.T) {
		base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
		repo := NewGormProductRepository(setupProductTestDB(t, true))

		older := newTestProduct(t, "Resistor Pack", "Components", 20)
		older.CreatedAt = base
		newer := newTestProduct(t, "ESP32", "Microcontrollers", 420)
		newer.CreatedAt = base.Add(time.Hour)
		hidden := newTestProduct(t, "Prototype Board", "Microcontrollers", 99)
		hidden.CreatedAt = base.Add(2 * time.Hour)
		hidden.Visible = false
		hidden.InStock = false

		for _, p := range []*catalog.Product{older, newer, hidden} {
			_, err := repo.Insert(ctx, p)
			require.NoError(t, err)
		}

		all, err := repo.List(ctx, catalog.ProductFilter{})
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, hidden.ID, all[0].ID)
		assert.Equal(t, older.ID, all[2].ID)

		visible, err := repo.List(ctx, catalog.ProductFilter{Category: "Microcontrollers", VisibleOnly: true})
		require.NoError(t, err)
		require.Len(t, visible, 1)
		assert.Equal(t, newer.ID, visible[0].ID)

		inStock, err := repo.List(ctx, catalog.ProductFilter{InStockOnly: true, Limit: 1})
		require.NoError(t, err)
		require.Len(t, inStock, 1)
		assert.Equal(t, newer.ID, inStock[0].ID)
	})

	t.Run("update applies only patched columns", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, true))
		p := newTestProduct(t, "Breadboard", "Accessories", 45)
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)

		image := "https://cdn.example.com/breadboard.png"
		version := int64(1700000000000)
		updated, err := repo.Update(ctx, p.ID, catalog.ProductPatch{Image: &image, ImageVersion: &version})
		require.NoError(t, err)
		assert.Equal(t, image, updated.Image)
		assert.Equal(t, version, updated.ImageVersion)
		assert.Equal(t, "Breadboard", updated.Name)
		assert.True(t, updated.Price.Equal(decimal.NewFromInt(45)))
	})

	t.Run("update and delete of unknown id return not found", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, true))
		name := "Nothing"

		_, err := repo.Update(ctx, uuid.New(), catalog.ProductPatch{Name: &name})
		assert.ErrorIs(t, err, shared.ErrNotFound)

		err = repo.Delete(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("delete removes the row", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, true))
		p := newTestProduct(t, "Jumper Wires", "Accessories", 15)
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, p.ID))
		_, err = repo.FindByID(ctx, p.ID)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormProductRepository_DegradedSchema(t *testing.T) {
	ctx := context.Background()

	t.Run("insert falls back to base columns", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, false))
		p := newTestProduct(t, "Raspberry Pi 4", "Single Board Computers", 1200)
		p.Featured = true
		p.ImageVersion = 7

		saved, err := repo.Insert(ctx, p)
		require.NoError(t, err)
		assert.True(t, repo.Degraded())
		assert.Equal(t, "Raspberry Pi 4", saved.Name)
		assert.Equal(t, catalog.Field(0), saved.Fields)
		assert.True(t, saved.Visible)
		assert.False(t, saved.Has(catalog.FieldImageVersion))
	})

	t.Run("update drops optional fields", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, false))
		p := newTestProduct(t, "Servo Motor", "Motors", 80)
		_, err := repo.Insert(ctx, p)
		require.NoError(t, err)

		image := "https://cdn.example.com/servo.jpg"
		version := int64(99)
		updated, err := repo.Update(ctx, p.ID, catalog.ProductPatch{Image: &image, ImageVersion: &version})
		require.NoError(t, err)
		assert.Equal(t, image, updated.Image)
		assert.Equal(t, int64(0), updated.ImageVersion)
	})

	t.Run("list ignores visible filter", func(t *testing.T) {
		repo := NewGormProductRepository(setupProductTestDB(t, false))
		_, err := repo.Insert(ctx, newTestProduct(t, "LED Kit", "Components", 30))
		require.NoError(t, err)

		products, err := repo.List(ctx, catalog.ProductFilter{VisibleOnly: true})
		require.NoError(t, err)
		assert.Len(t, products, 1)
	})
}

// newMockProductRepository creates a GormProductRepository with a mocked SQL connection
func newMockProductRepository(t *testing.T, opts ...ProductRepositoryOption) (*GormProductRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return NewGormProductRepository(gormDB, opts...), mock, mockDB
}

func baseProductRows(id uuid.UUID, now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "price", "category", "image", "in_stock", "created_at", "updated_at",
	}).AddRow(id.String(), "Arduino Nano", "", "250.00", "Microcontrollers", "", true, now, now)
}

func TestGormProductRepository_PostgresUndefinedColumn(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	repo, mock, mockDB := newMockProductRepository(t,
		WithRepositoryClock(func() time.Time { return clock }),
		WithSchemaRecheckInterval(time.Minute),
	)
	defer mockDB.Close()

	id := uuid.New()
	undefined := &pgconn.PgError{Code: "42703", Message: `column "image_version" does not exist`}

	// First list: full select fails, base select succeeds
	mock.ExpectQuery(`SELECT .*"image_version".* FROM "products"`).WillReturnError(undefined)
	mock.ExpectQuery(`SELECT .* FROM "products" ORDER BY created_at DESC`).
		WillReturnRows(baseProductRows(id, now))

	products, err := repo.List(context.Background(), catalog.ProductFilter{})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, id, products[0].ID)
	assert.True(t, products[0].Price.Equal(decimal.RequireFromString("250")))
	assert.True(t, repo.Degraded())

	// Second list within the recheck window goes straight to base columns
	mock.ExpectQuery(`SELECT .* FROM "products" ORDER BY created_at DESC`).
		WillReturnRows(baseProductRows(id, now))
	_, err = repo.List(context.Background(), catalog.ProductFilter{})
	require.NoError(t, err)

	// After the window the full column set is tried again
	clock = now.Add(2 * time.Minute)
	assert.False(t, repo.Degraded())
	mock.ExpectQuery(`SELECT .*"image_version".* FROM "products"`).WillReturnError(undefined)
	mock.ExpectQuery(`SELECT .* FROM "products" ORDER BY created_at DESC`).
		WillReturnRows(baseProductRows(id, now))
	_, err = repo.List(context.Background(), catalog.ProductFilter{})
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormProductRepository_OtherErrorsAreReturned(t *testing.T) {
	repo, mock, mockDB := newMockProductRepository(t)
	defer mockDB.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT .* FROM "products"`).WillReturnError(boom)

	_, err := repo.List(context.Background(), catalog.ProductFilter{})
	assert.ErrorIs(t, err, boom)
	assert.False(t, repo.Degraded())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUndefinedColumn(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"postgres 42703", &pgconn.PgError{Code: "42703"}, true},
		{"postgres other code", &pgconn.PgError{Code: "23505"}, false},
		{"wrapped postgres", errors.Join(errors.New("query"), &pgconn.PgError{Code: "42703"}), true},
		{"sqlite select", errors.New("no such column: image_version"), true},
		{"sqlite insert", errors.New("table products has no column named images"), true},
		{"unrelated", errors.New("timeout"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsUndefinedColumn(tt.err))
		})
	}
}
