package telemetry

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DefaultSlowQueryThreshold marks statements for the slow query counter
const DefaultSlowQueryThreshold = 200 * time.Millisecond

// DBMetricsPlugin is a GORM plugin that records statement latency into StoreMetrics
type DBMetricsPlugin struct {
	metrics       *StoreMetrics
	slowThreshold time.Duration
	logger        *zap.Logger
}

// NewDBMetricsPlugin creates the plugin. A zero threshold uses DefaultSlowQueryThreshold.
func NewDBMetricsPlugin(metrics *StoreMetrics, slowThreshold time.Duration, logger *zap.Logger) *DBMetricsPlugin {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slowThreshold <= 0 {
		slowThreshold = DefaultSlowQueryThreshold
	}
	return &DBMetricsPlugin{
		metrics:       metrics,
		slowThreshold: slowThreshold,
		logger:        logger,
	}
}

// Name returns the plugin name.
func (p *DBMetricsPlugin) Name() string {
	return "db_metrics"
}

// Initialize registers the before and after callbacks of every statement kind
func (p *DBMetricsPlugin) Initialize(db *gorm.DB) error {
	before := func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			ctx = context.Background()
		}
		db.Statement.Context = context.WithValue(ctx, dbMetricsStartTimeKey, time.Now())
	}
	after := func(operation string) func(*gorm.DB) {
		return func(db *gorm.DB) {
			op := operation
			if op == "" {
				op = detectOperationType(db.Statement.SQL.String())
			}
			p.record(db, op)
		}
	}

	cb := db.Callback()
	if err := cb.Create().Before("gorm:create").Register("db_metrics:before_create", before); err != nil {
		return err
	}
	if err := cb.Query().Before("gorm:query").Register("db_metrics:before_query", before); err != nil {
		return err
	}
	if err := cb.Update().Before("gorm:update").Register("db_metrics:before_update", before); err != nil {
		return err
	}
	if err := cb.Delete().Before("gorm:delete").Register("db_metrics:before_delete", before); err != nil {
		return err
	}
	if err := cb.Row().Before("gorm:row").Register("db_metrics:before_row", before); err != nil {
		return err
	}
	if err := cb.Raw().Before("gorm:raw").Register("db_metrics:before_raw", before); err != nil {
		return err
	}

	if err := cb.Create().After("gorm:create").Register("db_metrics:after_create", after("INSERT")); err != nil {
		return err
	}
	if err := cb.Query().After("gorm:query").Register("db_metrics:after_query", after("SELECT")); err != nil {
		return err
	}
	if err := cb.Update().After("gorm:update").Register("db_metrics:after_update", after("UPDATE")); err != nil {
		return err
	}
	if err := cb.Delete().After("gorm:delete").Register("db_metrics:after_delete", after("DELETE")); err != nil {
		return err
	}
	// row and raw statements carry their kind in the SQL text
	if err := cb.Row().After("gorm:row").Register("db_metrics:after_row", after("")); err != nil {
		return err
	}
	if err := cb.Raw().After("gorm:raw").Register("db_metrics:after_raw", after("")); err != nil {
		return err
	}

	p.logger.Info("Database metrics plugin initialized", zap.Duration("slow_query_threshold", p.slowThreshold))
	return nil
}

func (p *DBMetricsPlugin) record(db *gorm.DB, operation string) {
	var duration time.Duration
	if ctx := db.Statement.Context; ctx != nil {
		if start, ok := ctx.Value(dbMetricsStartTimeKey).(time.Time); ok {
			duration = time.Since(start)
		}
	}
	ok := db.Error == nil || errors.Is(db.Error, gorm.ErrRecordNotFound)
	p.metrics.RecordQuery(operation, db.Statement.Table, duration, ok, duration > p.slowThreshold)
}

// detectOperationType reads the statement kind from raw SQL
func detectOperationType(sql string) string {
	sql = strings.TrimSpace(strings.ToUpper(sql))

	switch {
	case strings.HasPrefix(sql, "SELECT"):
		return "SELECT"
	case strings.HasPrefix(sql, "INSERT"):
		return "INSERT"
	case strings.HasPrefix(sql, "UPDATE"):
		return "UPDATE"
	case strings.HasPrefix(sql, "DELETE"):
		return "DELETE"
	default:
		return "OTHER"
	}
}

type dbMetricsContextKey string

const dbMetricsStartTimeKey dbMetricsContextKey = "db_metrics_start_time"

// RegisterDBMetrics installs the query plugin on db and exports its pool statistics
func RegisterDBMetrics(db *gorm.DB, metrics *StoreMetrics, slowThreshold time.Duration, logger *zap.Logger) error {
	if metrics == nil {
		return nil
	}
	if err := db.Use(NewDBMetricsPlugin(metrics, slowThreshold, logger)); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return metrics.RegisterDBStats(sqlDB, db.Dialector.Name())
}
