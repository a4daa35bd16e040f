package database

import (
	"errors"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const startedAtKey = "dentaflow:started_at"

// registerCallbacks times every statement, feeds the query histogram and
// warns about statements slower than the threshold.
func registerCallbacks(db *gorm.DB, log *zap.Logger, m *metrics.Collector, slow time.Duration) error {
	before := func(tx *gorm.DB) {
		tx.InstanceSet(startedAtKey, time.Now())
	}

	after := func(operation string) func(*gorm.DB) {
		return func(tx *gorm.DB) {
			v, ok := tx.InstanceGet(startedAtKey)
			if !ok {
				return
			}
			started, ok := v.(time.Time)
			if !ok {
				return
			}
			elapsed := time.Since(started)

			table := tx.Statement.Table
			if table == "" {
				table = "raw"
			}
			if m != nil {
				m.DBQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
			}
			if slow > 0 && elapsed > slow {
				log.Warn("slow query",
					zap.String("operation", operation),
					zap.String("table", table),
					zap.Duration("elapsed", elapsed),
					zap.String("sql", tx.Statement.SQL.String()),
				)
			}
		}
	}

	cb := db.Callback()
	return errors.Join(
		cb.Create().Before("gorm:create").Register("dentaflow:before_create", before),
		cb.Create().After("gorm:create").Register("dentaflow:after_create", after("create")),
		cb.Query().Before("gorm:query").Register("dentaflow:before_query", before),
		cb.Query().After("gorm:query").Register("dentaflow:after_query", after("query")),
		cb.Update().Before("gorm:update").Register("dentaflow:before_update", before),
		cb.Update().After("gorm:update").Register("dentaflow:after_update", after("update")),
		cb.Delete().Before("gorm:delete").Register("dentaflow:before_delete", before),
		cb.Delete().After("gorm:delete").Register("dentaflow:after_delete", after("delete")),
		cb.Row().Before("gorm:row").Register("dentaflow:before_row", before),
		cb.Row().After("gorm:row").Register("dentaflow:after_row", after("row")),
		cb.Raw().Before("gorm:raw").Register("dentaflow:before_raw", before),
		cb.Raw().After("gorm:raw").Register("dentaflow:after_raw", after("raw")),
	)
}
