// Package databasetest opens throwaway migrated SQLite databases for tests.
package databasetest

import (
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// New returns a migrated in-memory database private to the calling test.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := config.DatabaseConfig{
		Driver:             config.DriverSQLite,
		SQLitePath:         "file:" + uuid.NewString() + "?mode=memory&cache=shared",
		SlowQueryThreshold: time.Second,
	}

	log := zap.NewNop()
	db, err := database.Connect(cfg, log, metrics.NewCollector("dentaflow_test"))
	if err != nil {
		t.Fatalf("connecting test database: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })

	if err := database.Migrate(db, log); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}
