package database_test

import (
	"testing"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/database/databasetest"
	"go.uber.org/zap"
)

func TestMigrate_SQLite(t *testing.T) {
	db := databasetest.New(t)

	if database.IsPostgres(db) {
		t.Fatal("expected sqlite dialect")
	}

	for _, table := range []string{"users", "sessions", "audit_logs", "patients", "appointments", "treatments"} {
		if !db.Migrator().HasTable(table) {
			t.Errorf("table %s missing", table)
		}
	}

	var count int64
	if err := db.Raw(`SELECT count(*) FROM sqlite_master WHERE type = 'index' AND name = 'idx_appointments_dentist_schedule'`).Scan(&count).Error; err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Error("schedule index missing")
	}

	// Re-running is harmless.
	if err := database.Migrate(db, zap.NewNop()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
