package database

import (
	"fmt"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

func Connect(cfg config.DatabaseConfig, log *zap.Logger, m *metrics.Collector) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:    true,
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN())
	default:
		dialector = postgres.New(postgres.Config{DSN: cfg.DSN()})
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := registerCallbacks(db, log, m, cfg.SlowQueryThreshold); err != nil {
		return nil, fmt.Errorf("registering query callbacks: %w", err)
	}

	return db, nil
}

func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations", zap.String("dialect", db.Dialector.Name()))
	start := time.Now()

	models := []any{
		&domain.User{},
		&domain.Session{},
		&domain.AuditLog{},
		&patient.Patient{},
		&appointment.Appointment{},
		&treatment.Treatment{},
	}

	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	createIndexes(db, log)

	if IsPostgres(db) {
		if err := createScheduleExclusion(db); err != nil {
			// The advisory lock still serializes writers; the constraint is the backstop.
			log.Warn("schedule exclusion constraint not installed", zap.Error(err))
		}
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB, log *zap.Logger) {
	indexes := []struct {
		name  string
		query string
	}{
		{
			name:  "idx_appointments_dentist_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_dentist_schedule ON appointments (dentist_id, appointment_date, ends_at) WHERE status NOT IN ('cancelada', 'ausente')`,
		},
		{
			name:  "idx_appointments_patient_date",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_patient_date ON appointments (patient_id, appointment_date)`,
		},
		{
			name:  "idx_sessions_user_expiry",
			query: `CREATE INDEX IF NOT EXISTS idx_sessions_user_expiry ON sessions (user_id, expires_at)`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			log.Warn("creating index failed", zap.String("index", idx.name), zap.Error(err))
		}
	}
}

// createScheduleExclusion makes overlapping active appointments for one
// dentist impossible at the storage level. Violations surface as SQLSTATE 23P01.
func createScheduleExclusion(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS btree_gist`).Error; err != nil {
		return fmt.Errorf("creating btree_gist extension: %w", err)
	}

	return db.Exec(`
DO $$
BEGIN
	IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = 'appointments_no_overlap') THEN
		ALTER TABLE appointments ADD CONSTRAINT appointments_no_overlap
			EXCLUDE USING gist (
				dentist_id WITH =,
				tstzrange(appointment_date, ends_at, '[)') WITH &&
			) WHERE (status NOT IN ('cancelada', 'ausente'));
	END IF;
END
$$;`).Error
}
