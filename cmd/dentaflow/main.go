package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	v1 "github.com/dmehra2102/prod-golang-projects/dentaflow/internal/handler/v1"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/repository"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/database"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/logger"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/tracer"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	var configPath string
	root := &cobra.Command{
		Use:           "dentaflow",
		Short:         "Dental clinic appointment scheduling API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "optional config file (env vars take precedence)")

	root.AddCommand(
		serveCmd(&configPath),
		migrateCmd(&configPath),
		seedCmd(&configPath),
		purgeSessionsCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func serveCmd(configPath *string) *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), *configPath, migrate)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", true, "apply schema migrations before serving")
	return cmd
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply schema migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(*configPath, func(_ *config.Config, db *gorm.DB, log *zap.Logger) error {
				return database.Migrate(db, log)
			})
		},
	}
}

func seedCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo admin, dentist and patient accounts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(*configPath, func(_ *config.Config, db *gorm.DB, log *zap.Logger) error {
				if err := database.Migrate(db, log); err != nil {
					return err
				}
				seeder := service.NewSeeder(
					repository.NewUserRepository(db),
					repository.NewPatientRepository(db),
					repository.NewTransactor(db),
					log,
				)
				created, err := seeder.Seed(cmd.Context())
				if err != nil {
					return err
				}
				log.Info("seed complete", zap.Int("created", created))
				return nil
			})
		},
	}
}

func purgeSessionsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired login sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabase(*configPath, func(cfg *config.Config, db *gorm.DB, log *zap.Logger) error {
				users := repository.NewUserRepository(db)
				sessions := service.NewSessionService(
					repository.NewSessionRepository(db),
					users,
					repository.NewPatientRepository(db),
					auth.NewTokenManager(cfg.Session),
					cfg.Session,
					metrics.NewCollector(cfg.App.Name),
					log,
				)
				n, err := sessions.PurgeExpired(cmd.Context())
				if err != nil {
					return err
				}
				log.Info("expired sessions purged", zap.Int64("count", n))
				return nil
			})
		},
	}
}

// withDatabase loads config, builds a logger and opens the database for one-shot commands.
func withDatabase(configPath string, fn func(*config.Config, *gorm.DB, *zap.Logger) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	db, err := database.Connect(cfg.Database, log, metrics.NewCollector(cfg.App.Name))
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	return fn(cfg, db, log)
}

func runServer(ctx context.Context, configPath string, migrate bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting dentaflow",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("lock_backend", cfg.Scheduling.LockBackend),
	)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, err := tracer.Init(ctx, cfg.Tracing, cfg.App.Version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			log.Error("tracer shutdown failed", zap.Error(err))
		}
	}()

	m := metrics.NewCollector(cfg.App.Name)

	db, err := database.Connect(cfg.Database, log, m)
	if err != nil {
		return err
	}
	defer func() { _ = database.Close(db) }()

	if migrate {
		if err := database.Migrate(db, log); err != nil {
			return err
		}
	}

	locker, closeLocker, err := newLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeLocker(); err != nil {
			log.Error("closing schedule lock backend failed", zap.Error(err))
		}
	}()

	users := repository.NewUserRepository(db)
	patients := repository.NewPatientRepository(db)
	appointments := repository.NewAppointmentRepository(db)
	tx := repository.NewTransactor(db)

	audit := service.NewAuditService(repository.NewAuditRepository(db), m, log)
	defer audit.Shutdown()

	sessions := service.NewSessionService(repository.NewSessionRepository(db), users, patients,
		auth.NewTokenManager(cfg.Session), cfg.Session, m, log)
	policy := service.DefaultPolicy()

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("getting sql.DB: %w", err)
	}

	router := v1.NewRouter(v1.RouterDeps{
		Config:   cfg,
		Log:      log,
		Metrics:  m,
		DB:       sqlDB,
		Sessions: sessions,
		Auth:     service.NewAuthService(users, tx, sessions, audit, m, log),
		Appointments: service.NewAppointmentService(service.AppointmentDeps{
			Appointments:       appointments,
			Patients:           patients,
			Users:              users,
			Tx:                 tx,
			Locker:             locker,
			Policy:             policy,
			Audit:              audit,
			Metrics:            m,
			MaxDurationMinutes: cfg.Scheduling.MaxDurationMinutes,
		}, log),
		Patients:  service.NewPatientService(patients, users, tx, sessions, policy, audit, m, log),
		Dentists:  service.NewDentistService(users),
		Dashboard: service.NewDashboardService(appointments, repository.NewTreatmentRepository(db), cfg.Scheduling.Location()),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
		return err
	}
	log.Info("server stopped")
	return nil
}

// newLocker builds the configured schedule lock and a func that releases its backend.
func newLocker(ctx context.Context, cfg *config.Config, log *zap.Logger) (lock.Locker, func() error, error) {
	noClose := func() error { return nil }
	switch cfg.Scheduling.LockBackend {
	case config.LockBackendNone:
		return lock.Noop{}, noClose, nil
	case config.LockBackendRedis:
		client, err := lock.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return nil, nil, err
		}
		log.Info("using redis schedule lock", zap.String("addr", cfg.Redis.Addr))
		return lock.NewRedis(client, cfg.Scheduling.LockTTL), client.Close, nil
	default:
		return lock.NewLocal(), noClose, nil
	}
}
