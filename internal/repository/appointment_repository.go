package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/database"
	"gorm.io/gorm"
)

// scheduleLockKey names the advisory lock for one dentist's schedule. Postgres
// hashes it to a bigint with hashtextextended, so the full int64 id takes part.
func scheduleLockKey(dentistID int64) string {
	return "dentaflow:schedule:" + strconv.FormatInt(dentistID, 10)
}

type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := conn(ctx, r.db).Omit("Dentist", "Patient").Create(a).Error; err != nil {
		return fmt.Errorf("inserting appointment: %w", translateWriteError(err))
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (*appointment.Appointment, error) {
	var a appointment.Appointment
	if err := conn(ctx, r.db).First(&a, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, appointment.ErrAppointmentNotFound
		}
		return nil, fmt.Errorf("loading appointment %d: %w", id, err)
	}
	return &a, nil
}

func (r *AppointmentRepository) Save(ctx context.Context, a *appointment.Appointment) error {
	if err := conn(ctx, r.db).Omit("Dentist", "Patient").Save(a).Error; err != nil {
		return fmt.Errorf("saving appointment %d: %w", a.ID, translateWriteError(err))
	}
	return nil
}

func (r *AppointmentRepository) List(ctx context.Context, q *appointment.ListAppointmentsQuery) ([]*appointment.Appointment, error) {
	tx := conn(ctx, r.db).Preload("Dentist").Preload("Patient.User")

	if q.DentistID != nil {
		tx = tx.Where("dentist_id = ?", *q.DentistID)
	}
	if q.PatientID != nil {
		tx = tx.Where("patient_id = ?", *q.PatientID)
	}
	if q.From != nil {
		tx = tx.Where("appointment_date >= ?", q.From.UTC())
	}
	if q.To != nil {
		tx = tx.Where("appointment_date <= ?", q.To.UTC())
	}
	if len(q.Statuses) > 0 {
		tx = tx.Where("status IN ?", q.Statuses)
	}

	var out []*appointment.Appointment
	if err := tx.Order("appointment_date ASC").Order("id ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	return out, nil
}

func (r *AppointmentRepository) LockDentistSchedule(ctx context.Context, dentistID int64) error {
	tx := conn(ctx, r.db)
	if !database.IsPostgres(tx) {
		return nil
	}
	if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", scheduleLockKey(dentistID)).Error; err != nil {
		return fmt.Errorf("locking schedule of dentist %d: %w", dentistID, err)
	}
	return nil
}

func (r *AppointmentRepository) HasConflict(ctx context.Context, dentistID int64, start, end time.Time, excludeID *int64) (bool, error) {
	tx := conn(ctx, r.db).Model(&appointment.Appointment{}).
		Where("dentist_id = ?", dentistID).
		Where("status NOT IN ?", appointment.FreeingStatuses).
		Where("appointment_date < ? AND ends_at > ?", end.UTC(), start.UTC())

	if excludeID != nil {
		tx = tx.Where("id <> ?", *excludeID)
	}

	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return false, fmt.Errorf("checking schedule conflicts: %w", err)
	}
	return n > 0, nil
}

func (r *AppointmentRepository) CountForDentist(ctx context.Context, dentistID int64, from, to *time.Time) (int64, error) {
	tx := conn(ctx, r.db).Model(&appointment.Appointment{}).
		Where("dentist_id = ?", dentistID).
		Where("status NOT IN ?", appointment.FreeingStatuses)
	if from != nil {
		tx = tx.Where("appointment_date >= ?", from.UTC())
	}
	if to != nil {
		tx = tx.Where("appointment_date < ?", to.UTC())
	}

	var n int64
	if err := tx.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting dentist appointments: %w", err)
	}
	return n, nil
}

func (r *AppointmentRepository) CountDistinctPatients(ctx context.Context, dentistID int64) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&appointment.Appointment{}).
		Where("dentist_id = ?", dentistID).
		Distinct("patient_id").
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting dentist patients: %w", err)
	}
	return n, nil
}

func (r *AppointmentRepository) NextForPatient(ctx context.Context, patientID int64, after time.Time) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := conn(ctx, r.db).
		Where("patient_id = ?", patientID).
		Where("status NOT IN ?", appointment.FreeingStatuses).
		Where("appointment_date > ?", after.UTC()).
		Order("appointment_date ASC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("loading next appointment: %w", err)
	}
	return &a, nil
}
