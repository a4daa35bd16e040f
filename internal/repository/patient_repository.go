package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"gorm.io/gorm"
)

type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, p *patient.Patient) error {
	if err := conn(ctx, r.db).Omit("User").Create(p).Error; err != nil {
		return fmt.Errorf("inserting patient: %w", err)
	}
	return nil
}

func (r *PatientRepository) GetByID(ctx context.Context, id int64) (*patient.Patient, error) {
	return r.first(ctx, "patients.id = ?", id)
}

func (r *PatientRepository) GetByUserID(ctx context.Context, userID int64) (*patient.Patient, error) {
	return r.first(ctx, "patients.user_id = ?", userID)
}

func (r *PatientRepository) first(ctx context.Context, where string, arg any) (*patient.Patient, error) {
	var p patient.Patient
	err := conn(ctx, r.db).Preload("User").Where(where, arg).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, patient.ErrPatientNotFound
		}
		return nil, fmt.Errorf("loading patient: %w", err)
	}
	return &p, nil
}

func (r *PatientRepository) Save(ctx context.Context, p *patient.Patient, columns []string) error {
	if len(columns) == 0 {
		return nil
	}
	cols := append([]string{"updated_at"}, columns...)
	res := conn(ctx, r.db).Model(p).Omit("User").Select(cols).Updates(p)
	if res.Error != nil {
		return fmt.Errorf("updating patient %d: %w", p.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return patient.ErrPatientNotFound
	}
	return nil
}

func (r *PatientRepository) List(ctx context.Context, q *patient.ListPatientsQuery) ([]*patient.Patient, error) {
	tx := conn(ctx, r.db).
		Preload("User").
		Joins("JOIN users ON users.id = patients.user_id")

	if q.PatientID != nil {
		tx = tx.Where("patients.id = ?", *q.PatientID)
	}
	if q.DentistID != nil {
		tx = tx.Where("EXISTS (SELECT 1 FROM appointments a WHERE a.patient_id = patients.id AND a.dentist_id = ?)", *q.DentistID)
	}

	var patients []*patient.Patient
	if err := tx.Order("users.display_name ASC").Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("listing patients: %w", err)
	}
	return patients, nil
}
