package repository

import (
	"context"
	"fmt"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/treatment"
	"gorm.io/gorm"
)

type TreatmentRepository struct {
	db *gorm.DB
}

func NewTreatmentRepository(db *gorm.DB) *TreatmentRepository {
	return &TreatmentRepository{db: db}
}

func (r *TreatmentRepository) Create(ctx context.Context, t *treatment.Treatment) error {
	if err := conn(ctx, r.db).Create(t).Error; err != nil {
		return fmt.Errorf("inserting treatment: %w", err)
	}
	return nil
}

func (r *TreatmentRepository) CountForPatient(ctx context.Context, patientID int64) (int64, error) {
	var n int64
	err := conn(ctx, r.db).Model(&treatment.Treatment{}).Where("patient_id = ?", patientID).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting treatments: %w", err)
	}
	return n, nil
}
