package patient

import (
	"context"
)

type Repository interface {
	// Create persists a new patient profile for an existing user.
	Create(ctx context.Context, p *Patient) error

	// GetByID retrieves a patient with its user. Returns ErrPatientNotFound if not found.
	GetByID(ctx context.Context, id int64) (*Patient, error)

	// GetByUserID retrieves the profile owned by a user. Returns ErrPatientNotFound if not found.
	GetByUserID(ctx context.Context, userID int64) (*Patient, error)

	// Save writes the given columns of an existing profile.
	Save(ctx context.Context, p *Patient, columns []string) error

	// List returns patients ordered by the user's display name.
	List(ctx context.Context, q *ListPatientsQuery) ([]*Patient, error)
}
