package appointment

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	Save(ctx context.Context, a *Appointment) error

	// List returns appointments ordered by AppointmentDate ascending with
	// Dentist and Patient.User preloaded.
	List(ctx context.Context, q *ListAppointmentsQuery) ([]*Appointment, error)

	// LockDentistSchedule serializes schedule writes for one dentist for the
	// rest of the current transaction. It is a no-op where the store has no
	// advisory locks.
	LockDentistSchedule(ctx context.Context, dentistID int64) error

	// HasConflict checks whether a dentist already has a slot-occupying
	// appointment overlapping [start, end).
	HasConflict(ctx context.Context, dentistID int64, start, end time.Time, excludeID *int64) (bool, error)

	CountForDentist(ctx context.Context, dentistID int64, from, to *time.Time) (int64, error)
	CountDistinctPatients(ctx context.Context, dentistID int64) (int64, error)
	NextForPatient(ctx context.Context, patientID int64, after time.Time) (*Appointment, error)
}
