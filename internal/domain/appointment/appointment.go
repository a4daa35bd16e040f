package appointment

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
)

type Status string

const (
	StatusScheduled Status = "programada"
	StatusConfirmed Status = "confirmada"
	StatusCompleted Status = "completada"
	StatusCancelled Status = "cancelada"
	StatusNoShow    Status = "ausente"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow}

// FreeingStatuses release the dentist's calendar slot.
var FreeingStatuses = []Status{StatusCancelled, StatusNoShow}

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// OccupiesSlot reports whether an appointment in this status blocks overlapping bookings.
func (s Status) OccupiesSlot() bool {
	return s != StatusCancelled && s != StatusNoShow
}

// State transitions:
//
//	programada → confirmada → completada
//	programada | confirmada → cancelada
//	programada | confirmada → ausente
var transitions = map[Status][]Status{
	StatusScheduled: {StatusConfirmed, StatusCancelled, StatusNoShow},
	StatusConfirmed: {StatusCompleted, StatusCancelled, StatusNoShow},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusNoShow:    {},
}

// CanTransition reports whether the table allows moving from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	AppointmentDate time.Time `gorm:"column:appointment_date;not null;index" json:"appointmentDate"`
	DurationMinutes int       `gorm:"column:duration_minutes;not null;default:30" json:"durationMinutes"`
	// EndsAt is AppointmentDate + DurationMinutes, kept in a column so overlap
	// checks and the exclusion constraint can use it directly.
	EndsAt time.Time `gorm:"column:ends_at;not null" json:"endsAt"`

	DentistID int64  `gorm:"column:dentist_id;not null;index" json:"dentistId"`
	PatientID int64  `gorm:"column:patient_id;not null;index" json:"patientId"`
	Status    Status `gorm:"column:status;type:varchar(20);not null;default:'programada';index" json:"status"`

	Reason *string `gorm:"column:reason;type:text" json:"reason"`
	Notes  *string `gorm:"column:notes;type:text" json:"notes"`

	CancelledAt *time.Time `gorm:"column:cancelled_at" json:"cancelledAt,omitempty"`
	CancelledBy *int64     `gorm:"column:cancelled_by" json:"cancelledBy,omitempty"`
	CompletedAt *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`

	CreatedBy int64 `gorm:"column:created_by;not null" json:"createdBy"`

	Dentist *domain.User     `gorm:"foreignKey:DentistID" json:"-"`
	Patient *patient.Patient `gorm:"foreignKey:PatientID" json:"-"`
}

func (Appointment) TableName() string {
	return "appointments"
}

// Overlaps reports whether the half-open intervals [aStart, aEnd) and [bStart, bEnd) intersect.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Window returns the effective interval for a start and a duration.
func Window(start time.Time, durationMinutes int) (time.Time, time.Time) {
	start = start.UTC().Truncate(time.Second)
	return start, start.Add(time.Duration(durationMinutes) * time.Minute)
}

// Reschedule moves the appointment and recomputes its end.
func (a *Appointment) Reschedule(start time.Time, durationMinutes int) {
	a.AppointmentDate, a.EndsAt = Window(start, durationMinutes)
	a.DurationMinutes = durationMinutes
}

func (a *Appointment) CanTransitionTo(newStatus Status) bool {
	return CanTransition(a.Status, newStatus)
}

// TransitionTo applies a status change validated against the transition table.
// Moving to the current status is a no-op.
func (a *Appointment) TransitionTo(newStatus Status, by int64) error {
	if !newStatus.IsValid() {
		return ErrInvalidStatus
	}
	if a.Status == newStatus {
		return nil
	}
	if !a.CanTransitionTo(newStatus) {
		return &TransitionError{From: a.Status, To: newStatus}
	}

	now := time.Now().UTC()
	switch newStatus {
	case StatusCancelled:
		a.CancelledAt = &now
		a.CancelledBy = &by
	case StatusCompleted:
		a.CompletedAt = &now
	}
	a.Status = newStatus
	return nil
}

// Cancel works from any status other than cancelada, which makes it the one
// way out of a terminal status. It reports whether anything changed.
func (a *Appointment) Cancel(by int64) bool {
	if a.Status == StatusCancelled {
		return false
	}
	now := time.Now().UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &now
	a.CancelledBy = &by
	return true
}

// Confirm only succeeds from programada.
func (a *Appointment) Confirm(by int64) error {
	if a.Status != StatusScheduled {
		return &TransitionError{From: a.Status, To: StatusConfirmed}
	}
	return a.TransitionTo(StatusConfirmed, by)
}

type CreateAppointmentCommand struct {
	AppointmentDate time.Time
	DurationMinutes int
	DentistID       int64
	// PatientID is optional for patients booking for themselves.
	PatientID *int64
	Reason    *string
	Notes     *string
}

type UpdateAppointmentCommand struct {
	ID              int64
	AppointmentDate *time.Time
	DurationMinutes *int
	Reason          *string
	Notes           *string
	Status          *Status
}

// ChangesWindow reports whether the update touches the time window.
func (c *UpdateAppointmentCommand) ChangesWindow() bool {
	return c.AppointmentDate != nil || c.DurationMinutes != nil
}

// ChangesStatus reports whether the update asks for a different status than current.
func (c *UpdateAppointmentCommand) ChangesStatus(current Status) bool {
	return c.Status != nil && *c.Status != current
}

type ListAppointmentsQuery struct {
	DentistID *int64
	PatientID *int64
	From      *time.Time
	To        *time.Time
	Statuses  []Status
}
