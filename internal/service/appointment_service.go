package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type AppointmentService struct {
	repo        appointment.Repository
	patients    patient.Repository
	users       UserRepository
	tx          Transactor
	locker      lock.Locker
	policy      *Policy
	audit       *AuditService
	metrics     *metrics.Collector
	maxDuration int
	log         *zap.Logger
}

type AppointmentDeps struct {
	Appointments appointment.Repository
	Patients     patient.Repository
	Users        UserRepository
	Tx           Transactor
	Locker       lock.Locker
	Policy       *Policy
	Audit        *AuditService
	Metrics      *metrics.Collector
	// MaxDurationMinutes bounds durationMinutes on create and update.
	MaxDurationMinutes int
}

func NewAppointmentService(deps AppointmentDeps, log *zap.Logger) *AppointmentService {
	if deps.Locker == nil {
		deps.Locker = lock.Noop{}
	}
	if deps.Policy == nil {
		deps.Policy = DefaultPolicy()
	}
	if deps.MaxDurationMinutes <= 0 {
		deps.MaxDurationMinutes = 24 * 60
	}
	return &AppointmentService{
		repo:        deps.Appointments,
		patients:    deps.Patients,
		users:       deps.Users,
		tx:          deps.Tx,
		locker:      deps.Locker,
		policy:      deps.Policy,
		audit:       deps.Audit,
		metrics:     deps.Metrics,
		maxDuration: deps.MaxDurationMinutes,
		log:         log,
	}
}

// Create books a new appointment in status programada.
func (s *AppointmentService) Create(ctx context.Context, caller domain.Caller, cmd *appointment.CreateAppointmentCommand) (*appointment.Appointment, error) {
	ctx, span := tracer.Start(ctx, "AppointmentService.Create")
	var err error
	defer func() { endSpan(span, err) }()

	if s.policy.Scope(caller.Role, ActionCreateAppointment) == ScopeNone {
		err = ErrForbidden
		return nil, err
	}
	// Ownership first: a mis-targeted booking is Forbidden even when other fields are invalid.
	patientID, err := s.resolvePatientID(caller, cmd)
	if err != nil {
		return nil, err
	}
	if err = s.policy.AuthorizeAppointment(caller, ActionCreateAppointment, cmd.DentistID, patientID); err != nil {
		return nil, err
	}

	if err = s.validateWindow(cmd.AppointmentDate, cmd.DurationMinutes); err != nil {
		return nil, err
	}
	if cmd.DentistID <= 0 {
		err = invalid("dentistId: is required")
		return nil, err
	}
	if cmd.Reason == nil || strings.TrimSpace(*cmd.Reason) == "" {
		err = invalid("reason: is required")
		return nil, err
	}
	if err = s.checkParticipants(ctx, cmd.DentistID, patientID); err != nil {
		return nil, err
	}

	a := &appointment.Appointment{
		DentistID: cmd.DentistID,
		PatientID: patientID,
		Status:    appointment.StatusScheduled,
		Reason:    trimmed(cmd.Reason),
		Notes:     trimmed(cmd.Notes),
		CreatedBy: caller.UserID,
	}
	a.Reschedule(cmd.AppointmentDate, cmd.DurationMinutes)
	span.SetAttributes(
		attribute.Int64("appointment.dentist_id", a.DentistID),
		attribute.Int64("appointment.patient_id", a.PatientID),
	)

	err = s.withScheduleLock(ctx, a.DentistID, func(ctx context.Context) error {
		if err := s.checkConflict(ctx, a, nil); err != nil {
			return err
		}
		return s.repo.Create(ctx, a)
	})
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	s.count("create", a.Status)
	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionCreate,
		ResourceType: "appointment",
		ResourceID:   strconv.FormatInt(a.ID, 10),
	})
	s.log.Info("appointment created",
		zap.Int64("appointment_id", a.ID),
		zap.Int64("dentist_id", a.DentistID),
		zap.Time("starts_at", a.AppointmentDate),
	)
	return a, nil
}

// resolvePatientID applies the per-role rules for the patient an appointment is booked for.
func (s *AppointmentService) resolvePatientID(caller domain.Caller, cmd *appointment.CreateAppointmentCommand) (int64, error) {
	if caller.Role == domain.RolePatient {
		if caller.PatientID == nil {
			return 0, ErrForbidden
		}
		if cmd.PatientID != nil && *cmd.PatientID != *caller.PatientID {
			return 0, ErrForbidden
		}
		return *caller.PatientID, nil
	}
	if cmd.PatientID == nil || *cmd.PatientID <= 0 {
		return 0, invalid("patientId: is required")
	}
	return *cmd.PatientID, nil
}

func (s *AppointmentService) checkParticipants(ctx context.Context, dentistID, patientID int64) error {
	d, err := s.users.GetByID(ctx, dentistID)
	if errors.Is(err, domain.ErrUserNotFound) || (err == nil && d.Role != domain.RoleDentist) {
		return invalid("dentistId: does not reference a dentist")
	}
	if err != nil {
		return err
	}

	if _, err := s.patients.GetByID(ctx, patientID); err != nil {
		if errors.Is(err, patient.ErrPatientNotFound) {
			return invalid("patientId: does not reference a patient")
		}
		return err
	}
	return nil
}

// Update changes the window, text fields or status of an appointment. The
// conflict check only runs when the window actually moves.
func (s *AppointmentService) Update(ctx context.Context, caller domain.Caller, cmd *appointment.UpdateAppointmentCommand) (*appointment.Appointment, error) {
	ctx, span := tracer.Start(ctx, "AppointmentService.Update")
	span.SetAttributes(attribute.Int64("appointment.id", cmd.ID))
	var err error
	defer func() { endSpan(span, err) }()

	if cmd.Status != nil && !cmd.Status.IsValid() {
		err = appointment.ErrInvalidStatus
		return nil, err
	}
	if cmd.DurationMinutes != nil && (*cmd.DurationMinutes < 1 || *cmd.DurationMinutes > s.maxDuration) {
		err = s.durationError()
		return nil, err
	}
	if cmd.AppointmentDate != nil && cmd.AppointmentDate.IsZero() {
		err = invalid("appointmentDate: must be a valid instant")
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}
	if err = s.policy.Authorize(caller, ActionUpdateAppointment, current); err != nil {
		return nil, err
	}
	if cmd.ChangesStatus(current.Status) {
		if err = s.policy.Authorize(caller, ActionChangeStatus, current); err != nil {
			return nil, err
		}
	}

	var updated *appointment.Appointment
	mutate := func(ctx context.Context) error {
		a, err := s.repo.GetByID(ctx, cmd.ID)
		if err != nil {
			return err
		}
		if err := s.applyUpdate(ctx, caller, a, cmd); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, a); err != nil {
			return err
		}
		updated = a
		return nil
	}

	if cmd.ChangesWindow() {
		err = s.withScheduleLock(ctx, current.DentistID, mutate)
	} else {
		err = mutate(ctx)
	}
	if err != nil {
		s.countConflict(err)
		return nil, err
	}

	s.count("update", updated.Status)
	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: "appointment",
		ResourceID:   strconv.FormatInt(updated.ID, 10),
		Changes:      describeUpdate(cmd),
	})
	return updated, nil
}

func (s *AppointmentService) applyUpdate(ctx context.Context, caller domain.Caller, a *appointment.Appointment, cmd *appointment.UpdateAppointmentCommand) error {
	if cmd.Status != nil {
		if err := a.TransitionTo(*cmd.Status, caller.UserID); err != nil {
			return err
		}
	}
	if cmd.Reason != nil {
		a.Reason = trimmed(cmd.Reason)
	}
	if cmd.Notes != nil {
		a.Notes = trimmed(cmd.Notes)
	}

	if !cmd.ChangesWindow() {
		return nil
	}
	start, duration := a.AppointmentDate, a.DurationMinutes
	if cmd.AppointmentDate != nil {
		start = *cmd.AppointmentDate
	}
	if cmd.DurationMinutes != nil {
		duration = *cmd.DurationMinutes
	}

	newStart, newEnd := appointment.Window(start, duration)
	moved := !newStart.Equal(a.AppointmentDate) || !newEnd.Equal(a.EndsAt)
	a.Reschedule(start, duration)
	if !moved || !a.Status.OccupiesSlot() {
		return nil
	}
	return s.checkConflict(ctx, a, &a.ID)
}

// Cancel is idempotent: cancelling a cancelled appointment returns it
// unchanged with changed == false.
func (s *AppointmentService) Cancel(ctx context.Context, caller domain.Caller, id int64) (*appointment.Appointment, bool, error) {
	ctx, span := tracer.Start(ctx, "AppointmentService.Cancel")
	span.SetAttributes(attribute.Int64("appointment.id", id))
	var err error
	defer func() { endSpan(span, err) }()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if err = s.policy.Authorize(caller, ActionCancelAppointment, a); err != nil {
		return nil, false, err
	}

	if !a.Cancel(caller.UserID) {
		return a, false, nil
	}
	if err = s.repo.Save(ctx, a); err != nil {
		return nil, false, err
	}

	s.count("cancel", a.Status)
	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionCancel,
		ResourceType: "appointment",
		ResourceID:   strconv.FormatInt(a.ID, 10),
	})
	return a, true, nil
}

// Confirm moves an appointment from programada to confirmada.
func (s *AppointmentService) Confirm(ctx context.Context, caller domain.Caller, id int64) (*appointment.Appointment, error) {
	ctx, span := tracer.Start(ctx, "AppointmentService.Confirm")
	span.SetAttributes(attribute.Int64("appointment.id", id))
	var err error
	defer func() { endSpan(span, err) }()

	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err = s.policy.Authorize(caller, ActionConfirmAppointment, a); err != nil {
		return nil, err
	}
	if err = a.Confirm(caller.UserID); err != nil {
		return nil, err
	}
	if err = s.repo.Save(ctx, a); err != nil {
		return nil, err
	}

	s.count("confirm", a.Status)
	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionConfirm,
		ResourceType: "appointment",
		ResourceID:   strconv.FormatInt(a.ID, 10),
	})
	return a, nil
}

// List returns the appointments visible to caller, optionally bounded by
// start date and restricted to statuses. Roles without view rights get an
// empty list.
func (s *AppointmentService) List(ctx context.Context, caller domain.Caller, from, to *time.Time, statuses ...appointment.Status) ([]*appointment.Appointment, error) {
	ctx, span := tracer.Start(ctx, "AppointmentService.List")
	var err error
	defer func() { endSpan(span, err) }()

	for _, st := range statuses {
		if !st.IsValid() {
			err = invalid("status: must be one of programada, confirmada, completada, cancelada, ausente")
			return nil, err
		}
	}

	q := &appointment.ListAppointmentsQuery{From: from, To: to, Statuses: statuses}
	switch s.policy.Scope(caller.Role, ActionViewAppointment) {
	case ScopeNone:
		return []*appointment.Appointment{}, nil
	case ScopeOwn:
		switch caller.Role {
		case domain.RoleDentist:
			q.DentistID = &caller.UserID
		case domain.RolePatient:
			if caller.PatientID == nil {
				return []*appointment.Appointment{}, nil
			}
			q.PatientID = caller.PatientID
		default:
			return []*appointment.Appointment{}, nil
		}
	}

	out, err := s.repo.List(ctx, q)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("appointments.count", len(out)))
	return out, nil
}

// withScheduleLock serializes schedule writes for one dentist: the configured
// locker first, then a transaction holding the store's per-dentist lock.
func (s *AppointmentService) withScheduleLock(ctx context.Context, dentistID int64, fn func(ctx context.Context) error) error {
	started := time.Now()
	release, err := s.locker.Acquire(ctx, "schedule:"+strconv.FormatInt(dentistID, 10))
	if err != nil {
		return fmt.Errorf("acquiring schedule lock: %w", err)
	}
	defer release()
	if s.metrics != nil {
		s.metrics.ScheduleLockWait.Observe(time.Since(started).Seconds())
	}

	return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.LockDentistSchedule(ctx, dentistID); err != nil {
			return err
		}
		return fn(ctx)
	})
}

func (s *AppointmentService) checkConflict(ctx context.Context, a *appointment.Appointment, excludeID *int64) error {
	conflict, err := s.repo.HasConflict(ctx, a.DentistID, a.AppointmentDate, a.EndsAt, excludeID)
	if err != nil {
		return err
	}
	if conflict {
		return appointment.ErrAppointmentConflict
	}
	return nil
}

func (s *AppointmentService) validateWindow(start time.Time, duration int) error {
	var fields []string
	if start.IsZero() {
		fields = append(fields, "appointmentDate: is required")
	}
	if duration < 1 || duration > s.maxDuration {
		fields = append(fields, s.durationError().Fields...)
	}
	if len(fields) > 0 {
		return invalid(fields...)
	}
	return nil
}

func (s *AppointmentService) durationError() *ValidationError {
	return invalid(fmt.Sprintf("durationMinutes: must be between 1 and %d", s.maxDuration))
}

func (s *AppointmentService) count(op string, status appointment.Status) {
	if s.metrics != nil {
		s.metrics.AppointmentsTotal.WithLabelValues(op, string(status)).Inc()
	}
}

func (s *AppointmentService) countConflict(err error) {
	if s.metrics != nil && errors.Is(err, appointment.ErrAppointmentConflict) {
		s.metrics.SchedulingConflicts.Inc()
	}
}

func describeUpdate(cmd *appointment.UpdateAppointmentCommand) string {
	var parts []string
	if cmd.AppointmentDate != nil {
		parts = append(parts, "appointmentDate="+cmd.AppointmentDate.UTC().Format(time.RFC3339))
	}
	if cmd.DurationMinutes != nil {
		parts = append(parts, "durationMinutes="+strconv.Itoa(*cmd.DurationMinutes))
	}
	if cmd.Status != nil {
		parts = append(parts, "status="+string(*cmd.Status))
	}
	if cmd.Reason != nil {
		parts = append(parts, "reason")
	}
	if cmd.Notes != nil {
		parts = append(parts, "notes")
	}
	return strings.Join(parts, ",")
}

// trimmed returns nil for nil or blank input.
func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}
