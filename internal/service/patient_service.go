package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type PatientService struct {
	repo     patient.Repository
	users    UserRepository
	tx       Transactor
	sessions *SessionService
	policy   *Policy
	audit    *AuditService
	metrics  *metrics.Collector
	log      *zap.Logger
}

func NewPatientService(
	repo patient.Repository,
	users UserRepository,
	tx Transactor,
	sessions *SessionService,
	policy *Policy,
	audit *AuditService,
	m *metrics.Collector,
	log *zap.Logger,
) *PatientService {
	if policy == nil {
		policy = DefaultPolicy()
	}
	return &PatientService{
		repo:     repo,
		users:    users,
		tx:       tx,
		sessions: sessions,
		policy:   policy,
		audit:    audit,
		metrics:  m,
		log:      log,
	}
}

// Register creates a patient account, its profile and a session in one transaction.
func (s *PatientService) Register(ctx context.Context, cmd *patient.RegisterPatientCommand) (*domain.User, *patient.Patient, *IssuedSession, error) {
	ctx, span := tracer.Start(ctx, "PatientService.Register")
	var err error
	defer func() { endSpan(span, err) }()

	cmd.Normalize()
	if err = validateRegistration(cmd); err != nil {
		return nil, nil, nil, err
	}

	hash, err := auth.HashPassword(cmd.Password)
	if err != nil {
		return nil, nil, nil, err
	}

	u := &domain.User{
		Email:        cmd.Email,
		PasswordHash: hash,
		DisplayName:  cmd.DisplayName,
		Role:         domain.RolePatient,
	}
	p := &patient.Patient{
		Address:               cmd.Address,
		Phone:                 cmd.Phone,
		BirthDate:             cmd.BirthDate.UTC(),
		Allergies:             trimmed(cmd.Allergies),
		MedicalHistory:        trimmed(cmd.MedicalHistory),
		EmergencyContactName:  cmd.EmergencyContactName,
		EmergencyContactPhone: cmd.EmergencyContactPhone,
	}

	var issued *IssuedSession
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.users.Create(ctx, u); err != nil {
			return err
		}
		p.UserID = u.ID
		if err := s.repo.Create(ctx, p); err != nil {
			return fmt.Errorf("creating patient profile: %w", err)
		}
		var err error
		issued, err = s.sessions.Start(ctx, u.ID)
		return err
	})
	if err != nil {
		return nil, nil, nil, err
	}
	p.User = u

	if s.metrics != nil {
		s.metrics.PatientsRegisteredTotal.Inc()
	}
	span.SetAttributes(attribute.Int64("patient.id", p.ID))
	s.audit.LogAsync(AuditEntry{
		Caller:       domain.Caller{UserID: u.ID, Role: u.Role},
		Action:       domain.ActionCreate,
		ResourceType: "patient",
		ResourceID:   strconv.FormatInt(p.ID, 10),
	})
	s.log.Info("patient registered", zap.Int64("patient_id", p.ID), zap.Int64("user_id", u.ID))
	return u, p, issued, nil
}

// GetProfile loads a profile. Patients read their own; other roles must name one.
func (s *PatientService) GetProfile(ctx context.Context, caller domain.Caller, patientID *int64) (*patient.Patient, error) {
	ctx, span := tracer.Start(ctx, "PatientService.GetProfile")
	var err error
	defer func() { endSpan(span, err) }()

	id, err := s.targetPatient(caller, patientID)
	if err != nil {
		return nil, err
	}
	if err = s.policy.AuthorizePatient(caller, ActionViewPatient, id); err != nil {
		return nil, err
	}

	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionRead,
		ResourceType: "patient",
		ResourceID:   strconv.FormatInt(id, 10),
	})
	return p, nil
}

// UpdateProfile writes the supplied fields. The display name lives on the
// user row and is updated in the same transaction.
func (s *PatientService) UpdateProfile(ctx context.Context, caller domain.Caller, cmd *patient.UpdatePatientCommand) (*patient.Patient, error) {
	ctx, span := tracer.Start(ctx, "PatientService.UpdateProfile")
	var err error
	defer func() { endSpan(span, err) }()

	id, err := s.targetPatient(caller, cmd.PatientID)
	if err != nil {
		return nil, err
	}
	if err = s.policy.AuthorizePatient(caller, ActionUpdatePatient, id); err != nil {
		return nil, err
	}
	if err = validateProfileUpdate(cmd); err != nil {
		return nil, err
	}

	var p *patient.Patient
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if cmd.DisplayName != nil {
			name := strings.TrimSpace(*cmd.DisplayName)
			if err := s.users.UpdateDisplayName(ctx, p.UserID, name); err != nil {
				return err
			}
			if p.User != nil {
				p.User.DisplayName = name
			}
		}
		if columns := cmd.Apply(p); len(columns) > 0 {
			return s.repo.Save(ctx, p, columns)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.LogAsync(AuditEntry{
		Caller:       caller,
		Action:       domain.ActionUpdate,
		ResourceType: "patient",
		ResourceID:   strconv.FormatInt(id, 10),
	})
	return p, nil
}

// List returns the patients visible to caller ordered by display name.
func (s *PatientService) List(ctx context.Context, caller domain.Caller) ([]*patient.Patient, error) {
	ctx, span := tracer.Start(ctx, "PatientService.List")
	var err error
	defer func() { endSpan(span, err) }()

	q := &patient.ListPatientsQuery{}
	switch s.policy.Scope(caller.Role, ActionListPatients) {
	case ScopeNone:
		return []*patient.Patient{}, nil
	case ScopeOwn:
		switch caller.Role {
		case domain.RoleDentist:
			q.DentistID = &caller.UserID
		case domain.RolePatient:
			if caller.PatientID == nil {
				return []*patient.Patient{}, nil
			}
			q.PatientID = caller.PatientID
		default:
			return []*patient.Patient{}, nil
		}
	}

	out, err := s.repo.List(ctx, q)
	return out, err
}

func (s *PatientService) targetPatient(caller domain.Caller, requested *int64) (int64, error) {
	if requested != nil {
		return *requested, nil
	}
	if caller.Role == domain.RolePatient && caller.PatientID != nil {
		return *caller.PatientID, nil
	}
	if caller.Role == domain.RolePatient {
		return 0, patient.ErrPatientNotFound
	}
	return 0, patient.ErrPatientIDRequired
}

func validateRegistration(cmd *patient.RegisterPatientCommand) error {
	var fields []string
	if verr, ok := validateCredentials(cmd.Email, cmd.Password, cmd.DisplayName).(*ValidationError); ok {
		fields = append(fields, verr.Fields...)
	}
	for _, f := range []struct{ name, value string }{
		{"address", cmd.Address},
		{"phone", cmd.Phone},
		{"emergencyContactName", cmd.EmergencyContactName},
		{"emergencyContactPhone", cmd.EmergencyContactPhone},
	} {
		if f.value == "" {
			fields = append(fields, f.name+": is required")
		}
	}
	if cmd.BirthDate.IsZero() {
		fields = append(fields, "birthDate: is required")
	} else if cmd.BirthDate.After(time.Now()) {
		fields = append(fields, "birthDate: "+patient.ErrInvalidBirthDate.Error())
	}
	if len(fields) > 0 {
		return invalid(fields...)
	}
	return nil
}

func validateProfileUpdate(cmd *patient.UpdatePatientCommand) error {
	var fields []string
	if cmd.DisplayName != nil && strings.TrimSpace(*cmd.DisplayName) == "" {
		fields = append(fields, "displayName: must not be empty")
	}
	for _, f := range []struct {
		name  string
		value *string
	}{
		{"address", cmd.Address},
		{"phone", cmd.Phone},
		{"emergencyContactName", cmd.EmergencyContactName},
		{"emergencyContactPhone", cmd.EmergencyContactPhone},
	} {
		if f.value != nil && strings.TrimSpace(*f.value) == "" {
			fields = append(fields, f.name+": must not be empty")
		}
	}
	if cmd.BirthDate != nil && cmd.BirthDate.After(time.Now()) {
		fields = append(fields, "birthDate: "+patient.ErrInvalidBirthDate.Error())
	}
	if len(fields) > 0 {
		return invalid(fields...)
	}
	return nil
}
