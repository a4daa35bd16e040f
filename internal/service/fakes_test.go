package service

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/config"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/treatment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/lock"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/metrics"
	"go.uber.org/zap"
)

var (
	_ UserRepository         = memUsers{}
	_ patient.Repository     = memPatients{}
	_ appointment.Repository = memAppointments{}
	_ treatment.Repository   = memTreatments{}
	_ SessionRepository      = memSessions{}
	_ Transactor             = passTx{}
	_ AuditRepository        = (*memAudit)(nil)
)

// store backs every in-memory repository; it hands out copies like a database would.
type store struct {
	mu       sync.Mutex
	nextID   int64
	users    map[int64]*domain.User
	patients map[int64]*patient.Patient
	appts    map[int64]*appointment.Appointment
	sessions map[string]*domain.Session
	treats   map[int64]int64
}

func newStore() *store {
	return &store{
		users:    map[int64]*domain.User{},
		patients: map[int64]*patient.Patient{},
		appts:    map[int64]*appointment.Appointment{},
		sessions: map[string]*domain.Session{},
		treats:   map[int64]int64{},
	}
}

func (s *store) id() int64 {
	s.nextID++
	return s.nextID
}

type memUsers struct{ *store }

func (r memUsers) Create(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == u.Email {
			return domain.ErrEmailTaken
		}
	}
	u.ID = r.id()
	c := *u
	r.users[u.ID] = &c
	return nil
}

func (r memUsers) GetByID(_ context.Context, id int64) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (r memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			c := *u
			return &c, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (r memUsers) ListByRole(_ context.Context, role domain.Role) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.User
	for _, u := range r.users {
		if u.Role == role {
			c := *u
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *domain.User) int {
		if a.DisplayName < b.DisplayName {
			return -1
		}
		if a.DisplayName > b.DisplayName {
			return 1
		}
		return 0
	})
	return out, nil
}

func (r memUsers) UpdateDisplayName(_ context.Context, id int64, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return domain.ErrUserNotFound
	}
	u.DisplayName = name
	return nil
}

func (r memUsers) RecordLoginFailure(_ context.Context, id int64, maxAttempts int, now, lockedUntil time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	if u.LockedUntil != nil && !u.LockedUntil.After(now) {
		u.FailedLoginCount = 0
		u.LockedUntil = nil
	}
	u.FailedLoginCount++
	if u.FailedLoginCount >= maxAttempts {
		t := lockedUntil
		u.LockedUntil = &t
	}
	return nil
}

func (r memUsers) RecordLoginSuccess(_ context.Context, id int64, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[id]
	u.FailedLoginCount = 0
	u.LockedUntil = nil
	u.LastLoginAt = &at
	return nil
}

type memPatients struct{ *store }

func (r memPatients) Create(_ context.Context, p *patient.Patient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p.ID = r.id()
	c := *p
	c.User = nil
	r.patients[p.ID] = &c
	return nil
}

func (r memPatients) withUser(p *patient.Patient) *patient.Patient {
	c := *p
	if u, ok := r.users[p.UserID]; ok {
		uc := *u
		c.User = &uc
	}
	return &c
}

func (r memPatients) GetByID(_ context.Context, id int64) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, patient.ErrPatientNotFound
	}
	return r.withUser(p), nil
}

func (r memPatients) GetByUserID(_ context.Context, userID int64) (*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.patients {
		if p.UserID == userID {
			return r.withUser(p), nil
		}
	}
	return nil, patient.ErrPatientNotFound
}

func (r memPatients) Save(_ context.Context, p *patient.Patient, _ []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *p
	c.User = nil
	r.patients[p.ID] = &c
	return nil
}

func (r memPatients) List(_ context.Context, q *patient.ListPatientsQuery) ([]*patient.Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*patient.Patient
	for _, p := range r.patients {
		if q.PatientID != nil && p.ID != *q.PatientID {
			continue
		}
		if q.DentistID != nil && !r.hasAppointment(*q.DentistID, p.ID) {
			continue
		}
		out = append(out, r.withUser(p))
	}
	slices.SortFunc(out, func(a, b *patient.Patient) int {
		switch {
		case a.DisplayName() < b.DisplayName():
			return -1
		case a.DisplayName() > b.DisplayName():
			return 1
		}
		return 0
	})
	return out, nil
}

func (r memPatients) hasAppointment(dentistID, patientID int64) bool {
	for _, a := range r.appts {
		if a.DentistID == dentistID && a.PatientID == patientID {
			return true
		}
	}
	return false
}

type memAppointments struct{ *store }

func (r memAppointments) Create(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a.ID = r.id()
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	c := *a
	r.appts[a.ID] = &c
	return nil
}

func (r memAppointments) GetByID(_ context.Context, id int64) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appts[id]
	if !ok {
		return nil, appointment.ErrAppointmentNotFound
	}
	c := *a
	return &c, nil
}

func (r memAppointments) Save(_ context.Context, a *appointment.Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appts[a.ID]; !ok {
		return appointment.ErrAppointmentNotFound
	}
	a.UpdatedAt = time.Now().UTC()
	c := *a
	r.appts[a.ID] = &c
	return nil
}

func (r memAppointments) List(_ context.Context, q *appointment.ListAppointmentsQuery) ([]*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*appointment.Appointment{}
	for _, a := range r.appts {
		if q.DentistID != nil && a.DentistID != *q.DentistID {
			continue
		}
		if q.PatientID != nil && a.PatientID != *q.PatientID {
			continue
		}
		if q.From != nil && a.AppointmentDate.Before(*q.From) {
			continue
		}
		if q.To != nil && a.AppointmentDate.After(*q.To) {
			continue
		}
		if len(q.Statuses) > 0 && !slices.Contains(q.Statuses, a.Status) {
			continue
		}
		c := *a
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *appointment.Appointment) int {
		return a.AppointmentDate.Compare(b.AppointmentDate)
	})
	return out, nil
}

func (r memAppointments) LockDentistSchedule(context.Context, int64) error { return nil }

func (r memAppointments) HasConflict(_ context.Context, dentistID int64, start, end time.Time, excludeID *int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.appts {
		if a.DentistID != dentistID || !a.Status.OccupiesSlot() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if appointment.Overlaps(a.AppointmentDate, a.EndsAt, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (r memAppointments) CountForDentist(_ context.Context, dentistID int64, from, to *time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, a := range r.appts {
		if a.DentistID != dentistID || !a.Status.OccupiesSlot() {
			continue
		}
		if from != nil && a.AppointmentDate.Before(*from) {
			continue
		}
		if to != nil && !a.AppointmentDate.Before(*to) {
			continue
		}
		n++
	}
	return n, nil
}

func (r memAppointments) CountDistinctPatients(_ context.Context, dentistID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[int64]bool{}
	for _, a := range r.appts {
		if a.DentistID == dentistID {
			seen[a.PatientID] = true
		}
	}
	return int64(len(seen)), nil
}

func (r memAppointments) NextForPatient(_ context.Context, patientID int64, after time.Time) (*appointment.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var next *appointment.Appointment
	for _, a := range r.appts {
		if a.PatientID != patientID || !a.Status.OccupiesSlot() || !a.AppointmentDate.After(after) {
			continue
		}
		if next == nil || a.AppointmentDate.Before(next.AppointmentDate) {
			next = a
		}
	}
	if next == nil {
		return nil, nil
	}
	c := *next
	return &c, nil
}

type memTreatments struct{ *store }

func (r memTreatments) CountForPatient(_ context.Context, patientID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.treats[patientID], nil
}

type memSessions struct{ *store }

func (r memSessions) Create(_ context.Context, s *domain.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.sessions[s.ID] = &c
	return nil
}

func (r memSessions) Get(_ context.Context, id string) (*domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func (r memSessions) Touch(_ context.Context, id string, lastAccessed, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok {
		s.LastAccessed = lastAccessed
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (r memSessions) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

func (r memSessions) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for id, s := range r.sessions {
		if s.IsExpired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// passTx runs fn directly; the in-memory store has no rollback.
type passTx struct{}

func (passTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memAudit struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

func (r *memAudit) Create(_ context.Context, e *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
	return nil
}

func (r *memAudit) all() []*domain.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.entries)
}

type harness struct {
	store        *store
	audit        *memAudit
	auditSvc     *AuditService
	metrics      *metrics.Collector
	sessions     *SessionService
	appointments *AppointmentService
	patients     *PatientService
	auth         *AuthService
	dashboard    *DashboardService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	st := newStore()
	log := zap.NewNop()
	m := metrics.NewCollector("test")
	audit := &memAudit{}
	auditSvc := newAuditService(audit, m, log, 64)

	sessCfg := config.SessionConfig{
		Secret:             "test-secret-that-is-long-enough-for-hs256",
		Issuer:             "dentaflow-test",
		TTL:                7 * 24 * time.Hour,
		CleanupProbability: 0,
	}
	sessions := NewSessionService(memSessions{st}, memUsers{st}, memPatients{st}, auth.NewTokenManager(sessCfg), sessCfg, m, log)

	h := &harness{
		store:    st,
		audit:    audit,
		auditSvc: auditSvc,
		metrics:  m,
		sessions: sessions,
		appointments: NewAppointmentService(AppointmentDeps{
			Appointments: memAppointments{st},
			Patients:     memPatients{st},
			Users:        memUsers{st},
			Tx:           passTx{},
			Locker:       lock.NewLocal(),
			Audit:        auditSvc,
			Metrics:      m,
		}, log),
		patients:  NewPatientService(memPatients{st}, memUsers{st}, passTx{}, sessions, nil, auditSvc, m, log),
		auth:      NewAuthService(memUsers{st}, passTx{}, sessions, auditSvc, m, log),
		dashboard: NewDashboardService(memAppointments{st}, memTreatments{st}, time.UTC),
	}
	t.Cleanup(auditSvc.Shutdown)
	return h
}

func (h *harness) user(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	u := &domain.User{Email: email, DisplayName: email, Role: role}
	if err := (memUsers{h.store}).Create(context.Background(), u); err != nil {
		t.Fatal(err)
	}
	return u
}

// patientCaller creates a patient user with a profile and returns its caller.
func (h *harness) patientCaller(t *testing.T, email string) domain.Caller {
	t.Helper()
	u := h.user(t, email, domain.RolePatient)
	p := &patient.Patient{UserID: u.ID, BirthDate: time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC)}
	if err := (memPatients{h.store}).Create(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return domain.Caller{UserID: u.ID, Role: domain.RolePatient, PatientID: &p.ID}
}

func (h *harness) caller(t *testing.T, email string, role domain.Role) domain.Caller {
	t.Helper()
	u := h.user(t, email, role)
	return domain.Caller{UserID: u.ID, Role: role}
}

func ptr[T any](v T) *T { return &v }
