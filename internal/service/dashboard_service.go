package service

import (
	"context"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/treatment"
	"golang.org/x/sync/errgroup"
)

// DashboardStats is shaped per role; fields that do not apply stay nil.
type DashboardStats struct {
	Role domain.Role

	AppointmentsToday    *int64
	TotalPatients        *int64
	UpcomingAppointments *int64

	NextAppointmentDate *time.Time
	TreatmentsCount     *int64
}

type DashboardService struct {
	appointments appointment.Repository
	treatments   treatment.Repository
	loc          *time.Location
	now          func() time.Time
}

// NewDashboardService counts "today" in loc.
func NewDashboardService(appointments appointment.Repository, treatments treatment.Repository, loc *time.Location) *DashboardService {
	if loc == nil {
		loc = time.UTC
	}
	return &DashboardService{
		appointments: appointments,
		treatments:   treatments,
		loc:          loc,
		now:          time.Now,
	}
}

func (s *DashboardService) Stats(ctx context.Context, caller domain.Caller) (*DashboardStats, error) {
	ctx, span := tracer.Start(ctx, "DashboardService.Stats")
	var err error
	defer func() { endSpan(span, err) }()

	stats := &DashboardStats{Role: caller.Role}
	switch caller.Role {
	case domain.RoleDentist:
		err = s.dentistStats(ctx, caller.UserID, stats)
	case domain.RolePatient:
		err = s.patientStats(ctx, caller.PatientID, stats)
	}
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *DashboardService) dentistStats(ctx context.Context, dentistID int64, stats *DashboardStats) error {
	now := s.now().In(s.loc)
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	var today, patients, upcoming int64
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		today, err = s.appointments.CountForDentist(ctx, dentistID, &dayStart, &dayEnd)
		return err
	})
	g.Go(func() (err error) {
		patients, err = s.appointments.CountDistinctPatients(ctx, dentistID)
		return err
	})
	g.Go(func() (err error) {
		upcoming, err = s.appointments.CountForDentist(ctx, dentistID, &now, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	stats.AppointmentsToday = &today
	stats.TotalPatients = &patients
	stats.UpcomingAppointments = &upcoming
	return nil
}

func (s *DashboardService) patientStats(ctx context.Context, patientID *int64, stats *DashboardStats) error {
	var treatments int64
	if patientID == nil {
		stats.TreatmentsCount = &treatments
		return nil
	}

	next, err := s.appointments.NextForPatient(ctx, *patientID, s.now())
	if err != nil {
		return err
	}
	if next != nil {
		stats.NextAppointmentDate = &next.AppointmentDate
	}

	treatments, err = s.treatments.CountForPatient(ctx, *patientID)
	if err != nil {
		return err
	}
	stats.TreatmentsCount = &treatments
	return nil
}
