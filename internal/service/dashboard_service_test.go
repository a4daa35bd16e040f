package service

import (
	"context"
	"testing"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"go.uber.org/zap"
)

func TestDashboardStats(t *testing.T) {
	f := newScheduleFixture(t)
	now := time.Date(2030, time.June, 15, 9, 0, 0, 0, time.UTC)
	f.h.dashboard.now = func() time.Time { return now }

	today, err := f.book(t, now.Add(time.Hour), 30)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.book(t, now.Add(26*time.Hour), 30); err != nil {
		t.Fatal(err)
	}
	cancelled, err := f.book(t, now.Add(3*time.Hour), 30)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := f.h.appointments.Cancel(f.ctx, f.admin, cancelled.ID); err != nil {
		t.Fatal(err)
	}
	f.h.store.treats[*f.patient.PatientID] = 3

	t.Run("dentist", func(t *testing.T) {
		stats, err := f.h.dashboard.Stats(f.ctx, f.dentist)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Role != domain.RoleDentist {
			t.Errorf("role = %s", stats.Role)
		}
		if *stats.AppointmentsToday != 1 || *stats.UpcomingAppointments != 2 || *stats.TotalPatients != 1 {
			t.Errorf("today=%d upcoming=%d patients=%d",
				*stats.AppointmentsToday, *stats.UpcomingAppointments, *stats.TotalPatients)
		}
		if stats.TreatmentsCount != nil {
			t.Error("patient fields must stay empty for dentists")
		}
	})

	t.Run("patient", func(t *testing.T) {
		stats, err := f.h.dashboard.Stats(f.ctx, f.patient)
		if err != nil {
			t.Fatal(err)
		}
		if stats.NextAppointmentDate == nil || !stats.NextAppointmentDate.Equal(today.AppointmentDate) {
			t.Errorf("next = %v, want %v", stats.NextAppointmentDate, today.AppointmentDate)
		}
		if *stats.TreatmentsCount != 3 {
			t.Errorf("treatments = %d", *stats.TreatmentsCount)
		}
	})

	t.Run("patient without appointments", func(t *testing.T) {
		stats, err := f.h.dashboard.Stats(f.ctx, f.stranger)
		if err != nil {
			t.Fatal(err)
		}
		if stats.NextAppointmentDate != nil || *stats.TreatmentsCount != 0 {
			t.Errorf("stats = %+v", stats)
		}
	})

	t.Run("admin gets role only", func(t *testing.T) {
		stats, err := f.h.dashboard.Stats(f.ctx, f.admin)
		if err != nil {
			t.Fatal(err)
		}
		if stats.Role != domain.RoleAdmin || stats.AppointmentsToday != nil || stats.TreatmentsCount != nil {
			t.Errorf("stats = %+v", stats)
		}
	})
}

func TestDashboard_TodayUsesSchedulingTimezone(t *testing.T) {
	f := newScheduleFixture(t)
	loc := time.FixedZone("UTC-5", -5*3600)
	dash := NewDashboardService(memAppointments{f.h.store}, memTreatments{f.h.store}, loc)
	// 23:00 local on the 14th is 04:00 UTC on the 15th.
	dash.now = func() time.Time { return time.Date(2030, time.June, 15, 4, 0, 0, 0, time.UTC) }

	if _, err := f.book(t, time.Date(2030, time.June, 15, 4, 30, 0, 0, time.UTC), 15); err != nil {
		t.Fatal(err)
	}
	if _, err := f.book(t, time.Date(2030, time.June, 15, 6, 0, 0, 0, time.UTC), 15); err != nil {
		t.Fatal(err)
	}

	stats, err := dash.Stats(f.ctx, f.dentist)
	if err != nil {
		t.Fatal(err)
	}
	if *stats.AppointmentsToday != 1 {
		t.Errorf("appointments today = %d, want 1", *stats.AppointmentsToday)
	}
}

func TestSeed_Idempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seeder := NewSeeder(memUsers{h.store}, memPatients{h.store}, passTx{}, zap.NewNop())

	n, err := seeder.Seed(ctx)
	if err != nil || n != 3 {
		t.Fatalf("first seed: n=%d err=%v", n, err)
	}
	n, err = seeder.Seed(ctx)
	if err != nil || n != 0 {
		t.Fatalf("second seed: n=%d err=%v", n, err)
	}

	_, issued, err := h.auth.Login(ctx, "paciente@test.com", SeedPassword, "")
	if err != nil {
		t.Fatalf("seeded patient login: %v", err)
	}
	r, err := h.sessions.Resolve(ctx, issued.Token)
	if err != nil {
		t.Fatal(err)
	}
	if r.Caller.PatientID == nil {
		t.Error("seeded patient has no profile")
	}

	dentists, err := NewDentistService(memUsers{h.store}).List(ctx)
	if err != nil || len(dentists) != 1 || dentists[0].Email != "prof@test.com" {
		t.Errorf("dentists = %v err=%v", dentists, err)
	}
}
