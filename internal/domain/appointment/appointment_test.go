package appointment

import (
	"errors"
	"testing"
	"time"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return ts
}

func TestOverlaps(t *testing.T) {
	tenAM := mustTime(t, "2025-06-15T10:00:00Z")
	_, elevenAM := Window(tenAM, 60)

	tests := []struct {
		name   string
		start  string
		mins   int
		expect bool
	}{
		{"starts inside", "2025-06-15T10:30:00Z", 30, true},
		{"back to back after", "2025-06-15T11:00:00Z", 30, false},
		{"back to back before", "2025-06-15T09:30:00Z", 30, false},
		{"encloses", "2025-06-15T09:00:00Z", 180, true},
		{"same start", "2025-06-15T10:00:00Z", 15, true},
		{"ends one minute in", "2025-06-15T09:01:00Z", 60, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Window(mustTime(t, tt.start), tt.mins)
			if got := Overlaps(tenAM, elevenAM, start, end); got != tt.expect {
				t.Errorf("Overlaps = %v, want %v", got, tt.expect)
			}
			if got := Overlaps(start, end, tenAM, elevenAM); got != tt.expect {
				t.Errorf("Overlaps is not symmetric")
			}
		})
	}
}

func TestReschedule_RecomputesEnd(t *testing.T) {
	a := &Appointment{}
	a.Reschedule(mustTime(t, "2025-06-15T10:00:00.750+02:00"), 45)

	if !a.AppointmentDate.Equal(mustTime(t, "2025-06-15T08:00:00Z")) {
		t.Errorf("date = %v", a.AppointmentDate)
	}
	if a.AppointmentDate.Location() != time.UTC {
		t.Errorf("date not normalized to UTC")
	}
	if !a.EndsAt.Equal(mustTime(t, "2025-06-15T08:45:00Z")) {
		t.Errorf("ends at = %v", a.EndsAt)
	}
}

func TestTransitionTable(t *testing.T) {
	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			want := false
			switch from {
			case StatusScheduled:
				want = to == StatusConfirmed || to == StatusCancelled || to == StatusNoShow
			case StatusConfirmed:
				want = to == StatusCompleted || to == StatusCancelled || to == StatusNoShow
			}
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestConfirm_OnlyFromScheduled(t *testing.T) {
	for _, s := range AllStatuses {
		a := &Appointment{Status: s}
		err := a.Confirm(1)

		if s == StatusScheduled {
			if err != nil || a.Status != StatusConfirmed {
				t.Errorf("confirm from %s: err=%v status=%s", s, err, a.Status)
			}
			continue
		}

		var te *TransitionError
		if !errors.As(err, &te) || te.From != s {
			t.Fatalf("confirm from %s: expected TransitionError naming %s, got %v", s, s, err)
		}
		if !errors.Is(err, ErrInvalidStatusTransition) {
			t.Errorf("TransitionError must unwrap to ErrInvalidStatusTransition")
		}
		want := "Cannot confirm an appointment with status '" + string(s) + "'."
		if err.Error() != want {
			t.Errorf("message = %q, want %q", err.Error(), want)
		}
		if a.Status != s {
			t.Errorf("status changed on failed confirm")
		}
	}
}

func TestCancel_Idempotent(t *testing.T) {
	a := &Appointment{Status: StatusConfirmed}

	if changed := a.Cancel(7); !changed {
		t.Fatal("first cancel should change the appointment")
	}
	if a.Status != StatusCancelled || a.CancelledBy == nil || *a.CancelledBy != 7 || a.CancelledAt == nil {
		t.Fatalf("cancel did not record who and when: %+v", a)
	}

	firstAt := *a.CancelledAt
	if changed := a.Cancel(9); changed {
		t.Error("second cancel should be a no-op")
	}
	if *a.CancelledBy != 7 || !a.CancelledAt.Equal(firstAt) {
		t.Error("second cancel mutated the appointment")
	}
}

func TestCancel_FromTerminalStatus(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusNoShow} {
		a := &Appointment{Status: s}
		if !a.Cancel(1) || a.Status != StatusCancelled {
			t.Errorf("cancel from %s should succeed", s)
		}
	}
}

func TestTransitionTo(t *testing.T) {
	a := &Appointment{Status: StatusConfirmed}

	if err := a.TransitionTo(StatusConfirmed, 1); err != nil {
		t.Errorf("same status should be a no-op, got %v", err)
	}
	if err := a.TransitionTo("bogus", 1); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
	if err := a.TransitionTo(StatusScheduled, 1); !errors.Is(err, ErrInvalidStatusTransition) {
		t.Errorf("expected ErrInvalidStatusTransition, got %v", err)
	}
	if err := a.TransitionTo(StatusCompleted, 1); err != nil {
		t.Fatalf("confirmada -> completada: %v", err)
	}
	if a.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if err := a.TransitionTo(StatusNoShow, 1); err == nil {
		t.Error("completada is terminal")
	}
}

func TestStatus_OccupiesSlot(t *testing.T) {
	for _, s := range AllStatuses {
		want := s != StatusCancelled && s != StatusNoShow
		if s.OccupiesSlot() != want {
			t.Errorf("%s.OccupiesSlot() = %v", s, !want)
		}
	}
}

func TestUpdateCommand_Changes(t *testing.T) {
	status := StatusConfirmed
	mins := 15

	cmd := &UpdateAppointmentCommand{Status: &status}
	if cmd.ChangesWindow() {
		t.Error("status-only update must not touch the window")
	}
	if cmd.ChangesStatus(StatusConfirmed) {
		t.Error("same status is not a change")
	}
	if !cmd.ChangesStatus(StatusScheduled) {
		t.Error("different status is a change")
	}

	cmd = &UpdateAppointmentCommand{DurationMinutes: &mins}
	if !cmd.ChangesWindow() {
		t.Error("duration update changes the window")
	}
}
