package v1

import (
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
)

type userView struct {
	ID          int64       `json:"id"`
	Email       string      `json:"email"`
	DisplayName string      `json:"displayName"`
	AvatarURL   *string     `json:"avatarUrl"`
	Role        domain.Role `json:"role"`
}

func newUserView(u *domain.User) userView {
	return userView{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL, Role: u.Role}
}

type dentistView struct {
	ID          int64   `json:"id"`
	DisplayName string  `json:"displayName"`
	AvatarURL   *string `json:"avatarUrl,omitempty"`
}

type appointmentPatientView struct {
	ID          int64  `json:"id"`
	UserID      int64  `json:"userId"`
	DisplayName string `json:"displayName"`
}

type appointmentView struct {
	*appointment.Appointment
	Patient *appointmentPatientView `json:"patient,omitempty"`
	Dentist *dentistView            `json:"dentist,omitempty"`
}

// newAppointmentView nests patient and dentist names when they were loaded.
func newAppointmentView(a *appointment.Appointment) appointmentView {
	v := appointmentView{Appointment: a}
	if a.Patient != nil {
		v.Patient = &appointmentPatientView{ID: a.Patient.ID, UserID: a.Patient.UserID, DisplayName: a.Patient.DisplayName()}
	}
	if a.Dentist != nil {
		v.Dentist = &dentistView{ID: a.Dentist.ID, DisplayName: a.Dentist.DisplayName}
	}
	return v
}

type patientView struct {
	*patient.Patient
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	AvatarURL   *string `json:"avatarUrl"`
	Age         int     `json:"age"`
}

func newPatientView(p *patient.Patient) patientView {
	v := patientView{Patient: p, DisplayName: p.DisplayName(), Age: p.Age(time.Now())}
	if p.User != nil {
		v.Email = p.User.Email
		v.AvatarURL = p.User.AvatarURL
	}
	return v
}
