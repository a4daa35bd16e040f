package service

import (
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
)

type Action string

const (
	ActionCreateAppointment  Action = "appointment:create"
	ActionViewAppointment    Action = "appointment:view"
	ActionUpdateAppointment  Action = "appointment:update"
	ActionChangeStatus       Action = "appointment:status"
	ActionCancelAppointment  Action = "appointment:cancel"
	ActionConfirmAppointment Action = "appointment:confirm"
	ActionViewPatient        Action = "patient:view"
	ActionUpdatePatient      Action = "patient:update"
	ActionListPatients       Action = "patient:list"
)

// Scope says how much of a resource a role may act on.
type Scope int

const (
	ScopeNone Scope = iota
	// ScopeOwn limits a dentist to their schedule and a patient to their own records.
	ScopeOwn
	ScopeAll
)

// Policy is the role × action permission table. Anything missing is ScopeNone.
type Policy struct {
	rules map[domain.Role]map[Action]Scope
}

func DefaultPolicy() *Policy {
	return &Policy{rules: map[domain.Role]map[Action]Scope{
		domain.RoleAdmin: {
			ActionCreateAppointment:  ScopeAll,
			ActionViewAppointment:    ScopeAll,
			ActionUpdateAppointment:  ScopeAll,
			ActionChangeStatus:       ScopeAll,
			ActionCancelAppointment:  ScopeAll,
			ActionConfirmAppointment: ScopeAll,
			ActionViewPatient:        ScopeAll,
			ActionUpdatePatient:      ScopeAll,
			ActionListPatients:       ScopeAll,
		},
		domain.RoleDentist: {
			ActionCreateAppointment:  ScopeOwn,
			ActionViewAppointment:    ScopeOwn,
			ActionUpdateAppointment:  ScopeOwn,
			ActionChangeStatus:       ScopeOwn,
			ActionCancelAppointment:  ScopeOwn,
			ActionConfirmAppointment: ScopeOwn,
			ActionViewPatient:        ScopeAll,
			ActionUpdatePatient:      ScopeAll,
			ActionListPatients:       ScopeOwn,
		},
		domain.RolePatient: {
			ActionCreateAppointment: ScopeOwn,
			ActionViewAppointment:   ScopeOwn,
			ActionUpdateAppointment: ScopeOwn,
			ActionCancelAppointment: ScopeOwn,
			ActionViewPatient:       ScopeOwn,
			ActionUpdatePatient:     ScopeOwn,
			ActionListPatients:      ScopeOwn,
		},
	}}
}

func (p *Policy) Scope(role domain.Role, action Action) Scope {
	return p.rules[role][action]
}

// AuthorizeAppointment checks caller against an existing or proposed appointment.
func (p *Policy) AuthorizeAppointment(caller domain.Caller, action Action, dentistID, patientID int64) error {
	switch p.Scope(caller.Role, action) {
	case ScopeAll:
		return nil
	case ScopeOwn:
		if ownsAppointment(caller, dentistID, patientID) {
			return nil
		}
	}
	return ErrForbidden
}

func (p *Policy) Authorize(caller domain.Caller, action Action, a *appointment.Appointment) error {
	return p.AuthorizeAppointment(caller, action, a.DentistID, a.PatientID)
}

// AuthorizePatient checks caller against a patient profile.
func (p *Policy) AuthorizePatient(caller domain.Caller, action Action, patientID int64) error {
	switch p.Scope(caller.Role, action) {
	case ScopeAll:
		return nil
	case ScopeOwn:
		if caller.PatientID != nil && *caller.PatientID == patientID {
			return nil
		}
	}
	return ErrForbidden
}

func ownsAppointment(caller domain.Caller, dentistID, patientID int64) bool {
	switch caller.Role {
	case domain.RoleDentist:
		return dentistID == caller.UserID
	case domain.RolePatient:
		return caller.PatientID != nil && *caller.PatientID == patientID
	}
	return false
}
