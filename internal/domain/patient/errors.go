package patient

import "errors"

var (
	ErrPatientNotFound   = errors.New("patient not found")
	ErrInvalidBirthDate  = errors.New("birth date cannot be in the future")
	ErrPatientIDRequired = errors.New("patientId is required")
)
