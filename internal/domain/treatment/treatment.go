package treatment

import (
	"time"
)

// Treatment is a procedure performed on a patient. Once recorded it is not edited.
type Treatment struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`

	PatientID     int64  `gorm:"column:patient_id;not null;index" json:"patientId"`
	DentistID     int64  `gorm:"column:dentist_id;not null;index" json:"dentistId"`
	AppointmentID *int64 `gorm:"column:appointment_id;index" json:"appointmentId"`

	Description string    `gorm:"column:description;type:text;not null" json:"description"`
	PerformedAt time.Time `gorm:"column:performed_at;not null;index" json:"performedAt"`
}

func (Treatment) TableName() string {
	return "treatments"
}
