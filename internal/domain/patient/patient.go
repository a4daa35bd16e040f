package patient

import (
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
)

// Patient is the medical and contact profile of a user with role patient.
type Patient struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	UserID int64 `gorm:"column:user_id;not null;uniqueIndex" json:"userId"`

	Address   string    `gorm:"column:address;type:text;not null" json:"address"`
	Phone     string    `gorm:"column:phone;type:varchar(30);not null" json:"phone"`
	BirthDate time.Time `gorm:"column:birth_date;not null" json:"birthDate"`

	Allergies      *string `gorm:"column:allergies;type:text" json:"allergies"`
	MedicalHistory *string `gorm:"column:medical_history;type:text" json:"medicalHistory"`

	EmergencyContactName  string `gorm:"column:emergency_contact_name;type:varchar(150);not null" json:"emergencyContactName"`
	EmergencyContactPhone string `gorm:"column:emergency_contact_phone;type:varchar(30);not null" json:"emergencyContactPhone"`

	User *domain.User `gorm:"foreignKey:UserID" json:"-"`
}

func (Patient) TableName() string {
	return "patients"
}

// DisplayName falls back to an empty string when the user was not loaded.
func (p *Patient) DisplayName() string {
	if p.User == nil {
		return ""
	}
	return p.User.DisplayName
}

func (p *Patient) Age(now time.Time) int {
	years := now.Year() - p.BirthDate.Year()
	if now.Month() < p.BirthDate.Month() ||
		(now.Month() == p.BirthDate.Month() && now.Day() < p.BirthDate.Day()) {
		years--
	}
	return years
}

// RegisterPatientCommand creates a user account and its patient profile together.
type RegisterPatientCommand struct {
	Email                 string
	Password              string
	DisplayName           string
	Address               string
	Phone                 string
	BirthDate             time.Time
	Allergies             *string
	MedicalHistory        *string
	EmergencyContactName  string
	EmergencyContactPhone string
}

// Normalize trims free text and lower-cases the email.
func (c *RegisterPatientCommand) Normalize() {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.DisplayName = strings.TrimSpace(c.DisplayName)
	c.Address = strings.TrimSpace(c.Address)
	c.Phone = strings.TrimSpace(c.Phone)
	c.EmergencyContactName = strings.TrimSpace(c.EmergencyContactName)
	c.EmergencyContactPhone = strings.TrimSpace(c.EmergencyContactPhone)
}

type UpdatePatientCommand struct {
	// PatientID is required for dentists and admins; patients update their own profile.
	PatientID             *int64
	DisplayName           *string
	Address               *string
	Phone                 *string
	BirthDate             *time.Time
	Allergies             *string
	MedicalHistory        *string
	EmergencyContactName  *string
	EmergencyContactPhone *string
}

// Apply copies the supplied fields onto p and returns the changed column names.
func (c *UpdatePatientCommand) Apply(p *Patient) []string {
	var changed []string
	setString := func(dst *string, src *string, name string) {
		if src != nil {
			*dst = strings.TrimSpace(*src)
			changed = append(changed, name)
		}
	}

	setString(&p.Address, c.Address, "address")
	setString(&p.Phone, c.Phone, "phone")
	setString(&p.EmergencyContactName, c.EmergencyContactName, "emergency_contact_name")
	setString(&p.EmergencyContactPhone, c.EmergencyContactPhone, "emergency_contact_phone")

	if c.BirthDate != nil {
		p.BirthDate = *c.BirthDate
		changed = append(changed, "birth_date")
	}
	if c.Allergies != nil {
		p.Allergies = c.Allergies
		changed = append(changed, "allergies")
	}
	if c.MedicalHistory != nil {
		p.MedicalHistory = c.MedicalHistory
		changed = append(changed, "medical_history")
	}
	return changed
}

type ListPatientsQuery struct {
	// DentistID limits the list to patients with at least one appointment on that schedule.
	DentistID *int64
	// PatientID limits the list to one patient.
	PatientID *int64
}
