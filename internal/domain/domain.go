package domain

import (
	"time"
)

type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDentist Role = "dentist"
	RolePatient Role = "patient"
	// RoleUser is the unprivileged role given to self-registered accounts.
	RoleUser Role = "user"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleDentist, RolePatient, RoleUser:
		return true
	}
	return false
}

type User struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`

	Email        string  `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string  `gorm:"column:password_hash;type:varchar(255);not null" json:"-"`
	DisplayName  string  `gorm:"column:display_name;type:varchar(150);not null" json:"displayName"`
	Role         Role    `gorm:"column:role;type:varchar(20);not null;index" json:"role"`
	AvatarURL    *string `gorm:"column:avatar_url;type:text" json:"avatarUrl"`

	FailedLoginCount int        `gorm:"column:failed_login_count;default:0" json:"-"`
	LockedUntil      *time.Time `gorm:"column:locked_until" json:"-"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at" json:"-"`
}

func (User) TableName() string {
	return "users"
}

// IsLocked returns true if the account is temporarily locked due to failed logins.
func (u *User) IsLocked() bool {
	return u.LockedUntil != nil && time.Now().Before(*u.LockedUntil)
}

// Session is the server-side record behind the session cookie.
type Session struct {
	ID           string    `gorm:"column:id;type:varchar(64);primaryKey"`
	UserID       int64     `gorm:"column:user_id;not null;index"`
	CreatedAt    time.Time `gorm:"column:created_at;not null"`
	LastAccessed time.Time `gorm:"column:last_accessed;not null"`
	ExpiresAt    time.Time `gorm:"column:expires_at;not null;index"`
}

func (Session) TableName() string {
	return "sessions"
}

func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Caller is the authenticated identity a request acts as.
type Caller struct {
	UserID      int64
	Role        Role
	Email       string
	DisplayName string
	// PatientID is set for callers with a patient profile.
	PatientID *int64
	SessionID string
	IPAddress string
	RequestID string
}

type AuditAction string

const (
	ActionCreate  AuditAction = "create"
	ActionRead    AuditAction = "read"
	ActionUpdate  AuditAction = "update"
	ActionCancel  AuditAction = "cancel"
	ActionConfirm AuditAction = "confirm"
	ActionLogin   AuditAction = "login"
	ActionLogout  AuditAction = "logout"
)

type AuditLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    int64  `gorm:"column:user_id;not null;index"`
	UserRole  Role   `gorm:"column:user_role;type:varchar(20);not null"`
	IPAddress string `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       AuditAction `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string      `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string      `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:text"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}
