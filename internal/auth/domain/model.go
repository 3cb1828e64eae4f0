// Package domain contains core types for staff authentication.
package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Role is the access level of a staff account.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleDentist      Role = "dentist"
)

var AllRoles = []Role{RoleAdmin, RoleReceptionist, RoleDentist}

func ParseRole(raw string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "admin", "administrador", "administradora":
		return RoleAdmin, true
	case "receptionist", "recepcionista", "recepcion", "recepción":
		return RoleReceptionist, true
	case "dentist", "dentista", "odontologo", "odontólogo", "odontologa", "odontóloga":
		return RoleDentist, true
	default:
		return "", false
	}
}

// User represents a staff account.
type User struct {
	ID                  snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email               string        `gorm:"column:email;type:text;not null;uniqueIndex" json:"email"`
	DisplayName         string        `gorm:"column:display_name;type:text;not null" json:"display_name"`
	Role                Role          `gorm:"type:text;not null" json:"role"`
	EmployeeID          *snowflake.ID `gorm:"column:employee_id;index" json:"employee_id,omitempty"`
	PasswordHash        *string       `gorm:"type:text" json:"-"`
	IsActive            bool          `gorm:"column:is_active;not null;default:true" json:"is_active"`
	IsDefault           bool          `gorm:"column:is_default;not null;default:false" json:"is_default"`
	LastPasswordChanged *time.Time    `gorm:"column:last_password_changed" json:"last_password_changed,omitempty"`
	LastLoginAt         *time.Time    `gorm:"column:last_login_at" json:"last_login_at,omitempty"`
	CreatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt           time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }

// PasswordState is "default" until the user replaces a seeded or
// admin-issued password.
func (u User) PasswordState() string {
	if u.IsDefault || u.LastPasswordChanged == nil {
		return "default"
	}
	return "rotated"
}

// Session represents a persisted login session.
type Session struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	UserID           snowflake.ID `gorm:"column:user_id;not null;index"`
	SessionTokenHash string       `gorm:"column:session_token_hash;type:text;not null;uniqueIndex"`
	UserAgent        string       `gorm:"column:user_agent;type:text"`
	IPAddress        string       `gorm:"column:ip_address;type:text"`
	ExpiresAt        time.Time    `gorm:"column:expires_at;not null;index"`
	RevokedAt        *time.Time   `gorm:"column:revoked_at"`
	CreatedAt        time.Time    `gorm:"column:created_at;not null;default:CURRENT_TIMESTAMP"`
	LastSeenAt       time.Time    `gorm:"column:last_seen_at;not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Session) TableName() string { return "sessions" }

// SessionView is returned to clients without exposing token values.
type SessionView struct {
	UserID        string     `json:"user_id"`
	Email         string     `json:"email"`
	DisplayName   string     `json:"display_name"`
	Role          Role       `json:"role"`
	PasswordState string     `json:"password_state"`
	ExpiresAt     time.Time  `json:"expires_at"`
	LastLoginAt   *time.Time `json:"last_login_at,omitempty"`
}

// Principal is an authenticated session together with its user.
type Principal struct {
	Session *Session
	User    *User
}
