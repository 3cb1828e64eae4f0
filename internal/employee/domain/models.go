package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Role string

const (
	RoleDentist      Role = "dentist"
	RoleAssistant    Role = "assistant"
	RoleReceptionist Role = "receptionist"
	RoleAdmin        Role = "admin"
)

// ParseRole accepts the canonical role names and their Spanish labels.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "dentist", "dentista", "odontologo", "odontólogo":
		return RoleDentist, true
	case "assistant", "asistente":
		return RoleAssistant, true
	case "receptionist", "recepcionista", "recepcion", "recepción":
		return RoleReceptionist, true
	case "admin", "administrador", "administrator":
		return RoleAdmin, true
	default:
		return "", false
	}
}

type Employee struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName     string       `gorm:"not null" json:"first_name"`
	LastName      string       `gorm:"not null" json:"last_name"`
	Role          Role         `gorm:"type:text;not null;index" json:"role"`
	Specialty     string       `json:"specialty,omitempty"`
	Phone         string       `json:"phone,omitempty"`
	Email         string       `json:"email,omitempty"`
	LicenseNumber string       `gorm:"column:license_number" json:"license_number,omitempty"`
	Active        bool         `gorm:"not null;default:true" json:"active"`
	HiredAt       *time.Time   `gorm:"column:hired_at;type:date" json:"hired_at,omitempty"`
	CreatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Employee) TableName() string { return "employees" }

func (e Employee) FullName() string {
	return strings.TrimSpace(e.FirstName + " " + e.LastName)
}
