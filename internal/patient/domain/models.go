package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Patient struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	FirstName    string       `gorm:"not null" json:"first_name"`
	LastName     string       `gorm:"not null" json:"last_name"`
	DocumentID   *string      `gorm:"column:document_id;uniqueIndex" json:"document_id,omitempty"`
	BirthDate    *time.Time   `gorm:"column:birth_date;type:date" json:"birth_date,omitempty"`
	Gender       string       `json:"gender,omitempty"`
	Phone        string       `json:"phone,omitempty"`
	Email        string       `json:"email,omitempty"`
	Address      string       `json:"address,omitempty"`
	Allergies    string       `json:"allergies,omitempty"`
	MedicalNotes string       `gorm:"column:medical_notes" json:"medical_notes,omitempty"`
	CreatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Patient) TableName() string { return "patients" }

func (p Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}
