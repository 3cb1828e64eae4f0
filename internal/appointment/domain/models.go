package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

type Appointment struct {
	ID              snowflake.ID        `gorm:"primaryKey" json:"id"`
	PatientID       snowflake.ID        `gorm:"not null;index" json:"patient_id"`
	EmployeeID      *snowflake.ID       `gorm:"index:idx_appointments_employee_slot,priority:1" json:"employee_id,omitempty"`
	TreatmentID     *snowflake.ID       `gorm:"index" json:"treatment_id,omitempty"`
	ScheduledAt     time.Time           `gorm:"not null;index;index:idx_appointments_employee_slot,priority:2" json:"scheduled_at"`
	DurationMinutes int                 `gorm:"not null" json:"duration_minutes"`
	Reason          string              `json:"reason,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Status          Status              `gorm:"type:text;not null;index" json:"status"`
	Price           decimal.NullDecimal `gorm:"type:numeric(12,2)" json:"price"`
	IsPaid          bool                `gorm:"not null;default:false" json:"is_paid"`
	PaidAt          *time.Time          `json:"paid_at,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	CreatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Appointment) TableName() string { return "appointments" }

func (a Appointment) EndsAt() time.Time {
	return a.ScheduledAt.Add(time.Duration(a.DurationMinutes) * time.Minute)
}

// Overlaps reports whether the two visits share any minute.
func (a Appointment) Overlaps(start time.Time, duration time.Duration) bool {
	end := start.Add(duration)
	return a.ScheduledAt.Before(end) && start.Before(a.EndsAt())
}

// CanBePaid checks the single-visit payment rule: a visit is paid once.
func (a Appointment) CanBePaid() error {
	if a.Status == StatusCancelled {
		return ErrAppointmentCancelled
	}
	if a.IsPaid {
		return ErrAlreadyPaid
	}
	return nil
}
