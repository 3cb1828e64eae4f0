package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type ListAppointmentRequest struct {
	pagination.Pagination
	PatientID  string
	EmployeeID string
	Status     string
	From       *time.Time
	To         *time.Time
}

type ListAppointmentFilter struct {
	PatientID  *snowflake.ID
	EmployeeID *snowflake.ID
	Status     Status
	From       *time.Time
	To         *time.Time
}

type ListAppointmentResponse struct {
	pagination.PageInfo
	Appointments []Appointment `json:"appointments"`
}

type CreateAppointmentRequest struct {
	PatientID       string
	EmployeeID      string
	TreatmentID     string
	ScheduledAt     time.Time
	DurationMinutes int
	Reason          string
	Notes           string
	Status          string
	Price           *decimal.Decimal
}

// UpdateAppointmentRequest edits the details of a visit. Status and time
// changes go through UpdateStatus.
type UpdateAppointmentRequest struct {
	EmployeeID      *string
	TreatmentID     *string
	DurationMinutes *int
	Reason          *string
	Notes           *string
	Price           *decimal.Decimal
}

type UpdateStatusRequest struct {
	Status       string
	ScheduledAt  *time.Time
	CancelReason string
}

// StatusChange is the outcome of a status action. Changed is false when the
// appointment already had the requested status.
type StatusChange struct {
	Appointment
	From    Status `json:"-"`
	Changed bool   `json:"-"`
}

type AvailableSlotsRequest struct {
	Date       time.Time
	EmployeeID string
}

type Service interface {
	Create(context.Context, CreateAppointmentRequest) (Appointment, error)
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(context.Context, ListAppointmentRequest) (ListAppointmentResponse, error)
	Update(ctx context.Context, id string, req UpdateAppointmentRequest) (Appointment, error)

	// UpdateStatus is the only path that changes an appointment's status.
	UpdateStatus(ctx context.Context, id string, req UpdateStatusRequest) (StatusChange, error)
	Confirm(ctx context.Context, id string) (StatusChange, error)
	Complete(ctx context.Context, id string) (StatusChange, error)
	Cancel(ctx context.Context, id string, reason string) (StatusChange, error)
	Reschedule(ctx context.Context, id string, scheduledAt time.Time) (StatusChange, error)

	MarkPaid(ctx context.Context, id string, paidAt *time.Time) (Appointment, error)

	Slots(ctx context.Context) []Slot
	AvailableSlots(context.Context, AvailableSlotsRequest) ([]SlotAvailability, error)
}

var (
	ErrInvalidPatient       = errors.New("invalid_patient")
	ErrInvalidEmployee      = errors.New("invalid_employee")
	ErrInvalidTreatment     = errors.New("invalid_treatment")
	ErrInvalidScheduledAt   = errors.New("invalid_scheduled_at")
	ErrInvalidDuration      = errors.New("invalid_duration")
	ErrInvalidPrice         = errors.New("invalid_price")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrSlotUnavailable      = errors.New("slot_unavailable")
	ErrAppointmentTerminal  = errors.New("appointment_terminal")
	ErrAppointmentCancelled = errors.New("appointment_cancelled")
	ErrAlreadyPaid          = errors.New("appointment_already_paid")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
)
