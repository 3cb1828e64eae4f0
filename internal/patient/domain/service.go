package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type ListPatientRequest struct {
	pagination.Pagination
	Query string
}

type ListPatientFilter struct {
	Query string
}

type ListPatientResponse struct {
	pagination.PageInfo
	Patients []Patient `json:"patients"`
}

type CreatePatientRequest struct {
	FirstName    string
	LastName     string
	DocumentID   string
	BirthDate    *time.Time
	Gender       string
	Phone        string
	Email        string
	Address      string
	Allergies    string
	MedicalNotes string
}

// UpdatePatientRequest applies only the non-nil fields.
type UpdatePatientRequest struct {
	FirstName    *string
	LastName     *string
	DocumentID   *string
	BirthDate    *time.Time
	Gender       *string
	Phone        *string
	Email        *string
	Address      *string
	Allergies    *string
	MedicalNotes *string
}

type Service interface {
	Create(context.Context, CreatePatientRequest) (Patient, error)
	GetByID(ctx context.Context, id string) (Patient, error)
	List(context.Context, ListPatientRequest) (ListPatientResponse, error)
	Update(ctx context.Context, id string, req UpdatePatientRequest) (Patient, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidFirstName  = errors.New("invalid_first_name")
	ErrInvalidLastName   = errors.New("invalid_last_name")
	ErrInvalidEmail      = errors.New("invalid_email")
	ErrInvalidBirthDate  = errors.New("invalid_birth_date")
	ErrDuplicateDocument = errors.New("duplicate_document_id")
	ErrInvalidID         = errors.New("invalid_id")
	ErrNotFound          = errors.New("not_found")
	ErrPatientInUse      = errors.New("patient_in_use")
)
