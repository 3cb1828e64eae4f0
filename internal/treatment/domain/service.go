package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type ListTreatmentRequest struct {
	pagination.Pagination
	PatientID string
	Status    string
	Settled   *bool
}

type ListTreatmentFilter struct {
	PatientID *snowflake.ID
	Status    Status
	Settled   *bool
}

type ListTreatmentResponse struct {
	pagination.PageInfo
	Treatments []Treatment `json:"treatments"`
}

type CreateTreatmentRequest struct {
	PatientID   string
	EmployeeID  string
	Name        string
	Description string
	Items       []BudgetItem
}

type UpdateBudgetRequest struct {
	Name        *string
	Description *string
	Items       []BudgetItem
}

type Service interface {
	Create(context.Context, CreateTreatmentRequest) (Treatment, error)
	GetByID(ctx context.Context, id string) (Treatment, error)
	List(context.Context, ListTreatmentRequest) (ListTreatmentResponse, error)
	// ListPending returns accounts that still accept payments.
	ListPending(ctx context.Context, patientID string) ([]Treatment, error)
	UpdateBudget(ctx context.Context, id string, req UpdateBudgetRequest) (Treatment, error)
	Finish(ctx context.Context, id string) (Treatment, error)
}

var (
	ErrInvalidPatient         = errors.New("invalid_patient")
	ErrInvalidEmployee        = errors.New("invalid_employee")
	ErrInvalidName            = errors.New("invalid_name")
	ErrInvalidStatus          = errors.New("invalid_status")
	ErrEmptyBudget            = errors.New("empty_budget")
	ErrInvalidItemDescription = errors.New("invalid_item_description")
	ErrInvalidItemQuantity    = errors.New("invalid_item_quantity")
	ErrInvalidItemUnitPrice   = errors.New("invalid_item_unit_price")
	ErrBudgetBelowPaid        = errors.New("budget_below_paid")
	ErrTreatmentFinished      = errors.New("treatment_finished")
	ErrInvalidID              = errors.New("invalid_id")
	ErrNotFound               = errors.New("not_found")
)
