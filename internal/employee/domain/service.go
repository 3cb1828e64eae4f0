package domain

import (
	"context"
	"errors"
	"time"

	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type ListEmployeeRequest struct {
	pagination.Pagination
	Query  string
	Role   string
	Active *bool
}

type ListEmployeeFilter struct {
	Query  string
	Role   Role
	Active *bool
}

type ListEmployeeResponse struct {
	pagination.PageInfo
	Employees []Employee `json:"employees"`
}

type CreateEmployeeRequest struct {
	FirstName     string
	LastName      string
	Role          string
	Specialty     string
	Phone         string
	Email         string
	LicenseNumber string
	HiredAt       *time.Time
}

type UpdateEmployeeRequest struct {
	FirstName     *string
	LastName      *string
	Role          *string
	Specialty     *string
	Phone         *string
	Email         *string
	LicenseNumber *string
	HiredAt       *time.Time
	Active        *bool
}

type Service interface {
	Create(context.Context, CreateEmployeeRequest) (Employee, error)
	GetByID(ctx context.Context, id string) (Employee, error)
	List(context.Context, ListEmployeeRequest) (ListEmployeeResponse, error)
	Update(ctx context.Context, id string, req UpdateEmployeeRequest) (Employee, error)
	Deactivate(ctx context.Context, id string) (Employee, error)
}

var (
	ErrInvalidFirstName = errors.New("invalid_first_name")
	ErrInvalidLastName  = errors.New("invalid_last_name")
	ErrInvalidRole      = errors.New("invalid_role")
	ErrInvalidEmail     = errors.New("invalid_email")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
