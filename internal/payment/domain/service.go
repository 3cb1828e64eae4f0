package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
)

type RecordPaymentRequest struct {
	PatientID  string
	Amount     decimal.Decimal
	Method     string
	TargetKind string
	TargetID   string
	Note       string
	PaidAt     *time.Time
}

type RecordPaymentResponse struct {
	Payment Payment                  `json:"payment"`
	Account *treatmentdomain.Account `json:"account,omitempty"`
}

type ListPaymentRequest struct {
	pagination.Pagination
	PatientID  string
	TargetKind string
	TargetID   string
	Method     string
	From       *time.Time
	To         *time.Time
}

type ListPaymentFilter struct {
	PatientID  *snowflake.ID
	TargetKind TargetKind
	TargetID   *snowflake.ID
	Method     Method
	From       *time.Time
	To         *time.Time
}

type ListPaymentResponse struct {
	pagination.PageInfo
	Payments []Payment `json:"payments"`
}

// Receipt carries what a printed receipt shows.
type Receipt struct {
	Payment     Payment
	PatientName string
	Concept     string
	Account     *treatmentdomain.Account
}

type Service interface {
	// Record stores the payment and updates its target in one transaction.
	Record(context.Context, RecordPaymentRequest) (RecordPaymentResponse, error)
	GetByID(ctx context.Context, id string) (Payment, error)
	List(context.Context, ListPaymentRequest) (ListPaymentResponse, error)
	Receipt(ctx context.Context, id string) (Receipt, error)
}

var (
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrAmountExceedsPending = errors.New("amount_exceeds_pending")
	ErrAmountExceedsPrice   = errors.New("amount_exceeds_price")
	ErrAccountSettled       = errors.New("account_settled")
	ErrInvalidMethod        = errors.New("invalid_method")
	ErrInvalidTargetKind    = errors.New("invalid_target_kind")
	ErrInvalidTarget        = errors.New("invalid_target")
	ErrInvalidPatient       = errors.New("invalid_patient")
	ErrInvalidPaidAt        = errors.New("invalid_paid_at")
	ErrInvalidID            = errors.New("invalid_id")
	ErrNotFound             = errors.New("not_found")
)
