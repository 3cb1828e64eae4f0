package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusActive   Status = "activo"
	StatusFinished Status = "finalizado"
)

// Treatment is a treatment plan together with its running account.
type Treatment struct {
	ID             snowflake.ID                    `gorm:"primaryKey" json:"id"`
	PatientID      snowflake.ID                    `gorm:"not null;index" json:"patient_id"`
	EmployeeID     *snowflake.ID                   `gorm:"index" json:"employee_id,omitempty"`
	Name           string                          `gorm:"not null" json:"name"`
	Description    string                          `json:"description,omitempty"`
	Status         Status                          `gorm:"type:text;not null;default:'activo'" json:"status"`
	Items          datatypes.JSONSlice[BudgetItem] `gorm:"type:jsonb;not null" json:"items"`
	TotalBudget    decimal.Decimal                 `gorm:"type:numeric(12,2);not null" json:"total_budget"`
	AmountPaid     decimal.Decimal                 `gorm:"type:numeric(12,2);not null" json:"amount_paid"`
	AmountPending  decimal.Decimal                 `gorm:"type:numeric(12,2);not null" json:"amount_pending"`
	IsFullySettled bool                            `gorm:"not null;default:false;index" json:"is_fully_settled"`
	FinishedAt     *time.Time                      `json:"finished_at,omitempty"`
	CreatedAt      time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time                       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Treatment) TableName() string { return "treatments" }

// Account is the balance view of a treatment.
type Account struct {
	TotalBudget    decimal.Decimal `json:"total_budget"`
	AmountPaid     decimal.Decimal `json:"amount_paid"`
	AmountPending  decimal.Decimal `json:"amount_pending"`
	IsFullySettled bool            `json:"is_fully_settled"`
}

func (t Treatment) Account() Account {
	return Account{
		TotalBudget:    t.TotalBudget,
		AmountPaid:     t.AmountPaid,
		AmountPending:  t.AmountPending,
		IsFullySettled: t.IsFullySettled,
	}
}

func (t *Treatment) SetAccount(a Account) {
	t.TotalBudget = a.TotalBudget
	t.AmountPaid = a.AmountPaid
	t.AmountPending = a.AmountPending
	t.IsFullySettled = a.IsFullySettled
}

// NewAccount opens an account for a freshly computed budget.
func NewAccount(total decimal.Decimal) Account {
	return Rebudget(Account{}, total)
}

// Rebudget replaces the total and keeps what has already been paid.
func Rebudget(a Account, total decimal.Decimal) Account {
	total = total.Round(2)
	pending := total.Sub(a.AmountPaid)
	return Account{
		TotalBudget:    total,
		AmountPaid:     a.AmountPaid,
		AmountPending:  pending,
		IsFullySettled: !pending.IsPositive(),
	}
}
