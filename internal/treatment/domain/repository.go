package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, treatment *Treatment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Treatment, error)
	// FindByIDForUpdate locks the row for the rest of the transaction.
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Treatment, error)
	List(ctx context.Context, db *gorm.DB, filter ListTreatmentFilter, page pagination.Page) ([]*Treatment, int64, error)
	ListPending(ctx context.Context, db *gorm.DB, patientID *snowflake.ID) ([]*Treatment, error)
	UpdateBudget(ctx context.Context, db *gorm.DB, treatment *Treatment) error
	UpdateAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, account Account, updatedAt time.Time) error
	UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status Status, finishedAt *time.Time, updatedAt time.Time) error
	SumPending(ctx context.Context, db *gorm.DB) (decimal.Decimal, error)
}
