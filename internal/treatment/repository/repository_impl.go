package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, treatment *domain.Treatment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO treatments (id, patient_id, employee_id, name, description, status, items,
		 total_budget, amount_paid, amount_pending, is_fully_settled, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		treatment.ID,
		treatment.PatientID,
		treatment.EmployeeID,
		treatment.Name,
		treatment.Description,
		treatment.Status,
		treatment.Items,
		treatment.TotalBudget,
		treatment.AmountPaid,
		treatment.AmountPending,
		treatment.IsFullySettled,
		treatment.CreatedAt,
		treatment.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Treatment, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Treatment, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(db *gorm.DB, id snowflake.ID) (*domain.Treatment, error) {
	var treatment domain.Treatment
	err := db.Model(&domain.Treatment{}).
		Where("id = ?", id).
		Limit(1).
		Find(&treatment).Error
	if err != nil {
		return nil, err
	}
	if treatment.ID == 0 {
		return nil, nil
	}
	return &treatment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListTreatmentFilter, page pagination.Page) ([]*domain.Treatment, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Treatment{})
	if filter.PatientID != nil {
		stmt = stmt.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Settled != nil {
		stmt = stmt.Where("is_fully_settled = ?", *filter.Settled)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var treatments []*domain.Treatment
	err := stmt.
		Scopes(page.Scope).
		Order("created_at desc, id desc").
		Find(&treatments).Error
	if err != nil {
		return nil, 0, err
	}
	return treatments, total, nil
}

func (r *repo) ListPending(ctx context.Context, db *gorm.DB, patientID *snowflake.ID) ([]*domain.Treatment, error) {
	stmt := db.WithContext(ctx).
		Model(&domain.Treatment{}).
		Where("is_fully_settled = ?", false)
	if patientID != nil {
		stmt = stmt.Where("patient_id = ?", *patientID)
	}

	var treatments []*domain.Treatment
	if err := stmt.Order("created_at asc, id asc").Find(&treatments).Error; err != nil {
		return nil, err
	}
	return treatments, nil
}

func (r *repo) UpdateBudget(ctx context.Context, db *gorm.DB, treatment *domain.Treatment) error {
	return db.WithContext(ctx).
		Model(&domain.Treatment{}).
		Where("id = ?", treatment.ID).
		Updates(map[string]any{
			"name":             treatment.Name,
			"description":      treatment.Description,
			"items":            treatment.Items,
			"total_budget":     treatment.TotalBudget,
			"amount_paid":      treatment.AmountPaid,
			"amount_pending":   treatment.AmountPending,
			"is_fully_settled": treatment.IsFullySettled,
			"updated_at":       treatment.UpdatedAt,
		}).Error
}

func (r *repo) UpdateAccount(ctx context.Context, db *gorm.DB, id snowflake.ID, account domain.Account, updatedAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE treatments
		 SET total_budget = ?, amount_paid = ?, amount_pending = ?, is_fully_settled = ?, updated_at = ?
		 WHERE id = ?`,
		account.TotalBudget,
		account.AmountPaid,
		account.AmountPending,
		account.IsFullySettled,
		updatedAt,
		id,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.Status, finishedAt *time.Time, updatedAt time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE treatments SET status = ?, finished_at = ?, updated_at = ? WHERE id = ?`,
		status,
		finishedAt,
		updatedAt,
		id,
	).Error
}

func (r *repo) SumPending(ctx context.Context, db *gorm.DB) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(amount_pending) AS total FROM treatments WHERE is_fully_settled = ?`,
		false,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}
