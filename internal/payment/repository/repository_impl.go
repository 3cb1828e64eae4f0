package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, p *domain.Payment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO payments (
			id, receipt_number, patient_id, amount, method, target_kind,
			target_id, note, recorded_by, paid_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID,
		p.ReceiptNumber,
		p.PatientID,
		p.Amount,
		p.Method,
		p.TargetKind,
		p.TargetID,
		p.Note,
		p.RecordedBy,
		p.PaidAt,
		p.CreatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Payment, error) {
	var item domain.Payment
	err := db.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("id = ?", id).
		Limit(1).
		Find(&item).Error
	if err != nil {
		return nil, err
	}
	if item.ID == 0 {
		return nil, nil
	}
	return &item, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPaymentFilter, page pagination.Page) ([]*domain.Payment, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Payment{})
	if filter.PatientID != nil {
		stmt = stmt.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.TargetKind != "" {
		stmt = stmt.Where("target_kind = ?", filter.TargetKind)
	}
	if filter.TargetID != nil {
		stmt = stmt.Where("target_id = ?", *filter.TargetID)
	}
	if filter.Method != "" {
		stmt = stmt.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		stmt = stmt.Where("paid_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("paid_at < ?", *filter.To)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []*domain.Payment
	err := stmt.Order("paid_at DESC").
		Order("id DESC").
		Scopes(page.Scope).
		Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *repo) SumBetween(ctx context.Context, db *gorm.DB, from, to time.Time) (decimal.Decimal, error) {
	var row struct {
		Total decimal.NullDecimal
	}
	err := db.WithContext(ctx).Raw(
		`SELECT SUM(amount) AS total FROM payments WHERE paid_at >= ? AND paid_at < ?`,
		from,
		to,
	).Scan(&row).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}
