package repository

import (
	"context"
	"slices"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, a *domain.Appointment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO appointments (id, patient_id, employee_id, treatment_id, scheduled_at, duration_minutes,
		 reason, notes, status, price, is_paid, paid_at, cancel_reason, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID,
		a.PatientID,
		a.EmployeeID,
		a.TreatmentID,
		a.ScheduledAt,
		a.DurationMinutes,
		a.Reason,
		a.Notes,
		a.Status,
		a.Price,
		a.IsPaid,
		a.PaidAt,
		a.CancelReason,
		a.CreatedAt,
		a.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	return r.find(db.WithContext(ctx), id)
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	return r.find(db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), id)
}

func (r *repo) find(db *gorm.DB, id snowflake.ID) (*domain.Appointment, error) {
	var appointment domain.Appointment
	err := db.Model(&domain.Appointment{}).
		Where("id = ?", id).
		Limit(1).
		Find(&appointment).Error
	if err != nil {
		return nil, err
	}
	if appointment.ID == 0 {
		return nil, nil
	}
	return &appointment, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListAppointmentFilter, page pagination.Page) ([]*domain.Appointment, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Appointment{})
	if filter.PatientID != nil {
		stmt = stmt.Where("patient_id = ?", *filter.PatientID)
	}
	if filter.EmployeeID != nil {
		stmt = stmt.Where("employee_id = ?", *filter.EmployeeID)
	}
	if filter.Status != "" {
		stmt = whereStatus(stmt, filter.Status)
	}
	if filter.From != nil {
		stmt = stmt.Where("scheduled_at >= ?", *filter.From)
	}
	if filter.To != nil {
		stmt = stmt.Where("scheduled_at < ?", *filter.To)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var appointments []*domain.Appointment
	err := stmt.
		Scopes(page.Scope).
		Order("scheduled_at asc, id asc").
		Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

func (r *repo) ListBooked(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, from, to time.Time) ([]*domain.Appointment, error) {
	var appointments []*domain.Appointment
	stmt := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("employee_id = ?", employeeID)
	err := whereStatus(stmt, domain.ExcludeStatuses(domain.StatusCancelled)...).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Order("scheduled_at asc").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, a *domain.Appointment) error {
	return db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("id = ?", a.ID).
		Updates(map[string]any{
			"employee_id":      a.EmployeeID,
			"treatment_id":     a.TreatmentID,
			"scheduled_at":     a.ScheduledAt,
			"duration_minutes": a.DurationMinutes,
			"reason":           a.Reason,
			"notes":            a.Notes,
			"status":           a.Status,
			"price":            a.Price,
			"cancel_reason":    a.CancelReason,
			"updated_at":       a.UpdatedAt,
		}).Error
}

func (r *repo) MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) error {
	res := db.WithContext(ctx).Exec(
		`UPDATE appointments SET is_paid = ?, paid_at = ?, updated_at = ? WHERE id = ? AND is_paid = ?`,
		true,
		paidAt,
		paidAt,
		id,
		false,
	)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrAlreadyPaid
	}
	return nil
}

func (r *repo) CountByStatus(ctx context.Context, db *gorm.DB, from, to time.Time) (map[domain.Status]int64, error) {
	var rows []struct {
		Status domain.Status
		Total  int64
	}
	err := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Select("status, COUNT(*) AS total").
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[domain.Status]int64, len(domain.AllStatuses))
	for _, status := range domain.AllStatuses {
		counts[status] = 0
	}
	for _, row := range rows {
		counts[row.Status] += row.Total
	}
	return counts, nil
}

func (r *repo) CountUpcoming(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error) {
	var count int64
	stmt := db.WithContext(ctx).
		Model(&domain.Appointment{}).
		Where("scheduled_at >= ? AND scheduled_at < ?", from, to)
	err := whereStatus(stmt, domain.ExcludeStatuses(domain.StatusCancelled, domain.StatusCompleted)...).
		Count(&count).Error
	return count, err
}

// whereStatus matches rows whose stored status normalizes to one of
// statuses. Legacy spellings are matched too, and unknown values count as
// pendiente.
func whereStatus(stmt *gorm.DB, statuses ...domain.Status) *gorm.DB {
	if slices.Contains(statuses, domain.StatusPending) {
		others := domain.StoredValues(domain.ExcludeStatuses(statuses...)...)
		if len(others) == 0 {
			return stmt
		}
		return stmt.Where("(status IS NULL OR LOWER(TRIM(status)) NOT IN ?)", others)
	}
	return stmt.Where("LOWER(TRIM(status)) IN ?", domain.StoredValues(statuses...))
}
