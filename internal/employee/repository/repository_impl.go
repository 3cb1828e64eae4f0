package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/employee/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, employee *domain.Employee) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO employees (id, first_name, last_name, role, specialty, phone, email, license_number,
		 active, hired_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		employee.ID,
		employee.FirstName,
		employee.LastName,
		employee.Role,
		employee.Specialty,
		employee.Phone,
		employee.Email,
		employee.LicenseNumber,
		employee.Active,
		employee.HiredAt,
		employee.CreatedAt,
		employee.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Employee, error) {
	var employee domain.Employee
	err := db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("id = ?", id).
		Limit(1).
		Find(&employee).Error
	if err != nil {
		return nil, err
	}
	if employee.ID == 0 {
		return nil, nil
	}
	return &employee, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListEmployeeFilter, page pagination.Page) ([]*domain.Employee, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Employee{})
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(specialty) LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like,
		)
	}
	if filter.Role != "" {
		stmt = stmt.Where("role = ?", filter.Role)
	}
	if filter.Active != nil {
		stmt = stmt.Where("active = ?", *filter.Active)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var employees []*domain.Employee
	err := stmt.
		Scopes(page.Scope).
		Order("last_name asc, first_name asc, id asc").
		Find(&employees).Error
	if err != nil {
		return nil, 0, err
	}
	return employees, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, employee *domain.Employee) error {
	return db.WithContext(ctx).
		Model(&domain.Employee{}).
		Where("id = ?", employee.ID).
		Updates(map[string]any{
			"first_name":     employee.FirstName,
			"last_name":      employee.LastName,
			"role":           employee.Role,
			"specialty":      employee.Specialty,
			"phone":          employee.Phone,
			"email":          employee.Email,
			"license_number": employee.LicenseNumber,
			"active":         employee.Active,
			"hired_at":       employee.HiredAt,
			"updated_at":     employee.UpdatedAt,
		}).Error
}

func (r *repo) CountActive(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Employee{}).Where("active = ?", true).Count(&count).Error
	return count, err
}
