package repository

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/patient/domain"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, patient *domain.Patient) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO patients (id, first_name, last_name, document_id, birth_date, gender, phone, email,
		 address, allergies, medical_notes, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		patient.ID,
		patient.FirstName,
		patient.LastName,
		patient.DocumentID,
		patient.BirthDate,
		patient.Gender,
		patient.Phone,
		patient.Email,
		patient.Address,
		patient.Allergies,
		patient.MedicalNotes,
		patient.CreatedAt,
		patient.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Patient, error) {
	var patient domain.Patient
	err := db.WithContext(ctx).
		Model(&domain.Patient{}).
		Where("id = ?", id).
		Limit(1).
		Find(&patient).Error
	if err != nil {
		return nil, err
	}
	if patient.ID == 0 {
		return nil, nil
	}
	return &patient, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListPatientFilter, page pagination.Page) ([]*domain.Patient, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Patient{})
	if q := strings.ToLower(strings.TrimSpace(filter.Query)); q != "" {
		like := "%" + q + "%"
		stmt = stmt.Where(
			"LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ? OR LOWER(COALESCE(document_id, '')) LIKE ? OR phone LIKE ? OR LOWER(email) LIKE ?",
			like, like, like, like, like,
		)
	}

	var total int64
	if err := stmt.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var patients []*domain.Patient
	err := stmt.
		Scopes(page.Scope).
		Order("last_name asc, first_name asc, id asc").
		Find(&patients).Error
	if err != nil {
		return nil, 0, err
	}
	return patients, total, nil
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, patient *domain.Patient) error {
	return db.WithContext(ctx).
		Model(&domain.Patient{}).
		Where("id = ?", patient.ID).
		Updates(map[string]any{
			"first_name":    patient.FirstName,
			"last_name":     patient.LastName,
			"document_id":   patient.DocumentID,
			"birth_date":    patient.BirthDate,
			"gender":        patient.Gender,
			"phone":         patient.Phone,
			"email":         patient.Email,
			"address":       patient.Address,
			"allergies":     patient.Allergies,
			"medical_notes": patient.MedicalNotes,
			"updated_at":    patient.UpdatedAt,
		}).Error
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error {
	return db.WithContext(ctx).Exec(`DELETE FROM patients WHERE id = ?`, id).Error
}

func (r *repo) CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT
		   (SELECT COUNT(*) FROM appointments WHERE patient_id = ?) +
		   (SELECT COUNT(*) FROM treatments WHERE patient_id = ?) +
		   (SELECT COUNT(*) FROM payments WHERE patient_id = ?)`,
		id, id, id,
	).Scan(&count).Error
	return count, err
}

func (r *repo) Count(ctx context.Context, db *gorm.DB) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Model(&domain.Patient{}).Count(&count).Error
	return count, err
}
