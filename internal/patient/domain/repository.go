package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, patient *Patient) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Patient, error)
	List(ctx context.Context, db *gorm.DB, filter ListPatientFilter, page pagination.Page) ([]*Patient, int64, error)
	Update(ctx context.Context, db *gorm.DB, patient *Patient) error
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) error
	// CountReferences counts appointments, treatments and payments of a patient.
	CountReferences(ctx context.Context, db *gorm.DB, id snowflake.ID) (int64, error)
	Count(ctx context.Context, db *gorm.DB) (int64, error)
}
