package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, employee *Employee) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Employee, error)
	List(ctx context.Context, db *gorm.DB, filter ListEmployeeFilter, page pagination.Page) ([]*Employee, int64, error)
	Update(ctx context.Context, db *gorm.DB, employee *Employee) error
	CountActive(ctx context.Context, db *gorm.DB) (int64, error)
}
