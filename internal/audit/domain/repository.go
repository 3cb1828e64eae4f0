package domain

import (
	"context"

	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Page) ([]*AuditLog, int64, error)
}
