package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Appointment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Appointment, error)
	List(ctx context.Context, db *gorm.DB, filter ListAppointmentFilter, page pagination.Page) ([]*Appointment, int64, error)
	// ListBooked returns non-cancelled appointments of an employee starting in [from, to).
	ListBooked(ctx context.Context, db *gorm.DB, employeeID snowflake.ID, from, to time.Time) ([]*Appointment, error)
	Update(ctx context.Context, db *gorm.DB, appointment *Appointment) error
	MarkPaid(ctx context.Context, db *gorm.DB, id snowflake.ID, paidAt time.Time) error
	CountByStatus(ctx context.Context, db *gorm.DB, from, to time.Time) (map[Status]int64, error)
	CountUpcoming(ctx context.Context, db *gorm.DB, from, to time.Time) (int64, error)
}
