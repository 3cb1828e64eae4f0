package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Summary is the home page snapshot.
type Summary struct {
	TotalPatients        int64            `json:"total_patients"`
	ActiveEmployees      int64            `json:"active_employees"`
	TodayAppointments    map[string]int64 `json:"today_appointments"`
	TodayTotal           int64            `json:"today_total"`
	UpcomingAppointments int64            `json:"upcoming_appointments"`
	OutstandingBalance   decimal.Decimal  `json:"outstanding_balance"`
	CollectedThisMonth   decimal.Decimal  `json:"collected_this_month"`
	GeneratedAt          time.Time        `json:"generated_at"`
}

type Service interface {
	Summary(ctx context.Context) (Summary, error)
}
