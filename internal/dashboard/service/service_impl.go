package service

import (
	"context"
	"time"

	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/smallbiznis/dentaldesk/internal/dashboard/domain"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const upcomingWindow = 7 * 24 * time.Hour

type Params struct {
	fx.In

	DB              *gorm.DB
	Log             *zap.Logger
	Clock           clock.Clock
	Scheduling      *config.SchedulingConfigHolder
	PatientRepo     patientdomain.Repository
	EmployeeRepo    employeedomain.Repository
	AppointmentRepo appointmentdomain.Repository
	TreatmentRepo   treatmentdomain.Repository
	PaymentRepo     paymentdomain.Repository
}

type Service struct {
	db              *gorm.DB
	log             *zap.Logger
	clock           clock.Clock
	scheduling      *config.SchedulingConfigHolder
	patientRepo     patientdomain.Repository
	employeeRepo    employeedomain.Repository
	appointmentRepo appointmentdomain.Repository
	treatmentRepo   treatmentdomain.Repository
	paymentRepo     paymentdomain.Repository
}

func NewService(p Params) domain.Service {
	return &Service{
		db:              p.DB,
		log:             p.Log.Named("dashboard.service"),
		clock:           p.Clock,
		scheduling:      p.Scheduling,
		patientRepo:     p.PatientRepo,
		employeeRepo:    p.EmployeeRepo,
		appointmentRepo: p.AppointmentRepo,
		treatmentRepo:   p.TreatmentRepo,
		paymentRepo:     p.PaymentRepo,
	}
}

func (s *Service) Summary(ctx context.Context) (domain.Summary, error) {
	now := s.clock.Now()
	loc := s.scheduling.Get().Location()
	dayStart, dayEnd := appointmentdomain.DayBounds(now, loc)
	monthStart, monthEnd := monthBounds(now, loc)

	summary := domain.Summary{
		TodayAppointments: make(map[string]int64, len(appointmentdomain.AllStatuses)),
		GeneratedAt:       now,
	}
	for _, status := range appointmentdomain.AllStatuses {
		summary.TodayAppointments[string(status)] = 0
	}

	var err error
	if summary.TotalPatients, err = s.patientRepo.Count(ctx, s.db); err != nil {
		return domain.Summary{}, err
	}
	if summary.ActiveEmployees, err = s.employeeRepo.CountActive(ctx, s.db); err != nil {
		return domain.Summary{}, err
	}

	byStatus, err := s.appointmentRepo.CountByStatus(ctx, s.db, dayStart, dayEnd)
	if err != nil {
		return domain.Summary{}, err
	}
	for status, count := range byStatus {
		summary.TodayAppointments[string(status)] += count
		summary.TodayTotal += count
	}

	if summary.UpcomingAppointments, err = s.appointmentRepo.CountUpcoming(ctx, s.db, now, now.Add(upcomingWindow)); err != nil {
		return domain.Summary{}, err
	}
	if summary.OutstandingBalance, err = s.treatmentRepo.SumPending(ctx, s.db); err != nil {
		return domain.Summary{}, err
	}
	if summary.CollectedThisMonth, err = s.paymentRepo.SumBetween(ctx, s.db, monthStart, monthEnd); err != nil {
		return domain.Summary{}, err
	}
	return summary, nil
}

func monthBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start.UTC(), start.AddDate(0, 1, 0).UTC()
}
