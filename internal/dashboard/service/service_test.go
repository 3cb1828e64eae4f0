package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	appointmentdomain "github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	appointmentrepo "github.com/smallbiznis/dentaldesk/internal/appointment/repository"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	employeerepo "github.com/smallbiznis/dentaldesk/internal/employee/repository"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	patientrepo "github.com/smallbiznis/dentaldesk/internal/patient/repository"
	paymentdomain "github.com/smallbiznis/dentaldesk/internal/payment/domain"
	paymentrepo "github.com/smallbiznis/dentaldesk/internal/payment/repository"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	treatmentrepo "github.com/smallbiznis/dentaldesk/internal/treatment/repository"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSummaryAggregates(t *testing.T) {
	ctx := context.Background()
	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&patientdomain.Patient{},
		&employeedomain.Employee{},
		&treatmentdomain.Treatment{},
		&appointmentdomain.Appointment{},
		&paymentdomain.Payment{},
	))

	node, err := snowflake.NewNode(4)
	require.NoError(t, err)
	now := time.Date(2024, 9, 18, 10, 0, 0, 0, time.UTC)

	patient := patientdomain.Patient{ID: node.Generate(), FirstName: "Ana", LastName: "Gil", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&patient).Error)
	dentist := employeedomain.Employee{ID: node.Generate(), FirstName: "Iván", LastName: "Mora", Role: employeedomain.RoleDentist, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&dentist).Error)

	appointments := appointmentrepo.Provide()
	for i, status := range []appointmentdomain.Status{
		appointmentdomain.StatusConfirmed,
		appointmentdomain.StatusPending,
		appointmentdomain.StatusCancelled,
	} {
		a := appointmentdomain.Appointment{
			ID:              node.Generate(),
			PatientID:       patient.ID,
			ScheduledAt:     now.Add(time.Duration(i+1) * time.Hour),
			DurationMinutes: 30,
			Status:          status,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		require.NoError(t, appointments.Insert(ctx, conn, &a))
	}
	nextWeek := appointmentdomain.Appointment{
		ID: node.Generate(), PatientID: patient.ID, ScheduledAt: now.Add(72 * time.Hour),
		DurationMinutes: 30, Status: appointmentdomain.StatusPending, CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, appointments.Insert(ctx, conn, &nextWeek))

	tr := treatmentdomain.Treatment{ID: node.Generate(), PatientID: patient.ID, Name: "Corona", Status: treatmentdomain.StatusActive, CreatedAt: now, UpdatedAt: now}
	tr.SetAccount(treatmentdomain.Account{
		TotalBudget:   decimal.NewFromInt(300),
		AmountPaid:    decimal.NewFromInt(120),
		AmountPending: decimal.NewFromInt(180),
	})
	require.NoError(t, treatmentrepo.Provide().Insert(ctx, conn, &tr))

	payments := paymentrepo.Provide()
	for i, paidAt := range []time.Time{now.Add(-time.Hour), now.AddDate(0, -1, 0)} {
		p := paymentdomain.Payment{
			ID:            node.Generate(),
			ReceiptNumber: []string{"R1", "R2"}[i],
			PatientID:     patient.ID,
			Amount:        decimal.NewFromInt(60),
			Method:        paymentdomain.MethodCash,
			TargetKind:    paymentdomain.TargetTreatment,
			TargetID:      tr.ID,
			PaidAt:        paidAt,
			CreatedAt:     now,
		}
		require.NoError(t, payments.Insert(ctx, conn, &p))
	}

	holder, err := config.NewStaticSchedulingConfigHolder(config.DefaultSchedulingConfig())
	require.NoError(t, err)
	svc := NewService(Params{
		DB:              conn,
		Log:             zap.NewNop(),
		Clock:           clock.NewFakeClock(now),
		Scheduling:      holder,
		PatientRepo:     patientrepo.Provide(),
		EmployeeRepo:    employeerepo.Provide(),
		AppointmentRepo: appointments,
		TreatmentRepo:   treatmentrepo.Provide(),
		PaymentRepo:     payments,
	})

	summary, err := svc.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalPatients)
	assert.Equal(t, int64(1), summary.ActiveEmployees)
	assert.Equal(t, int64(3), summary.TodayTotal)
	assert.Equal(t, int64(1), summary.TodayAppointments["confirmada"])
	assert.Equal(t, int64(1), summary.TodayAppointments["cancelada"])
	assert.Equal(t, int64(0), summary.TodayAppointments["completada"])
	assert.Equal(t, int64(3), summary.UpcomingAppointments)
	assert.True(t, summary.OutstandingBalance.Equal(decimal.NewFromInt(180)), summary.OutstandingBalance.String())
	assert.True(t, summary.CollectedThisMonth.Equal(decimal.NewFromInt(60)), summary.CollectedThisMonth.String())
}
