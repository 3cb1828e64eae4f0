package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/internal/appointment/domain"
	"github.com/smallbiznis/dentaldesk/internal/appointment/repository"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/config"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	employeerepo "github.com/smallbiznis/dentaldesk/internal/employee/repository"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	patientrepo "github.com/smallbiznis/dentaldesk/internal/patient/repository"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	treatmentrepo "github.com/smallbiznis/dentaldesk/internal/treatment/repository"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/smallbiznis/dentaldesk/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var day = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

type fixture struct {
	svc      domain.Service
	db       *gorm.DB
	node     *snowflake.Node
	patient  patientdomain.Patient
	dentist  employeedomain.Employee
	inactive employeedomain.Employee
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&patientdomain.Patient{},
		&employeedomain.Employee{},
		&treatmentdomain.Treatment{},
		&domain.Appointment{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := day.Add(-24 * time.Hour)
	patient := patientdomain.Patient{ID: node.Generate(), FirstName: "Luis", LastName: "Gómez", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&patient).Error)
	dentist := employeedomain.Employee{ID: node.Generate(), FirstName: "Sara", LastName: "Vidal", Role: employeedomain.RoleDentist, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&dentist).Error)
	inactive := employeedomain.Employee{ID: node.Generate(), FirstName: "Old", LastName: "Timer", Role: employeedomain.RoleDentist, Active: true, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&inactive).Error)
	require.NoError(t, conn.Model(&employeedomain.Employee{}).Where("id = ?", inactive.ID).Update("active", false).Error)

	holder, err := config.NewStaticSchedulingConfigHolder(config.DefaultSchedulingConfig())
	require.NoError(t, err)

	svc := New(Params{
		DB:            conn,
		Log:           zap.NewNop(),
		GenID:         node,
		Clock:         clock.NewFakeClock(now),
		Scheduling:    holder,
		Repo:          repository.Provide(),
		PatientRepo:   patientrepo.Provide(),
		EmployeeRepo:  employeerepo.Provide(),
		TreatmentRepo: treatmentrepo.Provide(),
	})
	return fixture{svc: svc, db: conn, node: node, patient: patient, dentist: dentist, inactive: inactive}
}

func (f fixture) book(t *testing.T, start time.Time) domain.Appointment {
	t.Helper()
	a, err := f.svc.Create(context.Background(), domain.CreateAppointmentRequest{
		PatientID:   f.patient.ID.String(),
		EmployeeID:  f.dentist.ID.String(),
		ScheduledAt: start,
		Reason:      "Revisión",
	})
	require.NoError(t, err)
	return a
}

func TestCreateAppointmentDefaults(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(9, 30))

	assert.Equal(t, domain.StatusPending, a.Status)
	assert.Equal(t, 30, a.DurationMinutes)
	assert.False(t, a.IsPaid)

	stored, err := f.svc.GetByID(context.Background(), a.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.ScheduledAt.Equal(at(9, 30)))
	assert.Equal(t, domain.StatusPending, stored.Status)
}

func TestCreateAppointmentValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateAppointmentRequest{PatientID: f.patient.ID.String(), ScheduledAt: at(9, 10)})
	assert.ErrorIs(t, err, domain.ErrInvalidScheduledAt)

	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{PatientID: f.patient.ID.String(), ScheduledAt: at(6, 30)})
	assert.ErrorIs(t, err, domain.ErrInvalidScheduledAt)

	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{PatientID: "999", ScheduledAt: at(9, 0)})
	assert.ErrorIs(t, err, domain.ErrInvalidPatient)

	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:   f.patient.ID.String(),
		EmployeeID:  f.inactive.ID.String(),
		ScheduledAt: at(9, 0),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidEmployee)

	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:   f.patient.ID.String(),
		ScheduledAt: at(9, 0),
		Status:      "completed",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	negative := decimal.NewFromInt(-5)
	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:   f.patient.ID.String(),
		ScheduledAt: at(9, 0),
		Price:       &negative,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPrice)
}

func TestCreateAppointmentRejectsOverlap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:       f.patient.ID.String(),
		EmployeeID:      f.dentist.ID.String(),
		ScheduledAt:     at(10, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:   f.patient.ID.String(),
		EmployeeID:  f.dentist.ID.String(),
		ScheduledAt: at(10, 30),
	})
	assert.ErrorIs(t, err, domain.ErrSlotUnavailable)

	f.book(t, at(11, 0))
}

func TestCancelledAppointmentFreesSlot(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(8, 0))

	_, err := f.svc.Cancel(context.Background(), a.ID.String(), "paciente enfermo")
	require.NoError(t, err)

	f.book(t, at(8, 0))
}

func TestStatusFlowAndTerminalStates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, at(12, 0))

	confirmed, err := f.svc.Confirm(ctx, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.Changed)
	assert.Equal(t, domain.StatusPending, confirmed.From)

	again, err := f.svc.Confirm(ctx, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, again.Status)
	assert.False(t, again.Changed)

	rescheduled, err := f.svc.Reschedule(ctx, a.ID.String(), at(15, 30))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRescheduled, rescheduled.Status)
	assert.True(t, rescheduled.ScheduledAt.Equal(at(15, 30)))

	completed, err := f.svc.Complete(ctx, a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, completed.Status)

	_, err = f.svc.Cancel(ctx, a.ID.String(), "")
	assert.ErrorIs(t, err, domain.ErrAppointmentTerminal)
	_, err = f.svc.Reschedule(ctx, a.ID.String(), at(16, 0))
	assert.ErrorIs(t, err, domain.ErrAppointmentTerminal)
	_, err = f.svc.Confirm(ctx, a.ID.String())
	assert.ErrorIs(t, err, domain.ErrAppointmentTerminal)

	notes := "nota"
	_, err = f.svc.Update(ctx, a.ID.String(), domain.UpdateAppointmentRequest{Notes: &notes})
	assert.ErrorIs(t, err, domain.ErrAppointmentTerminal)
}

func TestUpdateStatusAcceptsLegacyVocabulary(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(13, 0))

	updated, err := f.svc.UpdateStatus(context.Background(), a.ID.String(), domain.UpdateStatusRequest{Status: "Confirmed"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, updated.Status)

	_, err = f.svc.UpdateStatus(context.Background(), a.ID.String(), domain.UpdateStatusRequest{Status: "whatever"})
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)

	_, err = f.svc.UpdateStatus(context.Background(), a.ID.String(), domain.UpdateStatusRequest{Status: "reprogramada"})
	assert.ErrorIs(t, err, domain.ErrInvalidScheduledAt)
}

func TestLegacyStatusRowsReadCanonical(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, at(14, 0))

	require.NoError(t, f.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, "rescheduled", a.ID).Error)

	stored, err := f.svc.GetByID(context.Background(), a.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRescheduled, stored.Status)
}

func TestMarkPaidOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, at(17, 0))

	paid, err := f.svc.MarkPaid(ctx, a.ID.String(), nil)
	require.NoError(t, err)
	assert.True(t, paid.IsPaid)
	require.NotNil(t, paid.PaidAt)

	_, err = f.svc.MarkPaid(ctx, a.ID.String(), nil)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)

	b := f.book(t, at(18, 0))
	_, err = f.svc.Cancel(ctx, b.ID.String(), "")
	require.NoError(t, err)
	_, err = f.svc.MarkPaid(ctx, b.ID.String(), nil)
	assert.ErrorIs(t, err, domain.ErrAppointmentCancelled)
}

func TestAvailableSlotsMarksBookedTimes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, domain.CreateAppointmentRequest{
		PatientID:       f.patient.ID.String(),
		EmployeeID:      f.dentist.ID.String(),
		ScheduledAt:     at(9, 0),
		DurationMinutes: 60,
	})
	require.NoError(t, err)

	slots, err := f.svc.AvailableSlots(ctx, domain.AvailableSlotsRequest{Date: day, EmployeeID: f.dentist.ID.String()})
	require.NoError(t, err)
	require.Len(t, slots, 27)

	taken := map[string]bool{}
	for _, slot := range slots {
		if !slot.Available {
			taken[slot.Value] = true
		}
	}
	assert.Equal(t, map[string]bool{"09:00": true, "09:30": true}, taken)
}

func TestListAppointmentsPaginatesByDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for hour := 7; hour < 19; hour++ {
		f.book(t, at(hour, 0))
	}

	from, to := day, day.Add(24*time.Hour)
	resp, err := f.svc.List(ctx, domain.ListAppointmentRequest{From: &from, To: &to})
	require.NoError(t, err)
	assert.Equal(t, int64(12), resp.TotalItems)
	assert.Equal(t, 2, resp.TotalPages)
	assert.Len(t, resp.Appointments, 10)

	resp, err = f.svc.List(ctx, domain.ListAppointmentRequest{From: &from, To: &to, Pagination: paginationFrom(resp.NextPageToken)})
	require.NoError(t, err)
	assert.Len(t, resp.Appointments, 2)
	assert.Equal(t, 2, resp.Page)
}

func paginationFrom(token string) pagination.Pagination {
	return pagination.Pagination{PageToken: token}
}

func TestLegacyCancelledRowFreesSlotAndFiltersAsCancelled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, at(10, 0))

	require.NoError(t, f.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, " Cancelled", a.ID).Error)

	rebooked := f.book(t, at(10, 0))

	slots, err := f.svc.AvailableSlots(ctx, domain.AvailableSlotsRequest{Date: day, EmployeeID: f.dentist.ID.String()})
	require.NoError(t, err)
	for _, slot := range slots {
		if slot.Value == "10:00" {
			assert.False(t, slot.Available)
		}
	}

	cancelled, err := f.svc.List(ctx, domain.ListAppointmentRequest{Status: "cancelada"})
	require.NoError(t, err)
	require.Equal(t, int64(1), cancelled.TotalItems)
	assert.Equal(t, a.ID, cancelled.Appointments[0].ID)
	assert.Equal(t, domain.StatusCancelled, cancelled.Appointments[0].Status)

	pending, err := f.svc.List(ctx, domain.ListAppointmentRequest{Status: "pending"})
	require.NoError(t, err)
	require.Equal(t, int64(1), pending.TotalItems)
	assert.Equal(t, rebooked.ID, pending.Appointments[0].ID)
}

func TestUnknownStoredStatusFiltersAsPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, at(11, 0))
	b := f.book(t, at(12, 0))

	require.NoError(t, f.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, "en espera", a.ID).Error)
	_, err := f.svc.Confirm(ctx, b.ID.String())
	require.NoError(t, err)

	pending, err := f.svc.List(ctx, domain.ListAppointmentRequest{Status: "pendiente"})
	require.NoError(t, err)
	require.Equal(t, int64(1), pending.TotalItems)
	assert.Equal(t, a.ID, pending.Appointments[0].ID)
	assert.Equal(t, domain.StatusPending, pending.Appointments[0].Status)
}

func TestCountUpcomingSkipsLegacyTerminalRows(t *testing.T) {
	f := newFixture(t)
	done := f.book(t, at(8, 0))
	dropped := f.book(t, at(8, 30))
	f.book(t, at(9, 0))

	require.NoError(t, f.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, "completed", done.ID).Error)
	require.NoError(t, f.db.Exec(`UPDATE appointments SET status = ? WHERE id = ?`, "canceled", dropped.ID).Error)

	count, err := repository.Provide().CountUpcoming(context.Background(), f.db, day, day.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}
