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
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	employeerepo "github.com/smallbiznis/dentaldesk/internal/employee/repository"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	patientrepo "github.com/smallbiznis/dentaldesk/internal/patient/repository"
	"github.com/smallbiznis/dentaldesk/internal/payment/domain"
	"github.com/smallbiznis/dentaldesk/internal/payment/repository"
	treatmentdomain "github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	treatmentrepo "github.com/smallbiznis/dentaldesk/internal/treatment/repository"
	treatmentservice "github.com/smallbiznis/dentaldesk/internal/treatment/service"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc        domain.Service
	treatments treatmentdomain.Service
	db         *gorm.DB
	node       *snowflake.Node
	clock      *clock.FakeClock
	patient    patientdomain.Patient
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&patientdomain.Patient{},
		&employeedomain.Employee{},
		&treatmentdomain.Treatment{},
		&appointmentdomain.Appointment{},
		&domain.Payment{},
	))

	node, err := snowflake.NewNode(3)
	require.NoError(t, err)

	now := time.Date(2024, 7, 15, 16, 0, 0, 0, time.UTC)
	fake := clock.NewFakeClock(now)
	patient := patientdomain.Patient{ID: node.Generate(), FirstName: "Marta", LastName: "Ruiz", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&patient).Error)

	treatments := treatmentservice.New(treatmentservice.Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        fake,
		Repo:         treatmentrepo.Provide(),
		PatientRepo:  patientrepo.Provide(),
		EmployeeRepo: employeerepo.Provide(),
	})
	svc := New(Params{
		DB:              conn,
		Log:             zap.NewNop(),
		GenID:           node,
		Clock:           fake,
		Repo:            repository.Provide(),
		PatientRepo:     patientrepo.Provide(),
		TreatmentRepo:   treatmentrepo.Provide(),
		AppointmentRepo: appointmentrepo.Provide(),
	})
	return fixture{svc: svc, treatments: treatments, db: conn, node: node, clock: fake, patient: patient}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (f fixture) treatment(t *testing.T, total string) treatmentdomain.Treatment {
	t.Helper()
	tr, err := f.treatments.Create(context.Background(), treatmentdomain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Implante",
		Items:     []treatmentdomain.BudgetItem{{Description: "Implante", Quantity: 1, UnitPrice: dec(total)}},
	})
	require.NoError(t, err)
	return tr
}

func (f fixture) appointment(t *testing.T, status appointmentdomain.Status, price *decimal.Decimal) appointmentdomain.Appointment {
	t.Helper()
	a := appointmentdomain.Appointment{
		ID:              f.node.Generate(),
		PatientID:       f.patient.ID,
		ScheduledAt:     f.clock.Now().Add(-2 * time.Hour),
		DurationMinutes: 30,
		Status:          status,
		CreatedAt:       f.clock.Now(),
		UpdatedAt:       f.clock.Now(),
	}
	if price != nil {
		a.Price = decimal.NewNullDecimal(*price)
	}
	require.NoError(t, appointmentrepo.Provide().Insert(context.Background(), f.db, &a))
	return a
}

func (f fixture) countPayments(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(&domain.Payment{}).Count(&n).Error)
	return n
}

func TestRecordTreatmentPaymentsUntilSettled(t *testing.T) {
	f := newFixture(t)
	ctx := obscontext.WithActor(context.Background(), "42", "receptionist")
	tr := f.treatment(t, "500")

	first, err := f.svc.Record(ctx, domain.RecordPaymentRequest{
		Amount: dec("200"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String(),
	})
	require.NoError(t, err)
	require.NotNil(t, first.Account)
	assert.True(t, first.Account.AmountPaid.Equal(dec("200")))
	assert.True(t, first.Account.AmountPending.Equal(dec("300")))
	assert.False(t, first.Account.IsFullySettled)
	assert.Equal(t, f.patient.ID, first.Payment.PatientID)
	assert.Equal(t, "42", first.Payment.RecordedBy)
	assert.NotEmpty(t, first.Payment.ReceiptNumber)

	second, err := f.svc.Record(ctx, domain.RecordPaymentRequest{
		Amount: dec("300"), Method: "card", TargetKind: "treatment", TargetID: tr.ID.String(),
	})
	require.NoError(t, err)
	assert.True(t, second.Account.AmountPending.IsZero())
	assert.True(t, second.Account.IsFullySettled)
	assert.Equal(t, domain.MethodCard, second.Payment.Method)
	assert.NotEqual(t, first.Payment.ReceiptNumber, second.Payment.ReceiptNumber)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{
		Amount: dec("1"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrAccountSettled)
	assert.Equal(t, int64(2), f.countPayments(t))

	stored, err := f.treatments.GetByID(context.Background(), tr.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.Equal(dec("500")))
	assert.True(t, stored.AmountPending.IsZero())
	assert.True(t, stored.IsFullySettled)

	pending, err := f.treatments.ListPending(context.Background(), f.patient.ID.String())
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRejectedPaymentLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.treatment(t, "100")

	_, err := f.svc.Record(ctx, domain.RecordPaymentRequest{
		Amount: dec("150"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrAmountExceedsPending)
	assert.Equal(t, int64(0), f.countPayments(t))

	stored, err := f.treatments.GetByID(ctx, tr.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.AmountPaid.IsZero())
	assert.True(t, stored.AmountPending.Equal(dec("100")))
}

func TestRecordValidatesRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.treatment(t, "100")

	_, err := f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("10"), Method: "efectivo", TargetKind: "factura", TargetID: tr.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTargetKind)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("10"), Method: "cheque", TargetKind: "tratamiento", TargetID: tr.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidMethod)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("0"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String()})
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("10"), Method: "efectivo", TargetKind: "tratamiento", TargetID: f.node.Generate().String()})
	assert.ErrorIs(t, err, domain.ErrInvalidTarget)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{
		PatientID: f.node.Generate().String(), Amount: dec("10"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String(),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPatient)

	future := f.clock.Now().Add(time.Hour)
	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{
		Amount: dec("10"), Method: "efectivo", TargetKind: "tratamiento", TargetID: tr.ID.String(), PaidAt: &future,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPaidAt)
}

func TestRecordAppointmentPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	price := dec("40")
	a := f.appointment(t, appointmentdomain.StatusCompleted, &price)

	_, err := f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("45"), Method: "efectivo", TargetKind: "cita", TargetID: a.ID.String()})
	assert.ErrorIs(t, err, domain.ErrAmountExceedsPrice)

	resp, err := f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("40"), Method: "efectivo", TargetKind: "cita", TargetID: a.ID.String()})
	require.NoError(t, err)
	assert.Nil(t, resp.Account)
	assert.Equal(t, domain.TargetAppointment, resp.Payment.TargetKind)

	stored, err := appointmentrepo.Provide().FindByID(ctx, f.db, a.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, stored.IsPaid)

	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("40"), Method: "efectivo", TargetKind: "cita", TargetID: a.ID.String()})
	assert.ErrorIs(t, err, appointmentdomain.ErrAlreadyPaid)

	cancelled := f.appointment(t, appointmentdomain.StatusCancelled, nil)
	_, err = f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("10"), Method: "efectivo", TargetKind: "cita", TargetID: cancelled.ID.String()})
	assert.ErrorIs(t, err, appointmentdomain.ErrAppointmentCancelled)

	assert.Equal(t, int64(1), f.countPayments(t))
}

func TestListPaymentsAndReceipt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tr := f.treatment(t, "900")

	for i := 0; i < 3; i++ {
		_, err := f.svc.Record(ctx, domain.RecordPaymentRequest{Amount: dec("100"), Method: "tarjeta", TargetKind: "tratamiento", TargetID: tr.ID.String()})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	resp, err := f.svc.List(ctx, domain.ListPaymentRequest{PatientID: f.patient.ID.String(), Method: "card"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, 1, resp.TotalPages)
	require.Len(t, resp.Payments, 3)
	assert.True(t, resp.Payments[0].PaidAt.After(resp.Payments[2].PaidAt))

	receipt, err := f.svc.Receipt(ctx, resp.Payments[0].ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Marta Ruiz", receipt.PatientName)
	assert.Equal(t, "Implante", receipt.Concept)
	require.NotNil(t, receipt.Account)
	assert.True(t, receipt.Account.AmountPending.Equal(dec("600")))

	_, err = f.svc.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
	_, err = f.svc.GetByID(ctx, f.node.Generate().String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
