package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	employeedomain "github.com/smallbiznis/dentaldesk/internal/employee/domain"
	employeerepo "github.com/smallbiznis/dentaldesk/internal/employee/repository"
	patientdomain "github.com/smallbiznis/dentaldesk/internal/patient/domain"
	patientrepo "github.com/smallbiznis/dentaldesk/internal/patient/repository"
	"github.com/smallbiznis/dentaldesk/internal/treatment/domain"
	"github.com/smallbiznis/dentaldesk/internal/treatment/repository"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type fixture struct {
	svc     domain.Service
	db      *gorm.DB
	patient patientdomain.Patient
}

func newFixture(t *testing.T) fixture {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&patientdomain.Patient{}, &employeedomain.Employee{}, &domain.Treatment{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	now := time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
	patient := patientdomain.Patient{ID: node.Generate(), FirstName: "Ana", LastName: "Pérez", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, conn.Create(&patient).Error)

	svc := New(Params{
		DB:           conn,
		Log:          zap.NewNop(),
		GenID:        node,
		Clock:        clock.NewFakeClock(now),
		Repo:         repository.Provide(),
		PatientRepo:  patientrepo.Provide(),
		EmployeeRepo: employeerepo.Provide(),
	})
	return fixture{svc: svc, db: conn, patient: patient}
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func TestCreateTreatmentComputesAccount(t *testing.T) {
	f := newFixture(t)

	tr, err := f.svc.Create(context.Background(), domain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Ortodoncia",
		Items: []domain.BudgetItem{
			{Description: "A", Quantity: 2, UnitPrice: dec("50")},
			{Description: "B", Quantity: 1, UnitPrice: dec("100"), SubItems: []domain.BudgetSubItem{
				{Description: "b1", Quantity: 3, UnitPrice: dec("10")},
				{Description: "b2", Quantity: 2, UnitPrice: dec("5")},
			}},
		},
	})
	require.NoError(t, err)
	assert.True(t, tr.TotalBudget.Equal(dec("140")))
	assert.True(t, tr.AmountPaid.IsZero())
	assert.True(t, tr.AmountPending.Equal(dec("140")))
	assert.False(t, tr.IsFullySettled)
	assert.Equal(t, domain.StatusActive, tr.Status)

	stored, err := f.svc.GetByID(context.Background(), tr.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.TotalBudget.Equal(dec("140")))
	require.Len(t, stored.Items, 2)
	assert.Len(t, stored.Items[1].SubItems, 2)
}

func TestCreateTreatmentRequiresKnownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), domain.CreateTreatmentRequest{
		PatientID: "42",
		Name:      "Limpieza",
		Items:     []domain.BudgetItem{{Description: "x", Quantity: 1, UnitPrice: dec("10")}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidPatient)
}

func TestUpdateBudgetKeepsPaymentsAndResettles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.svc.Create(ctx, domain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Implante",
		Items:     []domain.BudgetItem{{Description: "Implante", Quantity: 1, UnitPrice: dec("500")}},
	})
	require.NoError(t, err)

	paid := domain.Account{TotalBudget: dec("500"), AmountPaid: dec("500"), AmountPending: decimal.Zero, IsFullySettled: true}
	require.NoError(t, repository.Provide().UpdateAccount(ctx, f.db, tr.ID, paid, time.Now().UTC()))

	updated, err := f.svc.UpdateBudget(ctx, tr.ID.String(), domain.UpdateBudgetRequest{
		Items: []domain.BudgetItem{
			{Description: "Implante", Quantity: 1, UnitPrice: dec("500")},
			{Description: "Corona", Quantity: 1, UnitPrice: dec("120")},
		},
	})
	require.NoError(t, err)
	assert.True(t, updated.TotalBudget.Equal(dec("620")))
	assert.True(t, updated.AmountPaid.Equal(dec("500")))
	assert.True(t, updated.AmountPending.Equal(dec("120")))
	assert.False(t, updated.IsFullySettled)

	_, err = f.svc.UpdateBudget(ctx, tr.ID.String(), domain.UpdateBudgetRequest{
		Items: []domain.BudgetItem{{Description: "Implante", Quantity: 1, UnitPrice: dec("100")}},
	})
	assert.ErrorIs(t, err, domain.ErrBudgetBelowPaid)
}

func TestListPendingHidesSettledAccounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	open, err := f.svc.Create(ctx, domain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Endodoncia",
		Items:     []domain.BudgetItem{{Description: "x", Quantity: 1, UnitPrice: dec("300")}},
	})
	require.NoError(t, err)
	settled, err := f.svc.Create(ctx, domain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Limpieza",
		Items:     []domain.BudgetItem{{Description: "x", Quantity: 1, UnitPrice: dec("50")}},
	})
	require.NoError(t, err)

	done := domain.Account{TotalBudget: dec("50"), AmountPaid: dec("50"), AmountPending: decimal.Zero, IsFullySettled: true}
	require.NoError(t, repository.Provide().UpdateAccount(ctx, f.db, settled.ID, done, time.Now().UTC()))

	pending, err := f.svc.ListPending(ctx, f.patient.ID.String())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, open.ID, pending[0].ID)
}

func TestFinishTreatmentBlocksBudgetEdits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tr, err := f.svc.Create(ctx, domain.CreateTreatmentRequest{
		PatientID: f.patient.ID.String(),
		Name:      "Blanqueamiento",
		Items:     []domain.BudgetItem{{Description: "x", Quantity: 1, UnitPrice: dec("80")}},
	})
	require.NoError(t, err)

	finished, err := f.svc.Finish(ctx, tr.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFinished, finished.Status)
	assert.NotNil(t, finished.FinishedAt)

	_, err = f.svc.UpdateBudget(ctx, tr.ID.String(), domain.UpdateBudgetRequest{
		Items: []domain.BudgetItem{{Description: "x", Quantity: 1, UnitPrice: dec("90")}},
	})
	assert.ErrorIs(t, err, domain.ErrTreatmentFinished)
}
