package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	"github.com/smallbiznis/dentaldesk/internal/employee/domain"
	"github.com/smallbiznis/dentaldesk/internal/employee/repository"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) domain.Service {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&domain.Employee{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	return New(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2024, 3, 4, 9, 0, 0, 0, time.UTC)),
		Repo:  repository.Provide(),
	})
}

func TestCreateEmployeeAcceptsSpanishRole(t *testing.T) {
	svc := newTestService(t)

	emp, err := svc.Create(context.Background(), domain.CreateEmployeeRequest{
		FirstName: "Lucía",
		LastName:  "Méndez",
		Role:      "Dentista",
		Specialty: "Ortodoncia",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleDentist, emp.Role)
	assert.True(t, emp.Active)
}

func TestCreateEmployeeRejectsUnknownRole(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateEmployeeRequest{
		FirstName: "Pedro",
		LastName:  "Ruiz",
		Role:      "janitor",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidRole)
}

func TestDeactivateAndFilterByActive(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, domain.CreateEmployeeRequest{FirstName: "Ana", LastName: "Sosa", Role: "dentist"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, domain.CreateEmployeeRequest{FirstName: "Bea", LastName: "Toro", Role: "assistant"})
	require.NoError(t, err)

	updated, err := svc.Deactivate(ctx, a.ID.String())
	require.NoError(t, err)
	assert.False(t, updated.Active)

	active := true
	resp, err := svc.List(ctx, domain.ListEmployeeRequest{Active: &active})
	require.NoError(t, err)
	require.Len(t, resp.Employees, 1)
	assert.Equal(t, "Bea", resp.Employees[0].FirstName)
	assert.Equal(t, int64(1), resp.TotalItems)
}

func TestGetEmployeeNotFound(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.GetByID(context.Background(), "12345")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(context.Background(), "not-an-id")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}
