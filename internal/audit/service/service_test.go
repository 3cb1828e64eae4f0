package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/dentaldesk/internal/audit/domain"
	"github.com/smallbiznis/dentaldesk/internal/audit/repository"
	"github.com/smallbiznis/dentaldesk/internal/auditcontext"
	"github.com/smallbiznis/dentaldesk/internal/clock"
	obscontext "github.com/smallbiznis/dentaldesk/internal/observability/context"
	"github.com/smallbiznis/dentaldesk/pkg/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()

	conn, err := db.NewTest()
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(5)
	require.NoError(t, err)

	fake := clock.NewFakeClock(time.Date(2024, 2, 1, 8, 0, 0, 0, time.UTC))
	return NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	}), fake
}

func TestAuditLogCapturesActorAndRequest(t *testing.T) {
	svc, _ := newTestService(t)

	ctx := obscontext.WithActor(context.Background(), "77", "admin")
	ctx = auditcontext.WithRequestID(ctx, "req-1")
	ctx = auditcontext.WithIPAddress(ctx, "192.0.2.10")
	ctx = auditcontext.WithUserAgent(ctx, "test-agent")

	target := "123"
	require.NoError(t, svc.AuditLog(ctx, "patient.create", "patient", &target, map[string]any{
		"document_id": "12345678A",
		"first_name":  "Ana",
	}))

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "user", entry.ActorType)
	require.NotNil(t, entry.ActorID)
	assert.Equal(t, "77", *entry.ActorID)
	assert.Equal(t, "admin", entry.ActorRole)
	require.NotNil(t, entry.IPAddress)
	assert.Equal(t, "192.0.2.10", *entry.IPAddress)
	assert.Equal(t, "req-1", entry.Metadata["request_id"])
	assert.Equal(t, "****678A", entry.Metadata["document_id"])
	assert.Equal(t, "Ana", entry.Metadata["first_name"])
}

func TestAuditLogSystemActorAndFilters(t *testing.T) {
	svc, fake := newTestService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.AuditLog(ctx, " ", "x", nil, nil), auditdomain.ErrInvalidAction)

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.AuditLog(ctx, "payment.record", "payment", nil, nil))
		fake.Advance(time.Minute)
	}
	require.NoError(t, svc.AuditLog(ctx, "seed.admin", "", nil, nil))

	resp, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Action: "payment.record"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.TotalItems)
	assert.Equal(t, "system", resp.AuditLogs[0].ActorType)
	assert.Nil(t, resp.AuditLogs[0].ActorID)

	all, err := svc.List(ctx, auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	assert.Equal(t, "seed.admin", all.AuditLogs[0].Action)
	assert.Equal(t, "unknown", all.AuditLogs[0].TargetType)

	start := fake.Now()
	end := start.Add(-time.Hour)
	_, err = svc.List(ctx, auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)
}
