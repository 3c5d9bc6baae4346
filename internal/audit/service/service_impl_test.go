package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/quotaledger/internal/audit/domain"
	"github.com/smallbiznis/quotaledger/internal/audit/repository"
	"github.com/smallbiznis/quotaledger/internal/clock"
	obscontext "github.com/smallbiznis/quotaledger/internal/observability/context"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupAuditService(t *testing.T) (auditdomain.Service, *clock.FakeClock) {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&auditdomain.AuditLog{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	fake := clock.NewFakeClock(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))

	svc := NewService(Params{
		DB:    conn,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: fake,
		Repo:  repository.Provide(),
	})
	return svc, fake
}

func TestRecordFillsRequestContext(t *testing.T) {
	svc, _ := setupAuditService(t)
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithActor(ctx, "", "holder-a")

	err := svc.Record(ctx, auditdomain.Entry{
		ActorRole:  auditdomain.ActorRoleHolder,
		Action:     "quota.use",
		TargetType: "quota",
		TargetID:   "CX-1/holder-a",
		Outcome:    auditdomain.OutcomeAccepted,
		Metadata: map[string]any{
			"amount":            400,
			"transport_details": "truck_B1234XYZ",
		},
	})
	require.NoError(t, err)

	resp, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{})
	require.NoError(t, err)
	require.Len(t, resp.AuditLogs, 1)

	entry := resp.AuditLogs[0]
	assert.Equal(t, "holder-a", entry.ActorID)
	assert.Equal(t, "holder", entry.ActorRole)
	assert.Equal(t, "req-1", entry.RequestID)
	assert.Equal(t, "accepted", entry.Outcome)
	assert.Equal(t, "truck_****4XYZ", entry.Metadata["transport_details"])
}

func TestRecordRejectsMissingActionAndOutcome(t *testing.T) {
	svc, _ := setupAuditService(t)

	err := svc.Record(context.Background(), auditdomain.Entry{Outcome: auditdomain.OutcomeAccepted})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidAction)

	err = svc.Record(context.Background(), auditdomain.Entry{Action: "quota.use", Outcome: "maybe"})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidOutcome)
}

func TestListFiltersAndPaginates(t *testing.T) {
	svc, fake := setupAuditService(t)
	ctx := context.Background()

	outcomes := []auditdomain.Outcome{
		auditdomain.OutcomeAccepted,
		auditdomain.OutcomeDenied,
		auditdomain.OutcomeAccepted,
	}
	for _, outcome := range outcomes {
		fake.Advance(time.Second)
		require.NoError(t, svc.Record(ctx, auditdomain.Entry{
			ActorRole: auditdomain.ActorRoleRegulator,
			ActorID:   "regulator",
			Action:    "quota.suspend",
			TargetID:  "CX-1/holder-a",
			Outcome:   outcome,
		}))
	}

	denied, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Outcome: "denied"})
	require.NoError(t, err)
	require.Len(t, denied.AuditLogs, 1)

	first, err := svc.List(ctx, auditdomain.ListAuditLogRequest{Pagination: pagination.Pagination{PageSize: 2}})
	require.NoError(t, err)
	require.Len(t, first.AuditLogs, 2)
	require.True(t, first.HasMore)
	assert.True(t, first.AuditLogs[0].CreatedAt.After(first.AuditLogs[1].CreatedAt))

	second, err := svc.List(ctx, auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageSize: 2, PageToken: first.NextPageToken},
	})
	require.NoError(t, err)
	require.Len(t, second.AuditLogs, 1)
	assert.False(t, second.HasMore)
}

func TestListRejectsInvertedRange(t *testing.T) {
	svc, _ := setupAuditService(t)
	start := time.Now()
	end := start.Add(-time.Hour)

	_, err := svc.List(context.Background(), auditdomain.ListAuditLogRequest{StartAt: &start, EndAt: &end})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidTimeRange)

	_, err = svc.List(context.Background(), auditdomain.ListAuditLogRequest{
		Pagination: pagination.Pagination{PageToken: "bogus"},
	})
	assert.ErrorIs(t, err, auditdomain.ErrInvalidPageToken)
}
