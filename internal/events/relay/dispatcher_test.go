package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/quotaledger/internal/clock"
	"github.com/smallbiznis/quotaledger/internal/config"
	eventsdomain "github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/internal/events/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type recordingSink struct {
	mu   sync.Mutex
	sent []*eventsdomain.Event
	err  error
}

func (s *recordingSink) Send(ctx context.Context, events []*eventsdomain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, events...)
	return nil
}

type relayFixture struct {
	db         *gorm.DB
	node       *snowflake.Node
	sink       *recordingSink
	dispatcher *Dispatcher
}

func setupRelay(t *testing.T, cfg config.RelayConfig) *relayFixture {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&eventsdomain.Event{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	sink := &recordingSink{}
	dispatcher := NewDispatcher(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Clock:  clock.NewFakeClock(time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)),
		Repo:   repository.Provide(),
		Config: config.NewStaticRelayConfigHolder(cfg),
	}, sink)

	return &relayFixture{db: conn, node: node, sink: sink, dispatcher: dispatcher}
}

func (f *relayFixture) seed(t *testing.T, n int) {
	t.Helper()
	rows := make([]*eventsdomain.Event, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, &eventsdomain.Event{
			ID:           f.node.Generate(),
			Kind:         "QuotaUsed",
			ConcessionID: "CX-1",
			Holder:       "holder-a",
			Actor:        "holder-a",
			OccurredAt:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		})
	}
	require.NoError(t, f.db.Create(rows).Error)
}

func (f *relayFixture) pending(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&eventsdomain.Event{}).Where("relayed_at IS NULL").Count(&count).Error)
	return count
}

func TestRunOnceRelaysInBatches(t *testing.T) {
	cfg := config.DefaultRelayConfig()
	cfg.BatchSize = 2
	cfg.RatePerSecond = 1000
	f := setupRelay(t, cfg)
	f.seed(t, 3)

	n, err := f.dispatcher.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.EqualValues(t, 1, f.pending(t))

	n, err = f.dispatcher.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Zero(t, f.pending(t))

	require.Len(t, f.sink.sent, 3)
	assert.True(t, f.sink.sent[0].ID < f.sink.sent[1].ID)
}

func TestRunOnceKeepsEventsWhenSinkFails(t *testing.T) {
	f := setupRelay(t, config.DefaultRelayConfig())
	f.seed(t, 2)
	f.sink.err = errors.New("broker down")

	_, err := f.dispatcher.RunOnce(context.Background())
	assert.Error(t, err)
	assert.EqualValues(t, 2, f.pending(t))
}

func TestRunOnceHonoursPause(t *testing.T) {
	cfg := config.DefaultRelayConfig()
	cfg.Paused = true
	f := setupRelay(t, cfg)
	f.seed(t, 1)

	n, err := f.dispatcher.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.EqualValues(t, 1, f.pending(t))
}
