//go:build integration

package migration

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/internal/quota/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPostgresMigrationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("quotaledger"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	conn, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)

	require.NoError(t, Migrate(conn))
	version, dirty, err := Version(sqlDB)
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	store := repository.NewGormStore(conn, nil)
	now := time.Now().UTC().Truncate(time.Microsecond)
	key := domain.QuotaKey{ConcessionID: "CX-1", Holder: "holder-a"}
	err = store.RunInTx(ctx, func(tx domain.Tx) error {
		q := domain.NewQuotaAccount(key, "regulator", math.MaxUint64, now.Add(time.Hour), domain.QuotaTypeAnnual, now)
		return tx.InsertQuota(ctx, q)
	})
	require.NoError(t, err)

	q, err := store.GetQuota(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, uint64(math.MaxUint64), q.AvailableQuota)

	require.NoError(t, Down(sqlDB, 0))
	assert.False(t, conn.Migrator().HasTable("quota_accounts"))
}
