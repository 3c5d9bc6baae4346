package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	baseTime = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	errBoom  = errors.New("boom")
)

func openSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, conn.AutoMigrate(&domain.QuotaAccount{}, &domain.UsageRecord{}, &domain.TransferRecord{}))
	return conn
}

func forEachStore(t *testing.T, fn func(t *testing.T, store domain.Store)) {
	t.Run("gorm", func(t *testing.T) { fn(t, NewGormStore(openSQLite(t), nil)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
}

func seedQuota(t *testing.T, store domain.Store, concession, holder string, allocated uint64) *domain.QuotaAccount {
	t.Helper()
	q := domain.NewQuotaAccount(
		domain.QuotaKey{ConcessionID: concession, Holder: holder},
		"regulator",
		allocated,
		baseTime.Add(90*24*time.Hour),
		domain.QuotaTypeAnnual,
		baseTime,
	)
	require.NoError(t, store.RunInTx(context.Background(), func(tx domain.Tx) error {
		return tx.InsertQuota(context.Background(), q)
	}))
	return q
}

func newUsage(id snowflake.ID, shipment, holder, concession string, amount uint64) *domain.UsageRecord {
	return &domain.UsageRecord{
		ID:           id,
		ShipmentID:   shipment,
		Holder:       holder,
		ConcessionID: concession,
		Amount:       amount,
		Timestamp:    baseTime,
		Quality: domain.QualityParameters{
			GrossCalorificValue: 5000,
			CoalGrade:           domain.GradeA,
		},
	}
}

func TestQuotaInsertAndGet(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		seeded := seedQuota(t, store, "CX-1", "holder-a", 1000)

		got, err := store.GetQuota(ctx, seeded.Key())
		require.NoError(t, err)
		assert.Equal(t, "regulator", got.Regulator)
		assert.Equal(t, uint64(1000), got.AvailableQuota)
		assert.Equal(t, domain.StatusActive, got.Status)
		assert.Equal(t, domain.QuotaTypeAnnual, got.QuotaType)
		assert.True(t, got.ValidityPeriod.Equal(seeded.ValidityPeriod))

		_, err = store.GetQuota(ctx, domain.QuotaKey{ConcessionID: "CX-1", Holder: "nobody"})
		assert.ErrorIs(t, err, domain.ErrQuotaNotFound)
	})
}

func TestInsertQuotaRejectsDuplicateKey(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		seeded := seedQuota(t, store, "CX-1", "holder-a", 1000)

		err := store.RunInTx(context.Background(), func(tx domain.Tx) error {
			return tx.InsertQuota(context.Background(), seeded)
		})
		assert.ErrorIs(t, err, domain.ErrQuotaAlreadyExists)
	})
}

func TestRunInTxRollsBackOnError(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)
		seeded := seedQuota(t, store, "CX-1", "holder-a", 1000)

		err = store.RunInTx(ctx, func(tx domain.Tx) error {
			q, err := tx.GetQuotaForUpdate(ctx, seeded.Key())
			if err != nil {
				return err
			}
			q.Consume(400, baseTime.Add(time.Minute))
			if err := tx.UpdateQuota(ctx, q); err != nil {
				return err
			}
			if err := tx.InsertUsage(ctx, newUsage(node.Generate(), "SHP-1", "holder-a", "CX-1", 400)); err != nil {
				return err
			}
			return errBoom
		})
		assert.ErrorIs(t, err, errBoom)

		got, err := store.GetQuota(ctx, seeded.Key())
		require.NoError(t, err)
		assert.Equal(t, uint64(1000), got.AvailableQuota)
		assert.Zero(t, got.UsedQuota)

		_, err = store.GetUsage(ctx, domain.UsageKey{ShipmentID: "SHP-1", Holder: "holder-a"})
		assert.ErrorIs(t, err, domain.ErrUsageNotFound)
	})
}

func TestUpdateQuotaPersistsAllFields(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		seeded := seedQuota(t, store, "CX-1", "holder-a", 1000)

		require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error {
			q, err := tx.GetQuotaForUpdate(ctx, seeded.Key())
			if err != nil {
				return err
			}
			q.Consume(1000, baseTime.Add(time.Hour))
			q.MiningRegion = "East Kalimantan"
			q.EnvironmentalClearance = "AMDAL-77"
			return tx.UpdateQuota(ctx, q)
		}))

		got, err := store.GetQuota(ctx, seeded.Key())
		require.NoError(t, err)
		assert.Equal(t, domain.StatusExhausted, got.Status)
		assert.Equal(t, uint64(1000), got.UsedQuota)
		assert.Zero(t, got.AvailableQuota)
		assert.Equal(t, "East Kalimantan", got.MiningRegion)
		assert.Equal(t, "AMDAL-77", got.EnvironmentalClearance)
		assert.True(t, got.UpdatedAt.Equal(baseTime.Add(time.Hour)))
	})
}

func TestInsertUsageRejectsDuplicateShipment(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)

		insert := func(shipment, holder string) error {
			return store.RunInTx(ctx, func(tx domain.Tx) error {
				return tx.InsertUsage(ctx, newUsage(node.Generate(), shipment, holder, "CX-1", 10))
			})
		}

		require.NoError(t, insert("SHP-1", "holder-a"))
		assert.ErrorIs(t, insert("SHP-1", "holder-a"), domain.ErrDuplicateShipmentID)
		// the same shipment id under another holder is a different record
		require.NoError(t, insert("SHP-1", "holder-b"))
	})
}

func TestUsageDetailsUpdate(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)
		usage := newUsage(node.Generate(), "SHP-1", "holder-a", "CX-1", 10)
		require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error { return tx.InsertUsage(ctx, usage) }))

		require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error {
			u, err := tx.GetUsageForUpdate(ctx, usage.Key())
			if err != nil {
				return err
			}
			u.SourceLocation = "Pit 4"
			u.DestinationLocation = "Port Balikpapan"
			u.TransportDetails = "Barge BG-12"
			return tx.UpdateUsageDetails(ctx, u)
		}))

		got, err := store.GetUsage(ctx, usage.Key())
		require.NoError(t, err)
		assert.True(t, got.HasLogistics())
		assert.Equal(t, "Port Balikpapan", got.DestinationLocation)
		assert.Equal(t, uint32(5000), got.Quality.GrossCalorificValue)
		assert.Equal(t, domain.GradeA, got.Quality.CoalGrade)
	})
}

func TestListQuotasPaginates(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		seedQuota(t, store, "CX-2", "holder-a", 10)
		seedQuota(t, store, "CX-1", "holder-b", 10)
		seedQuota(t, store, "CX-1", "holder-a", 10)

		first, err := store.ListQuotas(ctx, domain.QuotaFilter{}, pagination.Pagination{PageSize: 2})
		require.NoError(t, err)
		page, info := pagination.Page(first, 2, domain.QuotaCursor)
		require.Len(t, page, 2)
		assert.Equal(t, domain.QuotaKey{ConcessionID: "CX-1", Holder: "holder-a"}, page[0].Key())
		assert.Equal(t, domain.QuotaKey{ConcessionID: "CX-1", Holder: "holder-b"}, page[1].Key())
		require.True(t, info.HasMore)

		second, err := store.ListQuotas(ctx, domain.QuotaFilter{}, pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken})
		require.NoError(t, err)
		require.Len(t, second, 1)
		assert.Equal(t, "CX-2", second[0].ConcessionID)

		filtered, err := store.ListQuotas(ctx, domain.QuotaFilter{Holder: "holder-b"}, pagination.Pagination{})
		require.NoError(t, err)
		require.Len(t, filtered, 1)

		_, err = store.ListQuotas(ctx, domain.QuotaFilter{}, pagination.Pagination{PageToken: "%%"})
		assert.ErrorIs(t, err, pagination.ErrInvalidPageToken)
	})
}

func TestListUsageNewestFirst(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)

		var ids []snowflake.ID
		for _, shipment := range []string{"SHP-1", "SHP-2", "SHP-3"} {
			u := newUsage(node.Generate(), shipment, "holder-a", "CX-1", 10)
			ids = append(ids, u.ID)
			require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error { return tx.InsertUsage(ctx, u) }))
		}
		other := newUsage(node.Generate(), "SHP-9", "holder-a", "CX-9", 10)
		require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error { return tx.InsertUsage(ctx, other) }))

		items, err := store.ListUsage(ctx, domain.UsageFilter{ConcessionID: "CX-1"}, pagination.Pagination{PageSize: 2})
		require.NoError(t, err)
		page, info := pagination.Page(items, 2, domain.UsageCursor)
		require.Len(t, page, 2)
		assert.Equal(t, ids[2], page[0].ID)
		assert.Equal(t, ids[1], page[1].ID)

		rest, err := store.ListUsage(ctx, domain.UsageFilter{ConcessionID: "CX-1"}, pagination.Pagination{PageSize: 2, PageToken: info.NextPageToken})
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, ids[0], rest[0].ID)
	})
}

func TestListTransfersMatchesEitherSide(t *testing.T) {
	forEachStore(t, func(t *testing.T, store domain.Store) {
		ctx := context.Background()
		node, err := snowflake.NewNode(1)
		require.NoError(t, err)

		records := []*domain.TransferRecord{
			{ID: node.Generate(), FromConcession: "CX-1", ToConcession: "CX-2", FromHolder: "a", ToHolder: "b", Amount: 5, Timestamp: baseTime, AuthorizedBy: "a", TransferType: domain.TransferPlanned},
			{ID: node.Generate(), FromConcession: "CX-3", ToConcession: "CX-1", FromHolder: "c", ToHolder: "a", Amount: 7, Timestamp: baseTime, AuthorizedBy: "c", TransferType: domain.TransferCommercial},
			{ID: node.Generate(), FromConcession: "CX-3", ToConcession: "CX-2", FromHolder: "c", ToHolder: "b", Amount: 9, Timestamp: baseTime, AuthorizedBy: "c", TransferType: domain.TransferEmergency},
		}
		require.NoError(t, store.RunInTx(ctx, func(tx domain.Tx) error {
			for _, rec := range records {
				if err := tx.InsertTransfer(ctx, rec); err != nil {
					return err
				}
			}
			return nil
		}))

		items, err := store.ListTransfers(ctx, domain.TransferFilter{ConcessionID: "CX-1"}, pagination.Pagination{})
		require.NoError(t, err)
		require.Len(t, items, 2)
		assert.Equal(t, records[1].ID, items[0].ID)
		assert.Equal(t, domain.TransferCommercial, items[0].TransferType)
		assert.Equal(t, records[0].ID, items[1].ID)
	})
}
