package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type outboxRow struct {
	ID   int64 `gorm:"primaryKey"`
	Kind string
}

// tableOutbox writes one row per event through the transaction it is handed.
type tableOutbox struct{}

func (tableOutbox) AppendTx(ctx context.Context, tx *gorm.DB, events ...domain.Event) error {
	for _, ev := range events {
		if err := tx.WithContext(ctx).Create(&outboxRow{ID: int64(ev.ID), Kind: string(ev.Kind)}).Error; err != nil {
			return err
		}
	}
	return nil
}

func countOutbox(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&outboxRow{}).Count(&n).Error)
	return n
}

func initializeWithEvent(store domain.Store, concession string, eventID int64, fail error) error {
	ctx := context.Background()
	return store.RunInTx(ctx, func(tx domain.Tx) error {
		q := domain.NewQuotaAccount(
			domain.QuotaKey{ConcessionID: concession, Holder: "holder-a"},
			"regulator", 100, baseTime.Add(24*time.Hour), domain.QuotaTypeAnnual, baseTime,
		)
		if err := tx.InsertQuota(ctx, q); err != nil {
			return err
		}
		ev := domain.NewQuotaInitializedEvent(q, "regulator")
		ev.ID = snowflake.ID(eventID)
		if err := tx.AppendEvents(ctx, ev); err != nil {
			return err
		}
		return fail
	})
}

func TestOutboxRowsFollowTransaction(t *testing.T) {
	stores := map[string]func(conn *gorm.DB) domain.Store{
		"gorm":   func(conn *gorm.DB) domain.Store { return NewGormStore(conn, tableOutbox{}) },
		"memory": func(conn *gorm.DB) domain.Store { return NewMemoryStore().WithOutbox(conn, tableOutbox{}) },
	}
	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			conn := openSQLite(t)
			require.NoError(t, conn.AutoMigrate(&outboxRow{}))
			store := build(conn)

			require.NoError(t, initializeWithEvent(store, "CX-1", 1, nil))
			assert.EqualValues(t, 1, countOutbox(t, conn))

			err := initializeWithEvent(store, "CX-2", 2, errBoom)
			assert.ErrorIs(t, err, errBoom)
			assert.EqualValues(t, 1, countOutbox(t, conn))
			_, err = store.GetQuota(context.Background(), domain.QuotaKey{ConcessionID: "CX-2", Holder: "holder-a"})
			assert.ErrorIs(t, err, domain.ErrQuotaNotFound)
		})
	}
}

func TestOutboxFailureDiscardsLedgerWrites(t *testing.T) {
	stores := map[string]func(conn *gorm.DB) domain.Store{
		"gorm":   func(conn *gorm.DB) domain.Store { return NewGormStore(conn, tableOutbox{}) },
		"memory": func(conn *gorm.DB) domain.Store { return NewMemoryStore().WithOutbox(conn, tableOutbox{}) },
	}
	for name, build := range stores {
		t.Run(name, func(t *testing.T) {
			conn := openSQLite(t)
			require.NoError(t, conn.AutoMigrate(&outboxRow{}))
			store := build(conn)

			require.NoError(t, initializeWithEvent(store, "CX-1", 7, nil))
			// Reusing the event id makes the outbox insert fail.
			require.Error(t, initializeWithEvent(store, "CX-2", 7, nil))

			_, err := store.GetQuota(context.Background(), domain.QuotaKey{ConcessionID: "CX-2", Holder: "holder-a"})
			assert.ErrorIs(t, err, domain.ErrQuotaNotFound)
			assert.EqualValues(t, 1, countOutbox(t, conn))
		})
	}
}

func TestMemoryStoreKeepsCommittedEvents(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, initializeWithEvent(store, "CX-1", 1, nil))
	require.ErrorIs(t, initializeWithEvent(store, "CX-2", 2, errBoom), errBoom)

	events := store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, snowflake.ID(1), events[0].ID)
	assert.Equal(t, "CX-1", events[0].ConcessionID)
}
