package repository

import (
	"context"
	"errors"

	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Outbox writes ledger events as rows of the caller's transaction.
type Outbox interface {
	AppendTx(ctx context.Context, tx *gorm.DB, events ...domain.Event) error
}

// GormStore keeps the ledger in a SQL database. Same-key writers are serialized with
// SELECT ... FOR UPDATE where the dialect has row locks and by sqlite's database write lock
// otherwise. Without an outbox, appended events are dropped.
type GormStore struct {
	db       *gorm.DB
	rowLocks bool
	outbox   Outbox
}

func NewGormStore(conn *gorm.DB, outbox Outbox) *GormStore {
	return &GormStore{db: conn, rowLocks: db.SupportsRowLocks(conn), outbox: outbox}
}

func (s *GormStore) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{db: tx, rowLocks: s.rowLocks, outbox: s.outbox})
	})
}

func (s *GormStore) GetQuota(ctx context.Context, key domain.QuotaKey) (*domain.QuotaAccount, error) {
	return findQuota(ctx, s.db, key, false)
}

func (s *GormStore) ListQuotas(ctx context.Context, filter domain.QuotaFilter, page pagination.Pagination) ([]*domain.QuotaAccount, error) {
	after, err := domain.DecodeQuotaCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.QuotaAccount{})
	if filter.Holder != "" {
		stmt = stmt.Where("holder = ?", filter.Holder)
	}
	if filter.Regulator != "" {
		stmt = stmt.Where("regulator = ?", filter.Regulator)
	}
	if filter.Status.Valid() {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if after != nil {
		stmt = stmt.Where("(concession_id > ?) OR (concession_id = ? AND holder > ?)",
			after.ConcessionID, after.ConcessionID, after.Holder)
	}

	var quotas []*domain.QuotaAccount
	err = stmt.
		Order("concession_id asc, holder asc").
		Limit(page.Limit() + 1).
		Find(&quotas).Error
	if err != nil {
		return nil, err
	}
	return quotas, nil
}

func (s *GormStore) GetUsage(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	return findUsage(ctx, s.db, key, false)
}

func (s *GormStore) ListUsage(ctx context.Context, filter domain.UsageFilter, page pagination.Pagination) ([]*domain.UsageRecord, error) {
	before, err := domain.DecodeIDCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.UsageRecord{})
	if filter.ConcessionID != "" {
		stmt = stmt.Where("concession_id = ?", filter.ConcessionID)
	}
	if filter.Holder != "" {
		stmt = stmt.Where("holder = ?", filter.Holder)
	}
	if before != 0 {
		stmt = stmt.Where("id < ?", before)
	}

	var records []*domain.UsageRecord
	err = stmt.
		Order("id desc").
		Limit(page.Limit() + 1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *GormStore) ListTransfers(ctx context.Context, filter domain.TransferFilter, page pagination.Pagination) ([]*domain.TransferRecord, error) {
	before, err := domain.DecodeIDCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	stmt := s.db.WithContext(ctx).Model(&domain.TransferRecord{})
	if filter.ConcessionID != "" {
		stmt = stmt.Where("from_concession = ? OR to_concession = ?", filter.ConcessionID, filter.ConcessionID)
	}
	if before != 0 {
		stmt = stmt.Where("id < ?", before)
	}

	var records []*domain.TransferRecord
	err = stmt.
		Order("id desc").
		Limit(page.Limit() + 1).
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

type gormTx struct {
	db       *gorm.DB
	rowLocks bool
	outbox   Outbox
}

func (t *gormTx) GetQuotaForUpdate(ctx context.Context, key domain.QuotaKey) (*domain.QuotaAccount, error) {
	return findQuota(ctx, t.db, key, t.rowLocks)
}

func (t *gormTx) InsertQuota(ctx context.Context, q *domain.QuotaAccount) error {
	err := t.db.WithContext(ctx).Create(q).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrQuotaAlreadyExists
	}
	return err
}

func (t *gormTx) UpdateQuota(ctx context.Context, q *domain.QuotaAccount) error {
	return t.db.WithContext(ctx).
		Model(&domain.QuotaAccount{}).
		Where("concession_id = ? AND holder = ?", q.ConcessionID, q.Holder).
		Updates(map[string]any{
			"allocated_quota":         q.AllocatedQuota,
			"used_quota":              q.UsedQuota,
			"available_quota":         q.AvailableQuota,
			"validity_period":         q.ValidityPeriod,
			"status":                  q.Status,
			"mining_region":           q.MiningRegion,
			"environmental_clearance": q.EnvironmentalClearance,
			"updated_at":              q.UpdatedAt,
		}).Error
}

func (t *gormTx) GetUsageForUpdate(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	return findUsage(ctx, t.db, key, t.rowLocks)
}

func (t *gormTx) InsertUsage(ctx context.Context, u *domain.UsageRecord) error {
	err := t.db.WithContext(ctx).Create(u).Error
	if db.IsDuplicateKeyErr(err) {
		return domain.ErrDuplicateShipmentID
	}
	return err
}

func (t *gormTx) UpdateUsageDetails(ctx context.Context, u *domain.UsageRecord) error {
	return t.db.WithContext(ctx).
		Model(&domain.UsageRecord{}).
		Where("shipment_id = ? AND holder = ?", u.ShipmentID, u.Holder).
		Updates(map[string]any{
			"source_location":      u.SourceLocation,
			"destination_location": u.DestinationLocation,
			"transport_details":    u.TransportDetails,
		}).Error
}

func (t *gormTx) InsertTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	return t.db.WithContext(ctx).Create(rec).Error
}

func (t *gormTx) AppendEvents(ctx context.Context, events ...domain.Event) error {
	if t.outbox == nil || len(events) == 0 {
		return nil
	}
	return t.outbox.AppendTx(ctx, t.db, events...)
}

func findQuota(ctx context.Context, conn *gorm.DB, key domain.QuotaKey, lock bool) (*domain.QuotaAccount, error) {
	stmt := conn.WithContext(ctx)
	if lock {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var q domain.QuotaAccount
	err := stmt.
		Where("concession_id = ? AND holder = ?", key.ConcessionID, key.Holder).
		Take(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrQuotaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

func findUsage(ctx context.Context, conn *gorm.DB, key domain.UsageKey, lock bool) (*domain.UsageRecord, error) {
	stmt := conn.WithContext(ctx)
	if lock {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var u domain.UsageRecord
	err := stmt.
		Where("shipment_id = ? AND holder = ?", key.ShipmentID, key.Holder).
		Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUsageNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}
