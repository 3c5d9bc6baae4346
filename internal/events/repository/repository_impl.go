package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, events []*domain.Event) error {
	if len(events) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(events).Error
}

func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Event, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Event{}).
		Where("(concession_id = ? OR counterparty_concession = ?)", filter.ConcessionID, filter.ConcessionID)
	if filter.Kind != "" {
		stmt = stmt.Where("kind = ?", filter.Kind)
	}
	if filter.BeforeID != 0 {
		stmt = stmt.Where("id < ?", filter.BeforeID)
	}
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var events []*domain.Event
	if err := stmt.Order("id desc").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) LockPending(ctx context.Context, conn *gorm.DB, limit int) ([]*domain.Event, error) {
	if limit <= 0 {
		limit = 100
	}
	stmt := conn.WithContext(ctx).
		Where("relayed_at IS NULL").
		Order("id asc").
		Limit(limit)
	if db.SupportsRowLocks(conn) {
		stmt = stmt.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
	}

	var events []*domain.Event
	if err := stmt.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

func (r *repo) MarkRelayed(ctx context.Context, conn *gorm.DB, ids []snowflake.ID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Exec(
		`UPDATE quota_events SET relayed_at = ? WHERE id IN ? AND relayed_at IS NULL`,
		at,
		ids,
	).Error
}
