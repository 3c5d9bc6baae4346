package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, events []*Event) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Event, error)
	// LockPending returns unrelayed events oldest first, skipping rows another relay holds.
	LockPending(ctx context.Context, db *gorm.DB, limit int) ([]*Event, error)
	MarkRelayed(ctx context.Context, db *gorm.DB, ids []snowflake.ID, at time.Time) error
}
