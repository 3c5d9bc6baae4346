package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

// Store is the ledger's persistence port. All writes go through RunInTx; fn's effects are
// committed together when it returns nil and discarded otherwise.
type Store interface {
	RunInTx(ctx context.Context, fn func(tx Tx) error) error

	GetQuota(ctx context.Context, key QuotaKey) (*QuotaAccount, error)
	ListQuotas(ctx context.Context, filter QuotaFilter, page pagination.Pagination) ([]*QuotaAccount, error)
	GetUsage(ctx context.Context, key UsageKey) (*UsageRecord, error)
	ListUsage(ctx context.Context, filter UsageFilter, page pagination.Pagination) ([]*UsageRecord, error)
	ListTransfers(ctx context.Context, filter TransferFilter, page pagination.Pagination) ([]*TransferRecord, error)
}

// Tx is a unit of work. Records returned by the *ForUpdate methods stay locked until the
// transaction ends.
type Tx interface {
	GetQuotaForUpdate(ctx context.Context, key QuotaKey) (*QuotaAccount, error)
	InsertQuota(ctx context.Context, q *QuotaAccount) error
	UpdateQuota(ctx context.Context, q *QuotaAccount) error

	GetUsageForUpdate(ctx context.Context, key UsageKey) (*UsageRecord, error)
	InsertUsage(ctx context.Context, u *UsageRecord) error
	UpdateUsageDetails(ctx context.Context, u *UsageRecord) error

	InsertTransfer(ctx context.Context, t *TransferRecord) error

	// AppendEvents stages events in the outbox; they are committed with the rest of the unit.
	AppendEvents(ctx context.Context, events ...Event) error
}

// List methods return up to page.Limit()+1 rows so callers can tell whether another page exists.

type QuotaFilter struct {
	Holder    string
	Regulator string
	Status    QuotaStatus
}

type UsageFilter struct {
	ConcessionID string
	Holder       string
}

// TransferFilter matches transfers leaving or entering ConcessionID.
type TransferFilter struct {
	ConcessionID string
}

// QuotaCursor encodes the position after q in a quota listing.
func QuotaCursor(q *QuotaAccount) pagination.Cursor {
	return pagination.Cursor{ID: q.ConcessionID, Sub: q.Holder}
}

func UsageCursor(u *UsageRecord) pagination.Cursor {
	return pagination.Cursor{ID: u.ID.String()}
}

func TransferCursor(t *TransferRecord) pagination.Cursor {
	return pagination.Cursor{ID: t.ID.String()}
}

// DecodeIDCursor returns the snowflake id carried by an id-ordered page token, or 0 for the
// first page.
func DecodeIDCursor(token string) (snowflake.ID, error) {
	if token == "" {
		return 0, nil
	}
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return 0, err
	}
	id, err := snowflake.ParseString(cursor.ID)
	if err != nil || id <= 0 {
		return 0, pagination.ErrInvalidPageToken
	}
	return id, nil
}

// DecodeQuotaCursor returns the key carried by a quota page token, or nil for the first page.
func DecodeQuotaCursor(token string) (*QuotaKey, error) {
	if token == "" {
		return nil, nil
	}
	cursor, err := pagination.DecodeCursor(token)
	if err != nil {
		return nil, err
	}
	return &QuotaKey{ConcessionID: cursor.ID, Holder: cursor.Sub}, nil
}

// KeyLocker serializes operations on the same quota keys across processes. Implementations
// acquire keys in the order given; callers pass them sorted.
type KeyLocker interface {
	Acquire(ctx context.Context, keys ...string) (release func(), err error)
}

// LockKey names the distributed lock guarding key.
func LockKey(key QuotaKey) string {
	return "quota:lock:" + key.ConcessionID + ":" + key.Holder
}

// EventPublisher receives events after the transaction that appended them has committed.
type EventPublisher interface {
	Publish(ctx context.Context, events ...Event) error
}
