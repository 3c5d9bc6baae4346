package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
	"gorm.io/gorm"
)

// MemoryStore keeps the ledger in process. Transactions run one at a time and stage their
// writes; the staged set is committed only when the transaction function returns nil.
// Appended events are handed to the outbox at commit, before the staged writes are applied,
// and a failed outbox write discards the whole unit.
type MemoryStore struct {
	mu        sync.Mutex
	quotas    map[domain.QuotaKey]domain.QuotaAccount
	usage     map[domain.UsageKey]domain.UsageRecord
	transfers []domain.TransferRecord
	events    []domain.Event

	outboxDB *gorm.DB
	outbox   Outbox
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		quotas: make(map[domain.QuotaKey]domain.QuotaAccount),
		usage:  make(map[domain.UsageKey]domain.UsageRecord),
	}
}

// WithOutbox makes committed events persist through outbox on conn.
func (s *MemoryStore) WithOutbox(conn *gorm.DB, outbox Outbox) *MemoryStore {
	s.outboxDB = conn
	s.outbox = outbox
	return s
}

// Events returns the events committed so far, oldest first.
func (s *MemoryStore) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

func (s *MemoryStore) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:  s,
		quotas: make(map[domain.QuotaKey]domain.QuotaAccount),
		usage:  make(map[domain.UsageKey]domain.UsageRecord),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if s.outbox != nil && len(tx.events) > 0 {
		if err := s.outbox.AppendTx(ctx, s.outboxDB, tx.events...); err != nil {
			return err
		}
	}

	for key, q := range tx.quotas {
		s.quotas[key] = q
	}
	for key, u := range tx.usage {
		s.usage[key] = u
	}
	s.transfers = append(s.transfers, tx.transfers...)
	s.events = append(s.events, tx.events...)
	return nil
}

func (s *MemoryStore) GetQuota(ctx context.Context, key domain.QuotaKey) (*domain.QuotaAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.quotas[key]
	if !ok {
		return nil, domain.ErrQuotaNotFound
	}
	return &q, nil
}

func (s *MemoryStore) ListQuotas(ctx context.Context, filter domain.QuotaFilter, page pagination.Pagination) ([]*domain.QuotaAccount, error) {
	after, err := domain.DecodeQuotaCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.QuotaAccount, 0)
	for key, q := range s.quotas {
		if filter.Holder != "" && q.Holder != filter.Holder {
			continue
		}
		if filter.Regulator != "" && q.Regulator != filter.Regulator {
			continue
		}
		if filter.Status.Valid() && q.Status != filter.Status {
			continue
		}
		if after != nil && !keyAfter(key, *after) {
			continue
		}
		q := q
		out = append(out, &q)
	}
	sort.Slice(out, func(i, j int) bool {
		return keyAfter(out[j].Key(), out[i].Key())
	})
	return truncate(out, page.Limit()+1), nil
}

func (s *MemoryStore) GetUsage(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.usage[key]
	if !ok {
		return nil, domain.ErrUsageNotFound
	}
	return &u, nil
}

func (s *MemoryStore) ListUsage(ctx context.Context, filter domain.UsageFilter, page pagination.Pagination) ([]*domain.UsageRecord, error) {
	before, err := domain.DecodeIDCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.UsageRecord, 0)
	for _, u := range s.usage {
		if filter.ConcessionID != "" && u.ConcessionID != filter.ConcessionID {
			continue
		}
		if filter.Holder != "" && u.Holder != filter.Holder {
			continue
		}
		if before != 0 && u.ID >= before {
			continue
		}
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, page.Limit()+1), nil
}

func (s *MemoryStore) ListTransfers(ctx context.Context, filter domain.TransferFilter, page pagination.Pagination) ([]*domain.TransferRecord, error) {
	before, err := domain.DecodeIDCursor(page.PageToken)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*domain.TransferRecord, 0)
	for _, rec := range s.transfers {
		if filter.ConcessionID != "" && rec.FromConcession != filter.ConcessionID && rec.ToConcession != filter.ConcessionID {
			continue
		}
		if before != 0 && rec.ID >= before {
			continue
		}
		rec := rec
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return truncate(out, page.Limit()+1), nil
}

type memoryTx struct {
	store     *MemoryStore
	quotas    map[domain.QuotaKey]domain.QuotaAccount
	usage     map[domain.UsageKey]domain.UsageRecord
	transfers []domain.TransferRecord
	events    []domain.Event
}

func (t *memoryTx) lookupQuota(key domain.QuotaKey) (domain.QuotaAccount, bool) {
	if q, ok := t.quotas[key]; ok {
		return q, true
	}
	q, ok := t.store.quotas[key]
	return q, ok
}

func (t *memoryTx) lookupUsage(key domain.UsageKey) (domain.UsageRecord, bool) {
	if u, ok := t.usage[key]; ok {
		return u, true
	}
	u, ok := t.store.usage[key]
	return u, ok
}

func (t *memoryTx) GetQuotaForUpdate(ctx context.Context, key domain.QuotaKey) (*domain.QuotaAccount, error) {
	q, ok := t.lookupQuota(key)
	if !ok {
		return nil, domain.ErrQuotaNotFound
	}
	return &q, nil
}

func (t *memoryTx) InsertQuota(ctx context.Context, q *domain.QuotaAccount) error {
	if _, ok := t.lookupQuota(q.Key()); ok {
		return domain.ErrQuotaAlreadyExists
	}
	t.quotas[q.Key()] = *q
	return nil
}

func (t *memoryTx) UpdateQuota(ctx context.Context, q *domain.QuotaAccount) error {
	if _, ok := t.lookupQuota(q.Key()); !ok {
		return domain.ErrQuotaNotFound
	}
	t.quotas[q.Key()] = *q
	return nil
}

func (t *memoryTx) GetUsageForUpdate(ctx context.Context, key domain.UsageKey) (*domain.UsageRecord, error) {
	u, ok := t.lookupUsage(key)
	if !ok {
		return nil, domain.ErrUsageNotFound
	}
	return &u, nil
}

func (t *memoryTx) InsertUsage(ctx context.Context, u *domain.UsageRecord) error {
	if _, ok := t.lookupUsage(u.Key()); ok {
		return domain.ErrDuplicateShipmentID
	}
	t.usage[u.Key()] = *u
	return nil
}

func (t *memoryTx) UpdateUsageDetails(ctx context.Context, u *domain.UsageRecord) error {
	current, ok := t.lookupUsage(u.Key())
	if !ok {
		return domain.ErrUsageNotFound
	}
	current.SourceLocation = u.SourceLocation
	current.DestinationLocation = u.DestinationLocation
	current.TransportDetails = u.TransportDetails
	t.usage[u.Key()] = current
	return nil
}

func (t *memoryTx) InsertTransfer(ctx context.Context, rec *domain.TransferRecord) error {
	t.transfers = append(t.transfers, *rec)
	return nil
}

func (t *memoryTx) AppendEvents(ctx context.Context, events ...domain.Event) error {
	t.events = append(t.events, events...)
	return nil
}

// keyAfter orders quota keys by concession id, then holder.
func keyAfter(key, than domain.QuotaKey) bool {
	if key.ConcessionID != than.ConcessionID {
		return key.ConcessionID > than.ConcessionID
	}
	return key.Holder > than.Holder
}

func truncate[T any](items []T, n int) []T {
	if len(items) > n {
		return items[:n]
	}
	return items
}
