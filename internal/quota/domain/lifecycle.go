package domain

import (
	"math"
	"math/bits"
	"time"
)

// IsUsable reports whether q can be drawn on at now.
func IsUsable(q *QuotaAccount, now time.Time) bool {
	return q.Status == StatusActive && !now.After(q.ValidityPeriod)
}

func HasSufficient(q *QuotaAccount, amount uint64) bool {
	return q.AvailableQuota >= amount
}

// UtilizationPercent truncates; it is 0 for an empty allocation.
func UtilizationPercent(q *QuotaAccount) uint64 {
	return utilization(q.UsedQuota, q.AllocatedQuota)
}

func utilization(used, allocated uint64) uint64 {
	if allocated == 0 {
		return 0
	}
	hi, lo := bits.Mul64(used, 100)
	if hi >= allocated {
		return math.MaxUint64
	}
	quo, _ := bits.Div64(hi, lo, allocated)
	return quo
}

// CanTransition is the lifecycle for named transitions. Regulator overrides in UpdateQuota are
// only bound by Revoked being terminal.
func CanTransition(from, to QuotaStatus) bool {
	switch from {
	case StatusActive:
		switch to {
		case StatusSuspended, StatusExpired, StatusExhausted, StatusRevoked:
			return true
		default:
			return false
		}
	case StatusSuspended:
		return to == StatusActive
	case StatusExpired:
		return to == StatusActive
	case StatusExhausted:
		return false
	case StatusRevoked:
		return false
	default:
		return false
	}
}

// NewQuotaAccount builds a freshly initialized, Active account.
func NewQuotaAccount(key QuotaKey, regulator string, allocated uint64, validity time.Time, quotaType QuotaType, now time.Time) *QuotaAccount {
	return &QuotaAccount{
		ConcessionID:   key.ConcessionID,
		Holder:         key.Holder,
		Regulator:      regulator,
		AllocatedQuota: allocated,
		UsedQuota:      0,
		AvailableQuota: allocated,
		ValidityPeriod: validity,
		Status:         StatusActive,
		QuotaType:      quotaType,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Consume draws amount from q. Callers check usability and sufficiency first.
func (q *QuotaAccount) Consume(amount uint64, now time.Time) {
	q.UsedQuota += amount
	q.AvailableQuota -= amount
	q.markExhaustedIfEmpty()
	q.UpdatedAt = now
}

// MoveOut shrinks both the allocation and the headroom of a transfer source.
func (q *QuotaAccount) MoveOut(amount uint64, now time.Time) {
	q.AvailableQuota -= amount
	q.AllocatedQuota -= amount
	q.markExhaustedIfEmpty()
	q.UpdatedAt = now
}

// MoveIn grows both the allocation and the headroom of a transfer target.
func (q *QuotaAccount) MoveIn(amount uint64, now time.Time) {
	q.AvailableQuota += amount
	q.AllocatedQuota += amount
	q.UpdatedAt = now
}

// CanReceive reports whether adding amount keeps the allocation representable.
func (q *QuotaAccount) CanReceive(amount uint64) bool {
	return q.AllocatedQuota <= math.MaxUint64-amount
}

func (q *QuotaAccount) markExhaustedIfEmpty() {
	if q.AvailableQuota == 0 && CanTransition(q.Status, StatusExhausted) {
		q.Status = StatusExhausted
	}
}

func (q *QuotaAccount) Suspend(now time.Time) error {
	if q.Status != StatusActive {
		return ErrQuotaNotActive
	}
	q.Status = StatusSuspended
	q.UpdatedAt = now
	return nil
}

func (q *QuotaAccount) Reactivate(now time.Time) error {
	if q.Status != StatusSuspended {
		return ErrQuotaNotActive
	}
	if now.After(q.ValidityPeriod) {
		return ErrQuotaExpired
	}
	if q.AvailableQuota == 0 {
		return ErrQuotaExhausted
	}
	q.Status = StatusActive
	q.UpdatedAt = now
	return nil
}

// QuotaChange is a regulator update. Nil fields are left untouched.
type QuotaChange struct {
	NewAllocated *uint64
	NewValidity  *time.Time
	NewStatus    *QuotaStatus
}

// ApplyChange runs a regulator update in the fixed order allocation, validity, explicit
// status, expiry re-check. q is left untouched when an error is returned.
func (q *QuotaAccount) ApplyChange(change QuotaChange, now time.Time) error {
	if q.Status == StatusExpired && change.NewValidity == nil {
		return ErrCannotModifyExpiredQuota
	}
	if change.NewAllocated != nil && *change.NewAllocated == 0 {
		return ErrInvalidQuotaAmount
	}
	if change.NewValidity != nil {
		if err := ValidateFutureValidity(*change.NewValidity, now); err != nil {
			return err
		}
	}
	if change.NewStatus != nil {
		if !change.NewStatus.Valid() {
			return ErrInvalidQuotaStatus
		}
		if q.Status == StatusRevoked && *change.NewStatus != StatusRevoked {
			return ErrInvalidQuotaStatus
		}
	}

	terminal := q.Status == StatusRevoked

	if change.NewAllocated != nil {
		allocated := *change.NewAllocated
		q.AllocatedQuota = allocated
		if allocated >= q.UsedQuota {
			q.AvailableQuota = allocated - q.UsedQuota
		} else {
			// used is capped at the new grant so allocated == used + available still holds
			q.UsedQuota = allocated
			q.AvailableQuota = 0
			if !terminal {
				q.Status = StatusExhausted
			}
		}
	}

	if change.NewValidity != nil {
		q.ValidityPeriod = *change.NewValidity
		if q.Status == StatusExpired && q.AvailableQuota > 0 {
			q.Status = StatusActive
		}
	}

	if change.NewStatus != nil {
		q.Status = *change.NewStatus
	}

	// Revoked outranks Expired, whether it was the prior status or set by this change.
	if now.After(q.ValidityPeriod) && q.Status != StatusRevoked {
		q.Status = StatusExpired
	}

	q.UpdatedAt = now
	return nil
}
