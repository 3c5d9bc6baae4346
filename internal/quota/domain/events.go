package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type EventKind string

const (
	EventQuotaInitialized          EventKind = "QuotaInitialized"
	EventQuotaUsed                 EventKind = "QuotaUsed"
	EventQuotaTransferred          EventKind = "QuotaTransferred"
	EventQuotaStatusUpdated        EventKind = "QuotaStatusUpdated"
	EventQuotaUpdated              EventKind = "QuotaUpdated"
	EventQuotaDetailsUpdated       EventKind = "QuotaDetailsUpdated"
	EventShipmentLogisticsRecorded EventKind = "ShipmentLogisticsRecorded"
)

// ReactivationReason is the reason recorded when a regulator reactivates a suspended quota.
const ReactivationReason = "Quota reactivated by regulator"

// Event is an immutable summary of one observable state change. CounterpartyConcession is set
// when the change also concerns a second concession, as a transfer does for its receiver.
type Event struct {
	ID                     snowflake.ID   `json:"id"`
	Kind                   EventKind      `json:"kind"`
	ConcessionID           string         `json:"concession_id"`
	CounterpartyConcession string         `json:"counterparty_concession,omitempty"`
	Holder                 string         `json:"holder"`
	Actor                  string         `json:"actor"`
	OccurredAt             time.Time      `json:"occurred_at"`
	Payload                map[string]any `json:"payload"`
}

func NewQuotaInitializedEvent(q *QuotaAccount, actor string) Event {
	return Event{
		Kind:         EventQuotaInitialized,
		ConcessionID: q.ConcessionID,
		Holder:       q.Holder,
		Actor:        actor,
		OccurredAt:   q.CreatedAt,
		Payload: map[string]any{
			"allocated_quota":         q.AllocatedQuota,
			"validity_period":         q.ValidityPeriod,
			"quota_type":              q.QuotaType.String(),
			"mining_region":           q.MiningRegion,
			"environmental_clearance": q.EnvironmentalClearance,
		},
	}
}

func NewQuotaUsedEvent(q *QuotaAccount, u *UsageRecord, utilizationAlert bool) Event {
	return Event{
		Kind:         EventQuotaUsed,
		ConcessionID: q.ConcessionID,
		Holder:       q.Holder,
		Actor:        u.Holder,
		OccurredAt:   u.Timestamp,
		Payload: map[string]any{
			"shipment_id":       u.ShipmentID,
			"amount":            u.Amount,
			"remaining_quota":   q.AvailableQuota,
			"status":            q.Status.String(),
			"utilization_alert": utilizationAlert,
			"quality_params":    qualityPayload(u.Quality),
		},
	}
}

func NewQuotaTransferredEvent(t *TransferRecord) Event {
	counterparty := ""
	if t.ToConcession != t.FromConcession {
		counterparty = t.ToConcession
	}
	return Event{
		Kind:                   EventQuotaTransferred,
		ConcessionID:           t.FromConcession,
		CounterpartyConcession: counterparty,
		Holder:                 t.FromHolder,
		Actor:                  t.AuthorizedBy,
		OccurredAt:             t.Timestamp,
		Payload: map[string]any{
			"transfer_id":     t.ID.String(),
			"from_concession": t.FromConcession,
			"to_concession":   t.ToConcession,
			"to_holder":       t.ToHolder,
			"amount":          t.Amount,
			"transfer_type":   t.TransferType.String(),
			"authorized_by":   t.AuthorizedBy,
			"timestamp":       t.Timestamp,
		},
	}
}

func NewQuotaStatusUpdatedEvent(q *QuotaAccount, oldStatus QuotaStatus, actor, reason string) Event {
	return Event{
		Kind:         EventQuotaStatusUpdated,
		ConcessionID: q.ConcessionID,
		Holder:       q.Holder,
		Actor:        actor,
		OccurredAt:   q.UpdatedAt,
		Payload: map[string]any{
			"old_status": oldStatus.String(),
			"new_status": q.Status.String(),
			"updated_by": actor,
			"reason":     reason,
		},
	}
}

func NewQuotaUpdatedEvent(q *QuotaAccount, oldAllocated uint64, oldValidity time.Time, actor, reason string) Event {
	return Event{
		Kind:         EventQuotaUpdated,
		ConcessionID: q.ConcessionID,
		Holder:       q.Holder,
		Actor:        actor,
		OccurredAt:   q.UpdatedAt,
		Payload: map[string]any{
			"old_allocated_quota": oldAllocated,
			"new_allocated_quota": q.AllocatedQuota,
			"old_validity_period": oldValidity,
			"new_validity_period": q.ValidityPeriod,
			"updated_by":          actor,
			"reason":              reason,
		},
	}
}

func NewQuotaDetailsUpdatedEvent(q *QuotaAccount, oldRegion, oldClearance, actor string) Event {
	return Event{
		Kind:         EventQuotaDetailsUpdated,
		ConcessionID: q.ConcessionID,
		Holder:       q.Holder,
		Actor:        actor,
		OccurredAt:   q.UpdatedAt,
		Payload: map[string]any{
			"old_mining_region":           oldRegion,
			"new_mining_region":           q.MiningRegion,
			"old_environmental_clearance": oldClearance,
			"new_environmental_clearance": q.EnvironmentalClearance,
		},
	}
}

func NewShipmentLogisticsRecordedEvent(u *UsageRecord, now time.Time) Event {
	return Event{
		Kind:         EventShipmentLogisticsRecorded,
		ConcessionID: u.ConcessionID,
		Holder:       u.Holder,
		Actor:        u.Holder,
		OccurredAt:   now,
		Payload: map[string]any{
			"shipment_id":          u.ShipmentID,
			"source_location":      u.SourceLocation,
			"destination_location": u.DestinationLocation,
			"transport_details":    u.TransportDetails,
		},
	}
}

func qualityPayload(p QualityParameters) map[string]any {
	return map[string]any{
		"gross_calorific_value": p.GrossCalorificValue,
		"moisture_content":      p.MoistureContent,
		"ash_content":           p.AshContent,
		"sulphur_content":       p.SulphurContent,
		"volatile_matter":       p.VolatileMatter,
		"fixed_carbon":          p.FixedCarbon,
		"coal_grade":            p.CoalGrade.String(),
		"size_classification":   p.SizeClassification,
	}
}
