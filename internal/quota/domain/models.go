// Package domain holds the quota ledger records, their invariants and the ports the
// quota service depends on.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	MaxConcessionIDLen           = 32
	MaxShipmentIDLen             = 32
	MaxIdentityLen               = 64
	MaxReasonLen                 = 200
	MaxMiningRegionLen           = 64
	MaxEnvironmentalClearanceLen = 64
	MaxLocationLen               = 100
	MaxTransportDetailsLen       = 200
	MaxSizeClassificationLen     = 20
)

// QuotaKey addresses a QuotaAccount.
type QuotaKey struct {
	ConcessionID string `json:"concession_id"`
	Holder       string `json:"holder"`
}

func (k QuotaKey) String() string {
	return k.ConcessionID + "/" + k.Holder
}

// QuotaAccount is the allocation granted to one holder under one concession.
// AllocatedQuota == UsedQuota + AvailableQuota after every completed operation.
type QuotaAccount struct {
	ConcessionID           string      `gorm:"column:concession_id;primaryKey;size:32" json:"concession_id"`
	Holder                 string      `gorm:"column:holder;primaryKey;size:64" json:"holder"`
	Regulator              string      `gorm:"column:regulator;size:64;not null;index" json:"regulator"`
	AllocatedQuota         uint64      `gorm:"column:allocated_quota;not null" json:"allocated_quota"`
	UsedQuota              uint64      `gorm:"column:used_quota;not null" json:"used_quota"`
	AvailableQuota         uint64      `gorm:"column:available_quota;not null" json:"available_quota"`
	ValidityPeriod         time.Time   `gorm:"column:validity_period;not null" json:"validity_period"`
	Status                 QuotaStatus `gorm:"column:status;type:varchar(16);not null;index" json:"status"`
	QuotaType              QuotaType   `gorm:"column:quota_type;type:varchar(16);not null" json:"quota_type"`
	MiningRegion           string      `gorm:"column:mining_region;size:64;not null" json:"mining_region"`
	EnvironmentalClearance string      `gorm:"column:environmental_clearance;size:64;not null" json:"environmental_clearance"`
	CreatedAt              time.Time   `gorm:"column:created_at;not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt              time.Time   `gorm:"column:updated_at;not null;autoUpdateTime:false" json:"updated_at"`
}

func (QuotaAccount) TableName() string { return "quota_accounts" }

func (q *QuotaAccount) Key() QuotaKey {
	return QuotaKey{ConcessionID: q.ConcessionID, Holder: q.Holder}
}

// QualityParameters is the measured quality of a shipment. Percentages are fixed-point x100.
type QualityParameters struct {
	GrossCalorificValue uint32    `gorm:"column:gross_calorific_value;not null" json:"gross_calorific_value"`
	MoistureContent     uint16    `gorm:"column:moisture_content;not null" json:"moisture_content"`
	AshContent          uint16    `gorm:"column:ash_content;not null" json:"ash_content"`
	SulphurContent      uint16    `gorm:"column:sulphur_content;not null" json:"sulphur_content"`
	VolatileMatter      uint16    `gorm:"column:volatile_matter;not null" json:"volatile_matter"`
	FixedCarbon         uint16    `gorm:"column:fixed_carbon;not null" json:"fixed_carbon"`
	CoalGrade           CoalGrade `gorm:"column:coal_grade;type:varchar(16);not null" json:"coal_grade"`
	SizeClassification  string    `gorm:"column:size_classification;size:20;not null" json:"size_classification"`
}

// UsageKey addresses a UsageRecord.
type UsageKey struct {
	ShipmentID string `json:"shipment_id"`
	Holder     string `json:"holder"`
}

// UsageRecord is the append-only trace of one shipment drawn against a quota.
type UsageRecord struct {
	ID                  snowflake.ID      `gorm:"column:id;not null;uniqueIndex" json:"id"`
	ShipmentID          string            `gorm:"column:shipment_id;primaryKey;size:32" json:"shipment_id"`
	Holder              string            `gorm:"column:holder;primaryKey;size:64" json:"holder"`
	ConcessionID        string            `gorm:"column:concession_id;size:32;not null;index" json:"concession_id"`
	Amount              uint64            `gorm:"column:amount;not null" json:"amount"`
	Timestamp           time.Time         `gorm:"column:recorded_at;not null" json:"timestamp"`
	Quality             QualityParameters `gorm:"embedded;embeddedPrefix:quality_" json:"quality_params"`
	SourceLocation      string            `gorm:"column:source_location;size:100;not null" json:"source_location"`
	DestinationLocation string            `gorm:"column:destination_location;size:100;not null" json:"destination_location"`
	TransportDetails    string            `gorm:"column:transport_details;size:200;not null" json:"transport_details"`
}

func (UsageRecord) TableName() string { return "usage_records" }

func (u *UsageRecord) Key() UsageKey {
	return UsageKey{ShipmentID: u.ShipmentID, Holder: u.Holder}
}

// HasLogistics reports whether any of the post-hoc logistics fields was filled.
func (u *UsageRecord) HasLogistics() bool {
	return u.SourceLocation != "" || u.DestinationLocation != "" || u.TransportDetails != ""
}

// TransferRecord is the append-only trace of one settled transfer.
type TransferRecord struct {
	ID             snowflake.ID `gorm:"column:id;primaryKey" json:"id"`
	FromConcession string       `gorm:"column:from_concession;size:32;not null;index:ix_transfer_records_pair,priority:1" json:"from_concession"`
	ToConcession   string       `gorm:"column:to_concession;size:32;not null;index:ix_transfer_records_pair,priority:2" json:"to_concession"`
	FromHolder     string       `gorm:"column:from_holder;size:64;not null" json:"from_holder"`
	ToHolder       string       `gorm:"column:to_holder;size:64;not null" json:"to_holder"`
	Amount         uint64       `gorm:"column:amount;not null" json:"amount"`
	Timestamp      time.Time    `gorm:"column:transferred_at;not null;index:ix_transfer_records_pair,priority:3" json:"timestamp"`
	AuthorizedBy   string       `gorm:"column:authorized_by;size:64;not null" json:"authorized_by"`
	TransferReason string       `gorm:"column:transfer_reason;size:200;not null" json:"transfer_reason"`
	TransferType   TransferType `gorm:"column:transfer_type;type:varchar(16);not null" json:"transfer_type"`
}

func (TransferRecord) TableName() string { return "transfer_records" }

// Utilization is a read-only view over a quota's consumption.
type Utilization struct {
	Key                QuotaKey    `json:"key"`
	Status             QuotaStatus `json:"status"`
	AllocatedQuota     uint64      `json:"allocated_quota"`
	UsedQuota          uint64      `json:"used_quota"`
	AvailableQuota     uint64      `json:"available_quota"`
	UtilizationPercent uint64      `json:"utilization_percent"`
	Usable             bool        `json:"usable"`
}
