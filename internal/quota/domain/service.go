package domain

import (
	"context"
	"time"

	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

type InitializeQuotaRequest struct {
	Caller                 string
	ConcessionID           string
	Holder                 string
	AllocatedQuota         uint64
	ValidityPeriod         time.Time
	QuotaType              QuotaType
	MiningRegion           string
	EnvironmentalClearance string
}

// UseQuotaRequest draws on the quota keyed by ConcessionID and Holder. Holder defaults to the
// caller; only the holder itself may draw on a quota.
type UseQuotaRequest struct {
	Caller       string
	ConcessionID string
	Holder       string
	ShipmentID   string
	Amount       uint64
	Quality      QualityParameters
}

type UseQuotaResponse struct {
	Quota            QuotaAccount `json:"quota"`
	Usage            UsageRecord  `json:"usage"`
	UtilizationAlert bool         `json:"utilization_alert"`
}

type TransferQuotaRequest struct {
	Caller       string
	From         QuotaKey
	To           QuotaKey
	Amount       uint64
	Reason       string
	TransferType TransferType
}

type TransferQuotaResponse struct {
	From     QuotaAccount   `json:"from"`
	To       QuotaAccount   `json:"to"`
	Transfer TransferRecord `json:"transfer"`
}

type SuspendQuotaRequest struct {
	Caller string
	Key    QuotaKey
	Reason string
}

type ReactivateQuotaRequest struct {
	Caller string
	Key    QuotaKey
}

// UpdateQuotaRequest leaves a field untouched when it is nil.
type UpdateQuotaRequest struct {
	Caller       string
	Key          QuotaKey
	NewAllocated *uint64
	NewValidity  *time.Time
	NewStatus    *QuotaStatus
	Reason       string
}

type UpdateConcessionDetailsRequest struct {
	Caller                 string
	Key                    QuotaKey
	MiningRegion           *string
	EnvironmentalClearance *string
}

type RecordShipmentLogisticsRequest struct {
	Caller              string
	ShipmentID          string
	SourceLocation      string
	DestinationLocation string
	TransportDetails    string
}

type ListQuotasRequest struct {
	pagination.Pagination
	Holder    string
	Regulator string
	Status    string
}

type ListQuotasResponse struct {
	pagination.PageInfo
	Quotas []QuotaAccount `json:"quotas"`
}

type ListUsageRequest struct {
	pagination.Pagination
	ConcessionID string
	Holder       string
}

type ListUsageResponse struct {
	pagination.PageInfo
	Usage []UsageRecord `json:"usage"`
}

type ListTransfersRequest struct {
	pagination.Pagination
	ConcessionID string
}

type ListTransfersResponse struct {
	pagination.PageInfo
	Transfers []TransferRecord `json:"transfers"`
}

type Service interface {
	InitializeQuota(ctx context.Context, req InitializeQuotaRequest) (QuotaAccount, error)
	UseQuota(ctx context.Context, req UseQuotaRequest) (UseQuotaResponse, error)
	TransferQuota(ctx context.Context, req TransferQuotaRequest) (TransferQuotaResponse, error)
	SuspendQuota(ctx context.Context, req SuspendQuotaRequest) (QuotaAccount, error)
	ReactivateQuota(ctx context.Context, req ReactivateQuotaRequest) (QuotaAccount, error)
	UpdateQuota(ctx context.Context, req UpdateQuotaRequest) (QuotaAccount, error)
	UpdateConcessionDetails(ctx context.Context, req UpdateConcessionDetailsRequest) (QuotaAccount, error)
	RecordShipmentLogistics(ctx context.Context, req RecordShipmentLogisticsRequest) (UsageRecord, error)

	GetQuota(ctx context.Context, key QuotaKey) (QuotaAccount, error)
	ListQuotas(ctx context.Context, req ListQuotasRequest) (ListQuotasResponse, error)
	GetUtilization(ctx context.Context, key QuotaKey) (Utilization, error)
	GetUsage(ctx context.Context, key UsageKey) (UsageRecord, error)
	ListUsage(ctx context.Context, req ListUsageRequest) (ListUsageResponse, error)
	ListTransfers(ctx context.Context, req ListTransfersRequest) (ListTransfersResponse, error)
}
