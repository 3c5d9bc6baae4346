package service

import (
	"context"
	"strings"

	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
)

func (s *Service) GetQuota(ctx context.Context, key domain.QuotaKey) (domain.QuotaAccount, error) {
	if err := domain.ValidateQuotaKey(key); err != nil {
		return domain.QuotaAccount{}, err
	}
	q, err := s.store.GetQuota(ctx, key)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return *q, nil
}

// GetUtilization never mutates; a quota past its validity reports Usable=false while its
// stored status is left as is.
func (s *Service) GetUtilization(ctx context.Context, key domain.QuotaKey) (domain.Utilization, error) {
	q, err := s.GetQuota(ctx, key)
	if err != nil {
		return domain.Utilization{}, err
	}
	return domain.Utilization{
		Key:                q.Key(),
		Status:             q.Status,
		AllocatedQuota:     q.AllocatedQuota,
		UsedQuota:          q.UsedQuota,
		AvailableQuota:     q.AvailableQuota,
		UtilizationPercent: domain.UtilizationPercent(&q),
		Usable:             domain.IsUsable(&q, s.clock.Now()),
	}, nil
}

func (s *Service) ListQuotas(ctx context.Context, req domain.ListQuotasRequest) (domain.ListQuotasResponse, error) {
	filter := domain.QuotaFilter{
		Holder:    strings.TrimSpace(req.Holder),
		Regulator: strings.TrimSpace(req.Regulator),
	}
	if status := strings.TrimSpace(req.Status); status != "" {
		parsed, err := domain.ParseQuotaStatus(status)
		if err != nil {
			return domain.ListQuotasResponse{}, err
		}
		filter.Status = parsed
	}

	rows, err := s.store.ListQuotas(ctx, filter, req.Pagination)
	if err != nil {
		return domain.ListQuotasResponse{}, err
	}
	rows, info := pagination.Page(rows, req.Limit(), domain.QuotaCursor)

	quotas := make([]domain.QuotaAccount, 0, len(rows))
	for _, q := range rows {
		quotas = append(quotas, *q)
	}
	return domain.ListQuotasResponse{PageInfo: info, Quotas: quotas}, nil
}

func (s *Service) GetUsage(ctx context.Context, key domain.UsageKey) (domain.UsageRecord, error) {
	if err := domain.ValidateShipmentID(key.ShipmentID); err != nil {
		return domain.UsageRecord{}, err
	}
	if err := domain.ValidateIdentity(key.Holder); err != nil {
		return domain.UsageRecord{}, err
	}
	u, err := s.store.GetUsage(ctx, key)
	if err != nil {
		return domain.UsageRecord{}, err
	}
	return *u, nil
}

func (s *Service) ListUsage(ctx context.Context, req domain.ListUsageRequest) (domain.ListUsageResponse, error) {
	filter := domain.UsageFilter{
		ConcessionID: strings.TrimSpace(req.ConcessionID),
		Holder:       strings.TrimSpace(req.Holder),
	}
	rows, err := s.store.ListUsage(ctx, filter, req.Pagination)
	if err != nil {
		return domain.ListUsageResponse{}, err
	}
	rows, info := pagination.Page(rows, req.Limit(), domain.UsageCursor)

	usage := make([]domain.UsageRecord, 0, len(rows))
	for _, u := range rows {
		usage = append(usage, *u)
	}
	return domain.ListUsageResponse{PageInfo: info, Usage: usage}, nil
}

func (s *Service) ListTransfers(ctx context.Context, req domain.ListTransfersRequest) (domain.ListTransfersResponse, error) {
	concessionID := strings.TrimSpace(req.ConcessionID)
	if err := domain.ValidateConcessionID(concessionID); err != nil {
		return domain.ListTransfersResponse{}, err
	}
	rows, err := s.store.ListTransfers(ctx, domain.TransferFilter{ConcessionID: concessionID}, req.Pagination)
	if err != nil {
		return domain.ListTransfersResponse{}, err
	}
	rows, info := pagination.Page(rows, req.Limit(), domain.TransferCursor)

	transfers := make([]domain.TransferRecord, 0, len(rows))
	for _, t := range rows {
		transfers = append(transfers, *t)
	}
	return domain.ListTransfersResponse{PageInfo: info, Transfers: transfers}, nil
}
