package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/quotaledger/internal/audit/domain"
	"github.com/smallbiznis/quotaledger/internal/clock"
	"github.com/smallbiznis/quotaledger/internal/config"
	obslogger "github.com/smallbiznis/quotaledger/internal/observability/logger"
	"github.com/smallbiznis/quotaledger/internal/observability/metrics"
	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	opInitialize     = "quota.initialize"
	opUse            = "quota.use"
	opTransfer       = "quota.transfer"
	opSuspend        = "quota.suspend"
	opReactivate     = "quota.reactivate"
	opUpdate         = "quota.update"
	opUpdateDetails  = "quota.update_details"
	opShipmentDetail = "shipment.record_logistics"
)

type Params struct {
	fx.In

	Store     domain.Store
	Clock     clock.Clock
	GenID     *snowflake.Node
	Log       *zap.Logger
	Config    config.Config
	Publisher domain.EventPublisher `optional:"true"`
	Audit     auditdomain.Service   `optional:"true"`
	Locker    domain.KeyLocker      `optional:"true"`
	Metrics   *metrics.Metrics      `optional:"true"`
}

type Service struct {
	store     domain.Store
	clock     clock.Clock
	genID     *snowflake.Node
	log       *zap.Logger
	cfg       config.QuotaConfig
	publisher domain.EventPublisher
	audit     auditdomain.Service
	locker    domain.KeyLocker
	metrics   *metrics.Metrics
}

func New(p Params) domain.Service {
	return &Service{
		store:     p.Store,
		clock:     p.Clock,
		genID:     p.GenID,
		log:       p.Log.Named("quota.service"),
		cfg:       p.Config.Quota,
		publisher: p.Publisher,
		audit:     p.Audit,
		locker:    p.Locker,
		metrics:   p.Metrics,
	}
}

// outcome is what a mutating call hands to the post-commit stage.
type outcome struct {
	op       string
	role     auditdomain.ActorRole
	actor    string
	target   string
	metadata map[string]any
	events   []domain.Event
}

func (s *Service) InitializeQuota(ctx context.Context, req domain.InitializeQuotaRequest) (domain.QuotaAccount, error) {
	key := domain.QuotaKey{ConcessionID: req.ConcessionID, Holder: req.Holder}
	out := outcome{
		op:     opInitialize,
		role:   auditdomain.ActorRoleRegulator,
		actor:  req.Caller,
		target: key.String(),
		metadata: map[string]any{
			"allocated_quota":         req.AllocatedQuota,
			"quota_type":              req.QuotaType.String(),
			"environmental_clearance": req.EnvironmentalClearance,
		},
	}

	now := s.clock.Now()
	var created *domain.QuotaAccount
	err := validateInitialize(req, now)
	if err == nil {
		err = s.withLocks(ctx, []domain.QuotaKey{key}, func() error {
			return s.store.RunInTx(ctx, func(tx domain.Tx) error {
				q := domain.NewQuotaAccount(key, req.Caller, req.AllocatedQuota, req.ValidityPeriod, req.QuotaType, now)
				q.MiningRegion = req.MiningRegion
				q.EnvironmentalClearance = req.EnvironmentalClearance
				if err := tx.InsertQuota(ctx, q); err != nil {
					return err
				}
				created = q
				return s.appendEvents(ctx, tx, &out, domain.NewQuotaInitializedEvent(q, req.Caller))
			})
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return *created, nil
}

func validateInitialize(req domain.InitializeQuotaRequest, now time.Time) error {
	if err := domain.ValidateIdentity(req.Caller); err != nil {
		return domain.ErrUnauthorizedRegulator
	}
	if err := domain.ValidateQuotaKey(domain.QuotaKey{ConcessionID: req.ConcessionID, Holder: req.Holder}); err != nil {
		return err
	}
	if !req.QuotaType.Valid() {
		return domain.ErrInvalidQuotaType
	}
	if req.AllocatedQuota == 0 {
		return domain.ErrInvalidQuotaAmount
	}
	if err := domain.ValidateFutureValidity(req.ValidityPeriod, now); err != nil {
		return err
	}
	if err := domain.ValidateMiningRegion(req.MiningRegion); err != nil {
		return err
	}
	return domain.ValidateEnvironmentalClearance(req.EnvironmentalClearance)
}

func (s *Service) UseQuota(ctx context.Context, req domain.UseQuotaRequest) (domain.UseQuotaResponse, error) {
	holder := req.Holder
	if holder == "" {
		holder = req.Caller
	}
	key := domain.QuotaKey{ConcessionID: req.ConcessionID, Holder: holder}
	out := outcome{
		op:     opUse,
		role:   auditdomain.ActorRoleHolder,
		actor:  req.Caller,
		target: key.String(),
		metadata: map[string]any{
			"shipment_id": req.ShipmentID,
			"amount":      req.Amount,
		},
	}

	var resp domain.UseQuotaResponse
	err := validateUse(req)
	if err == nil {
		err = s.withLocks(ctx, []domain.QuotaKey{key}, func() error {
			return s.store.RunInTx(ctx, func(tx domain.Tx) error {
				now := s.clock.Now()
				q, err := tx.GetQuotaForUpdate(ctx, key)
				if err != nil {
					return err
				}
				if err := domain.RequireHolder(q, req.Caller); err != nil {
					return err
				}
				if _, err := tx.GetUsageForUpdate(ctx, domain.UsageKey{ShipmentID: req.ShipmentID, Holder: q.Holder}); err == nil {
					return domain.ErrDuplicateShipmentID
				} else if !errors.Is(err, domain.ErrUsageNotFound) {
					return err
				}
				if !domain.HasSufficient(q, req.Amount) {
					return domain.ErrInsufficientQuota
				}
				if q.Status != domain.StatusActive {
					return domain.ErrQuotaNotActive
				}
				if !domain.IsUsable(q, now) {
					return domain.ErrQuotaExpired
				}
				if s.exceedsLimit(q, req.Amount) {
					return domain.ErrUtilizationThresholdExceeded
				}

				q.Consume(req.Amount, now)
				usage := &domain.UsageRecord{
					ID:           s.genID.Generate(),
					ShipmentID:   req.ShipmentID,
					Holder:       q.Holder,
					ConcessionID: q.ConcessionID,
					Amount:       req.Amount,
					Timestamp:    now,
					Quality:      req.Quality,
				}
				if err := tx.UpdateQuota(ctx, q); err != nil {
					return err
				}
				if err := tx.InsertUsage(ctx, usage); err != nil {
					return err
				}

				resp = domain.UseQuotaResponse{
					Quota:            *q,
					Usage:            *usage,
					UtilizationAlert: s.crossesAlert(q),
				}
				return s.appendEvents(ctx, tx, &out, domain.NewQuotaUsedEvent(q, usage, resp.UtilizationAlert))
			})
		})
	}
	if err == nil {
		s.metrics.RecordConsumed(ctx, resp.Quota.QuotaType.String(), req.Amount)
		if resp.UtilizationAlert {
			obslogger.WithQuotaKey(s.log, key.ConcessionID, key.Holder).Info("quota utilization alert",
				zap.Uint64("utilization_percent", domain.UtilizationPercent(&resp.Quota)),
			)
		}
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.UseQuotaResponse{}, err
	}
	return resp, nil
}

func validateUse(req domain.UseQuotaRequest) error {
	if err := domain.ValidateIdentity(req.Caller); err != nil {
		return domain.ErrUnauthorizedHolder
	}
	if err := domain.ValidateConcessionID(req.ConcessionID); err != nil {
		return err
	}
	if err := domain.ValidateShipmentID(req.ShipmentID); err != nil {
		return err
	}
	if req.Amount == 0 {
		return domain.ErrInvalidUsageAmount
	}
	return domain.ValidateQualityParameters(req.Quality)
}

// exceedsLimit reports whether drawing amount would push utilization past the configured cap.
func (s *Service) exceedsLimit(q *domain.QuotaAccount, amount uint64) bool {
	if s.cfg.UtilizationLimitPercent == 0 {
		return false
	}
	after := *q
	after.UsedQuota += amount
	return domain.UtilizationPercent(&after) > s.cfg.UtilizationLimitPercent
}

func (s *Service) crossesAlert(q *domain.QuotaAccount) bool {
	return s.cfg.UtilizationAlertPercent > 0 && domain.UtilizationPercent(q) >= s.cfg.UtilizationAlertPercent
}

func (s *Service) TransferQuota(ctx context.Context, req domain.TransferQuotaRequest) (domain.TransferQuotaResponse, error) {
	transferType := req.TransferType
	if transferType == 0 {
		transferType = domain.TransferPlanned
	}
	out := outcome{
		op:     opTransfer,
		role:   auditdomain.ActorRoleHolder,
		actor:  req.Caller,
		target: req.From.String(),
		metadata: map[string]any{
			"to":            req.To.String(),
			"amount":        req.Amount,
			"transfer_type": transferType.String(),
			"reason":        req.Reason,
		},
	}

	var resp domain.TransferQuotaResponse
	err := validateTransfer(req, transferType)
	if err == nil {
		err = s.withLocks(ctx, []domain.QuotaKey{req.From, req.To}, func() error {
			return s.store.RunInTx(ctx, func(tx domain.Tx) error {
				now := s.clock.Now()
				from, to, err := loadPair(ctx, tx, req.From, req.To)
				if err != nil {
					return err
				}
				if err := domain.RequireHolder(from, req.Caller); err != nil {
					return err
				}
				for _, q := range []*domain.QuotaAccount{from, to} {
					if q.Status != domain.StatusActive {
						return domain.ErrQuotaNotActive
					}
					if !domain.IsUsable(q, now) {
						return domain.ErrQuotaExpired
					}
				}
				if !domain.HasSufficient(from, req.Amount) {
					return domain.ErrTransferAmountExceedsAvailable
				}
				if !to.CanReceive(req.Amount) {
					return domain.ErrInvalidTransferAmount
				}

				from.MoveOut(req.Amount, now)
				to.MoveIn(req.Amount, now)
				record := &domain.TransferRecord{
					ID:             s.genID.Generate(),
					FromConcession: from.ConcessionID,
					ToConcession:   to.ConcessionID,
					FromHolder:     from.Holder,
					ToHolder:       to.Holder,
					Amount:         req.Amount,
					Timestamp:      now,
					AuthorizedBy:   req.Caller,
					TransferReason: req.Reason,
					TransferType:   transferType,
				}

				if err := tx.UpdateQuota(ctx, from); err != nil {
					return err
				}
				if err := tx.UpdateQuota(ctx, to); err != nil {
					return err
				}
				if err := tx.InsertTransfer(ctx, record); err != nil {
					return err
				}

				resp = domain.TransferQuotaResponse{From: *from, To: *to, Transfer: *record}
				return s.appendEvents(ctx, tx, &out, domain.NewQuotaTransferredEvent(record))
			})
		})
	}
	if err == nil {
		s.metrics.RecordTransferred(ctx, transferType.String(), req.Amount)
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.TransferQuotaResponse{}, err
	}
	return resp, nil
}

func validateTransfer(req domain.TransferQuotaRequest, transferType domain.TransferType) error {
	if err := domain.ValidateIdentity(req.Caller); err != nil {
		return domain.ErrUnauthorizedHolder
	}
	if err := domain.ValidateQuotaKey(req.From); err != nil {
		return err
	}
	if err := domain.ValidateQuotaKey(req.To); err != nil {
		return err
	}
	if req.Amount == 0 {
		return domain.ErrInvalidTransferAmount
	}
	if err := domain.ValidateReason(req.Reason, false); err != nil {
		return err
	}
	if !transferType.Valid() {
		return domain.ErrInvalidTransferType
	}
	if req.From.ConcessionID == req.To.ConcessionID {
		return domain.ErrSelfTransferNotAllowed
	}
	return nil
}

// loadPair locks both records in key order so two opposite transfers cannot deadlock.
func loadPair(ctx context.Context, tx domain.Tx, fromKey, toKey domain.QuotaKey) (*domain.QuotaAccount, *domain.QuotaAccount, error) {
	first, second := fromKey, toKey
	swapped := lockOrder(toKey) < lockOrder(fromKey)
	if swapped {
		first, second = toKey, fromKey
	}

	a, err := tx.GetQuotaForUpdate(ctx, first)
	if err != nil {
		return nil, nil, err
	}
	b, err := tx.GetQuotaForUpdate(ctx, second)
	if err != nil {
		return nil, nil, err
	}
	if swapped {
		return b, a, nil
	}
	return a, b, nil
}

func lockOrder(key domain.QuotaKey) string {
	return domain.LockKey(key)
}

func (s *Service) SuspendQuota(ctx context.Context, req domain.SuspendQuotaRequest) (domain.QuotaAccount, error) {
	out := outcome{
		op:       opSuspend,
		role:     auditdomain.ActorRoleRegulator,
		actor:    req.Caller,
		target:   req.Key.String(),
		metadata: map[string]any{"reason": req.Reason},
	}

	var updated domain.QuotaAccount
	err := domain.ValidateQuotaKey(req.Key)
	if err == nil {
		err = domain.ValidateReason(req.Reason, true)
	}
	if err == nil {
		err = s.mutateAsRegulator(ctx, &out, req.Key, req.Caller, func(q *domain.QuotaAccount, now time.Time) ([]domain.Event, error) {
			old := q.Status
			if err := q.Suspend(now); err != nil {
				return nil, err
			}
			updated = *q
			return []domain.Event{domain.NewQuotaStatusUpdatedEvent(q, old, req.Caller, req.Reason)}, nil
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return updated, nil
}

func (s *Service) ReactivateQuota(ctx context.Context, req domain.ReactivateQuotaRequest) (domain.QuotaAccount, error) {
	out := outcome{
		op:     opReactivate,
		role:   auditdomain.ActorRoleRegulator,
		actor:  req.Caller,
		target: req.Key.String(),
	}

	var updated domain.QuotaAccount
	err := domain.ValidateQuotaKey(req.Key)
	if err == nil {
		err = s.mutateAsRegulator(ctx, &out, req.Key, req.Caller, func(q *domain.QuotaAccount, now time.Time) ([]domain.Event, error) {
			old := q.Status
			if err := q.Reactivate(now); err != nil {
				return nil, err
			}
			updated = *q
			return []domain.Event{domain.NewQuotaStatusUpdatedEvent(q, old, req.Caller, domain.ReactivationReason)}, nil
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return updated, nil
}

func (s *Service) UpdateQuota(ctx context.Context, req domain.UpdateQuotaRequest) (domain.QuotaAccount, error) {
	out := outcome{
		op:       opUpdate,
		role:     auditdomain.ActorRoleRegulator,
		actor:    req.Caller,
		target:   req.Key.String(),
		metadata: updateMetadata(req),
	}

	var updated domain.QuotaAccount
	err := domain.ValidateQuotaKey(req.Key)
	if err == nil {
		err = domain.ValidateReason(req.Reason, true)
	}
	if err == nil {
		err = s.mutateAsRegulator(ctx, &out, req.Key, req.Caller, func(q *domain.QuotaAccount, now time.Time) ([]domain.Event, error) {
			oldStatus, oldAllocated, oldValidity := q.Status, q.AllocatedQuota, q.ValidityPeriod
			change := domain.QuotaChange{
				NewAllocated: req.NewAllocated,
				NewValidity:  req.NewValidity,
				NewStatus:    req.NewStatus,
			}
			if err := q.ApplyChange(change, now); err != nil {
				return nil, err
			}
			var events []domain.Event
			if q.Status != oldStatus {
				events = append(events, domain.NewQuotaStatusUpdatedEvent(q, oldStatus, req.Caller, req.Reason))
			}
			events = append(events, domain.NewQuotaUpdatedEvent(q, oldAllocated, oldValidity, req.Caller, req.Reason))
			updated = *q
			return events, nil
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return updated, nil
}

func updateMetadata(req domain.UpdateQuotaRequest) map[string]any {
	meta := map[string]any{"reason": req.Reason}
	if req.NewAllocated != nil {
		meta["new_allocated_quota"] = *req.NewAllocated
	}
	if req.NewValidity != nil {
		meta["new_validity_period"] = req.NewValidity.UTC().Format(time.RFC3339)
	}
	if req.NewStatus != nil {
		meta["new_status"] = req.NewStatus.String()
	}
	return meta
}

func (s *Service) UpdateConcessionDetails(ctx context.Context, req domain.UpdateConcessionDetailsRequest) (domain.QuotaAccount, error) {
	out := outcome{
		op:       opUpdateDetails,
		role:     auditdomain.ActorRoleRegulator,
		actor:    req.Caller,
		target:   req.Key.String(),
		metadata: map[string]any{},
	}

	var updated domain.QuotaAccount
	err := domain.ValidateQuotaKey(req.Key)
	if err == nil && req.MiningRegion != nil {
		out.metadata["mining_region"] = *req.MiningRegion
		err = domain.ValidateMiningRegion(*req.MiningRegion)
	}
	if err == nil && req.EnvironmentalClearance != nil {
		out.metadata["environmental_clearance"] = *req.EnvironmentalClearance
		err = domain.ValidateEnvironmentalClearance(*req.EnvironmentalClearance)
	}
	if err == nil {
		err = s.mutateAsRegulator(ctx, &out, req.Key, req.Caller, func(q *domain.QuotaAccount, now time.Time) ([]domain.Event, error) {
			oldRegion, oldClearance := q.MiningRegion, q.EnvironmentalClearance
			if req.MiningRegion != nil {
				q.MiningRegion = *req.MiningRegion
			}
			if req.EnvironmentalClearance != nil {
				q.EnvironmentalClearance = *req.EnvironmentalClearance
			}
			q.UpdatedAt = now
			updated = *q
			return []domain.Event{domain.NewQuotaDetailsUpdatedEvent(q, oldRegion, oldClearance, req.Caller)}, nil
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.QuotaAccount{}, err
	}
	return updated, nil
}

// mutateAsRegulator loads key under lock, checks the caller is its regulator and persists fn's
// changes together with the events fn returns. fn must leave q untouched when it returns an
// error.
func (s *Service) mutateAsRegulator(ctx context.Context, out *outcome, key domain.QuotaKey, caller string, fn func(q *domain.QuotaAccount, now time.Time) ([]domain.Event, error)) error {
	return s.withLocks(ctx, []domain.QuotaKey{key}, func() error {
		return s.store.RunInTx(ctx, func(tx domain.Tx) error {
			q, err := tx.GetQuotaForUpdate(ctx, key)
			if err != nil {
				return err
			}
			if err := domain.RequireRegulator(q, caller); err != nil {
				return err
			}
			events, err := fn(q, s.clock.Now())
			if err != nil {
				return err
			}
			if err := tx.UpdateQuota(ctx, q); err != nil {
				return err
			}
			return s.appendEvents(ctx, tx, out, events...)
		})
	})
}

// appendEvents stamps ids on events and stages them in tx's outbox. They are published by
// finish only once the transaction has committed.
func (s *Service) appendEvents(ctx context.Context, tx domain.Tx, out *outcome, events ...domain.Event) error {
	for i := range events {
		events[i].ID = s.genID.Generate()
	}
	if err := tx.AppendEvents(ctx, events...); err != nil {
		return fmt.Errorf("append events: %w", err)
	}
	out.events = append(out.events, events...)
	return nil
}

func (s *Service) RecordShipmentLogistics(ctx context.Context, req domain.RecordShipmentLogisticsRequest) (domain.UsageRecord, error) {
	key := domain.UsageKey{ShipmentID: req.ShipmentID, Holder: req.Caller}
	out := outcome{
		op:     opShipmentDetail,
		role:   auditdomain.ActorRoleHolder,
		actor:  req.Caller,
		target: key.ShipmentID + "/" + key.Holder,
		metadata: map[string]any{
			"source_location":      req.SourceLocation,
			"destination_location": req.DestinationLocation,
			"transport_details":    req.TransportDetails,
		},
	}

	var updated domain.UsageRecord
	err := validateLogistics(req)
	if err == nil {
		err = s.store.RunInTx(ctx, func(tx domain.Tx) error {
			u, err := tx.GetUsageForUpdate(ctx, key)
			if err != nil {
				return err
			}
			if u.HasLogistics() {
				return domain.ErrUsageDetailsRecorded
			}
			u.SourceLocation = req.SourceLocation
			u.DestinationLocation = req.DestinationLocation
			u.TransportDetails = req.TransportDetails
			if err := tx.UpdateUsageDetails(ctx, u); err != nil {
				return err
			}
			updated = *u
			return s.appendEvents(ctx, tx, &out, domain.NewShipmentLogisticsRecordedEvent(u, s.clock.Now()))
		})
	}
	s.finish(ctx, out, err)
	if err != nil {
		return domain.UsageRecord{}, err
	}
	return updated, nil
}

func validateLogistics(req domain.RecordShipmentLogisticsRequest) error {
	if err := domain.ValidateIdentity(req.Caller); err != nil {
		return domain.ErrUnauthorizedHolder
	}
	if err := domain.ValidateShipmentID(req.ShipmentID); err != nil {
		return err
	}
	if err := domain.ValidateLocation(req.SourceLocation); err != nil {
		return err
	}
	if err := domain.ValidateLocation(req.DestinationLocation); err != nil {
		return err
	}
	return domain.ValidateTransportDetails(req.TransportDetails)
}

// withLocks holds the distributed locks for keys, when a locker is configured, around fn.
func (s *Service) withLocks(ctx context.Context, keys []domain.QuotaKey, fn func() error) error {
	if s.locker == nil {
		return fn()
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, domain.LockKey(key))
	}
	sort.Strings(names)

	release, err := s.locker.Acquire(ctx, names...)
	if err != nil {
		return fmt.Errorf("acquire quota lock: %w", err)
	}
	defer release()
	return fn()
}

// finish runs the post-commit side effects. None of them can change the call's result. Events
// were already written with the transaction; publishing only fans them out.
func (s *Service) finish(ctx context.Context, out outcome, err error) {
	log := obslogger.WithContext(ctx, s.log).With(
		zap.String("operation", out.op),
		zap.String("target", out.target),
	)

	result := auditdomain.OutcomeAccepted
	switch {
	case err == nil:
	case domain.ClassOf(err) == domain.ClassAuthorization:
		result = auditdomain.OutcomeDenied
	default:
		result = auditdomain.OutcomeRejected
	}
	s.metrics.RecordOperation(ctx, out.op, string(result))

	if err != nil {
		if domain.ClassOf(err) == domain.ClassUnknown {
			log.Error("quota operation failed", zap.Error(err))
		} else {
			log.Debug("quota operation rejected", zap.String("error_code", domain.Code(err)))
		}
	}

	if s.audit != nil {
		entry := auditdomain.Entry{
			ActorRole:  out.role,
			ActorID:    out.actor,
			Action:     out.op,
			TargetType: targetType(out.op),
			TargetID:   out.target,
			Outcome:    result,
			ErrorCode:  errorCode(err),
			Metadata:   out.metadata,
		}
		if auditErr := s.audit.Record(ctx, entry); auditErr != nil {
			log.Warn("audit record failed", zap.Error(auditErr))
		}
	}

	if err != nil || len(out.events) == 0 || s.publisher == nil {
		return
	}
	if pubErr := s.publisher.Publish(ctx, out.events...); pubErr != nil {
		s.metrics.RecordEmitFailure(ctx, "publish")
		log.Warn("event publish failed", zap.Int("events", len(out.events)), zap.Error(pubErr))
	}
}

func targetType(op string) string {
	if strings.HasPrefix(op, "shipment.") {
		return "shipment"
	}
	return "quota"
}

func errorCode(err error) string {
	if err == nil {
		return ""
	}
	if code := domain.Code(err); code != "" {
		return code
	}
	return "internal_error"
}
