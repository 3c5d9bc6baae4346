package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	eventsdomain "github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/internal/events/liveevents"
	"github.com/smallbiznis/quotaledger/internal/observability/metrics"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Repo    eventsdomain.Repository
	Hub     *liveevents.Hub
	Metrics *metrics.Metrics `optional:"true"`
}

// Service writes ledger events to the outbox table for the relay and fans committed events
// out to live subscribers.
type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	repo    eventsdomain.Repository
	hub     *liveevents.Hub
	metrics *metrics.Metrics
}

func New(p Params) *Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("events.service"),
		genID:   p.GenID,
		repo:    p.Repo,
		hub:     p.Hub,
		metrics: p.Metrics,
	}
}

// AppendTx writes events to the outbox table through tx, so the rows commit or roll back with
// the ledger changes that produced them. Events without an id get one here.
func (s *Service) AppendTx(ctx context.Context, tx *gorm.DB, events ...quotadomain.Event) error {
	if len(events) == 0 {
		return nil
	}

	rows := make([]*eventsdomain.Event, 0, len(events))
	for _, ev := range events {
		id := ev.ID
		if id == 0 {
			id = s.genID.Generate()
		}
		rows = append(rows, &eventsdomain.Event{
			ID:                     id,
			Kind:                   string(ev.Kind),
			ConcessionID:           ev.ConcessionID,
			CounterpartyConcession: ev.CounterpartyConcession,
			Holder:                 ev.Holder,
			Actor:                  ev.Actor,
			Payload:                datatypes.JSONMap(ev.Payload),
			OccurredAt:             ev.OccurredAt,
		})
	}
	return s.repo.Insert(ctx, tx, rows)
}

// Publish pushes committed events to the live hub. The rows were already written by AppendTx.
func (s *Service) Publish(ctx context.Context, events ...quotadomain.Event) error {
	for _, ev := range events {
		s.hub.Publish(toLive(ev))
		s.metrics.RecordEventEmitted(ctx, string(ev.Kind))
	}
	return nil
}

func (s *Service) List(ctx context.Context, req eventsdomain.ListEventsRequest) (eventsdomain.ListEventsResponse, error) {
	concessionID := strings.TrimSpace(req.ConcessionID)
	if concessionID == "" {
		return eventsdomain.ListEventsResponse{}, eventsdomain.ErrInvalidConcession
	}

	before, err := quotadomain.DecodeIDCursor(req.PageToken)
	if err != nil {
		return eventsdomain.ListEventsResponse{}, err
	}

	limit := req.Pagination.Limit()
	items, err := s.repo.List(ctx, s.db, eventsdomain.ListFilter{
		ConcessionID: concessionID,
		Kind:         strings.TrimSpace(req.Kind),
		BeforeID:     before,
		Limit:        limit,
	})
	if err != nil {
		return eventsdomain.ListEventsResponse{}, err
	}

	items, pageInfo := pagination.Page(items, limit, func(item *eventsdomain.Event) pagination.Cursor {
		return pagination.Cursor{ID: item.ID.String()}
	})

	out := make([]eventsdomain.Event, 0, len(items))
	for _, item := range items {
		out = append(out, *item)
	}
	return eventsdomain.ListEventsResponse{PageInfo: pageInfo, Events: out}, nil
}

func (s *Service) Subscribe(concessionID string) (*liveevents.Subscription, []liveevents.LiveEvent, error) {
	return s.hub.Subscribe(concessionID)
}

func toLive(ev quotadomain.Event) liveevents.LiveEvent {
	return liveevents.LiveEvent{
		ID:                     ev.ID.String(),
		Kind:                   string(ev.Kind),
		ConcessionID:           ev.ConcessionID,
		CounterpartyConcession: ev.CounterpartyConcession,
		Holder:                 ev.Holder,
		Actor:                  ev.Actor,
		OccurredAt:             ev.OccurredAt,
		Payload:                ev.Payload,
	}
}
