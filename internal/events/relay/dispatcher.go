package relay

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/quotaledger/internal/clock"
	"github.com/smallbiznis/quotaledger/internal/config"
	eventsdomain "github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/ratelimit"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	Clock   clock.Clock
	Repo    eventsdomain.Repository
	Config  *config.RelayConfigHolder
	Metrics *metrics.Metrics `optional:"true"`
}

// Dispatcher drains unrelayed events to the sink. Delivery is at least once: a batch is marked
// relayed only after the sink accepted all of it.
type Dispatcher struct {
	db      *gorm.DB
	log     *zap.Logger
	clock   clock.Clock
	repo    eventsdomain.Repository
	sink    Sink
	cfg     *config.RelayConfigHolder
	metrics *metrics.Metrics

	rate    int
	limiter ratelimit.Limiter
}

func NewDispatcher(p Params, sink Sink) *Dispatcher {
	return &Dispatcher{
		db:      p.DB,
		log:     p.Log.Named("events.relay"),
		clock:   p.Clock,
		repo:    p.Repo,
		sink:    sink,
		cfg:     p.Config,
		metrics: p.Metrics,
	}
}

func (d *Dispatcher) RunForever(ctx context.Context) {
	for {
		if _, err := d.RunOnce(ctx); err != nil {
			d.log.Warn("event relay run failed", zap.Error(err))
			d.metrics.RecordEmitFailure(ctx, "relay")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(d.cfg.Get().PollInterval):
		}
	}
}

// RunOnce relays at most one batch and returns how many events were delivered.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	cfg := d.cfg.Get()
	if cfg.Paused {
		return 0, nil
	}
	limiter := d.limiterFor(cfg.RatePerSecond)

	relayed := 0
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		pending, err := d.repo.LockPending(ctx, tx, cfg.BatchSize)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		for range pending {
			limiter.Take()
		}
		if err := d.sink.Send(ctx, pending); err != nil {
			return err
		}

		ids := make([]snowflake.ID, 0, len(pending))
		for _, ev := range pending {
			ids = append(ids, ev.ID)
		}
		if err := d.repo.MarkRelayed(ctx, tx, ids, d.clock.Now()); err != nil {
			return err
		}
		relayed = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if relayed > 0 {
		d.metrics.RecordRelayed(ctx, relayed)
		d.log.Debug("events relayed", zap.Int("count", relayed))
	}
	return relayed, nil
}

// limiterFor rebuilds the limiter when the reloaded rate changes. Only the dispatcher goroutine
// calls it.
func (d *Dispatcher) limiterFor(rate int) ratelimit.Limiter {
	if d.limiter == nil || d.rate != rate {
		d.limiter = ratelimit.New(rate)
		d.rate = rate
	}
	return d.limiter
}
