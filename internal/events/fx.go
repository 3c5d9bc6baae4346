package events

import (
	"context"

	"github.com/smallbiznis/quotaledger/internal/config"
	"github.com/smallbiznis/quotaledger/internal/events/domain"
	"github.com/smallbiznis/quotaledger/internal/events/liveevents"
	"github.com/smallbiznis/quotaledger/internal/events/relay"
	"github.com/smallbiznis/quotaledger/internal/events/repository"
	"github.com/smallbiznis/quotaledger/internal/events/service"
	quotadomain "github.com/smallbiznis/quotaledger/internal/quota/domain"
	quotarepo "github.com/smallbiznis/quotaledger/internal/quota/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("events",
	fx.Provide(repository.Provide),
	fx.Provide(liveevents.NewHub),
	fx.Provide(service.New),
	fx.Provide(
		func(s *service.Service) domain.Service { return s },
		func(s *service.Service) quotadomain.EventPublisher { return s },
		func(s *service.Service) quotarepo.Outbox { return s },
	),
	fx.Provide(config.NewRelayConfigHolder),
	fx.Invoke(runRelay),
)

func runRelay(lc fx.Lifecycle, cfg config.Config, log *zap.Logger, p relay.Params) error {
	if !cfg.Kafka.Enabled {
		log.Info("event relay disabled")
		return nil
	}

	sink, err := relay.NewKafkaSink(cfg.Kafka)
	if err != nil {
		return err
	}
	dispatcher := relay.NewDispatcher(p, sink)

	ctx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go dispatcher.RunForever(ctx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			sink.Close()
			return nil
		},
	})
	return nil
}
