package quota

import (
	"fmt"

	"github.com/smallbiznis/quotaledger/internal/config"
	"github.com/smallbiznis/quotaledger/internal/quota/domain"
	"github.com/smallbiznis/quotaledger/internal/quota/repository"
	"github.com/smallbiznis/quotaledger/internal/quota/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("quota.service",
	fx.Provide(NewStore),
	fx.Provide(service.New),
)

type StoreParams struct {
	fx.In

	Config config.Config
	DB     *gorm.DB
	Log    *zap.Logger
	Outbox repository.Outbox `optional:"true"`
}

// NewStore picks the ledger store named by STORE_DRIVER. Ledger events are written through the
// outbox when the events module provides one.
func NewStore(p StoreParams) (domain.Store, error) {
	switch p.Config.StoreDriver {
	case "", "gorm":
		return repository.NewGormStore(p.DB, p.Outbox), nil
	case "memory":
		p.Log.Warn("quota ledger is running on the in-memory store; state is lost on restart")
		return repository.NewMemoryStore().WithOutbox(p.DB, p.Outbox), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", p.Config.StoreDriver)
	}
}
