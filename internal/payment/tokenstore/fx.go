package tokenstore

import (
	"github.com/payssd/chapchap-sub000/internal/payment/domain"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.tokenstore",
	fx.Provide(New),
)

type Params struct {
	fx.In

	Redis *redis.Client `optional:"true"`
	Log   *zap.Logger
}

// New picks redis when a client is configured.
func New(p Params) domain.TokenStore {
	if p.Redis != nil {
		p.Log.Named("payment.tokenstore").Info("using redis token store")
		return NewRedis(p.Redis)
	}
	return NewMemory()
}
