package revocation

import (
	"github.com/trustbridge/auth/config"
	"go.uber.org/fx"
)

func NewStore(cfg *config.Config) (Store, error) {
	if cfg.Redis.Enabled {
		return NewRedisStoreFromURL(cfg.Redis.URL)
	}
	return NewMemoryStore(), nil
}

var Options = fx.Options(
	fx.Provide(NewStore),
)
