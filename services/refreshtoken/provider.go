package refreshtoken

import (
	"context"

	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func NewRefreshTokenService(db *gorm.DB, cfg *config.Config, logger *logging.Service) *Service {
	return NewService(db, cfg, logger)
}

func NewWorker(lc fx.Lifecycle, service *Service, cfg *config.Config) *CleanupWorker {
	worker := NewCleanupWorker(service, cfg.RefreshToken.CleanupInterval)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			worker.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			worker.Stop()
			return nil
		},
	})
	return worker
}

var Options = fx.Options(
	fx.Provide(NewRefreshTokenService),
	fx.Invoke(NewWorker),
)
