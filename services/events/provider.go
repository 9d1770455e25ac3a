package events

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/redis/go-redis/v9"
	"github.com/trustbridge/auth/config"
	"go.uber.org/fx"
)

func NewPublisher(lc fx.Lifecycle, cfg *config.Config) (Publisher, error) {
	if !cfg.Redis.Enabled {
		return NopPublisher{}, nil
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, err
	}
	backend, err := redisstream.NewPublisher(redisstream.PublisherConfig{
		Client: redis.NewClient(opts),
	}, watermill.NopLogger{})
	if err != nil {
		return nil, err
	}

	publisher := NewWatermillPublisher(backend)
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})
	return publisher, nil
}

var Options = fx.Options(
	fx.Provide(NewPublisher),
)
