package ratelimit

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/creditgate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("rate.limit",
	fx.Provide(provideBackend),
	fx.Provide(New),
	fx.Provide(func(s *Service) Limiter { return s }),
)

type backendParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	DB        *gorm.DB
	Log       *zap.Logger
}

func provideBackend(p backendParams) Backend {
	log := p.Log.Named("rate.limit")
	if p.Config.RateLimitBackend == config.RateLimitDatabase {
		log.Warn("using best-effort database rate limiter")
		return NewStoreBackend(p.DB)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(p.Config.Redis.Addr),
		Password: strings.TrimSpace(p.Config.Redis.Password),
		DB:       p.Config.Redis.DB,
	})
	p.Lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Warn("redis ping failed", zap.String("addr", p.Config.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error { return client.Close() },
	})
	log.Info("using redis rate limiter", zap.String("addr", p.Config.Redis.Addr))
	return NewRedisBackend(client)
}
