package payment

import (
	"context"

	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/observability/metrics"
	"github.com/smallbiznis/creditgate/internal/payment/domain"
	"github.com/smallbiznis/creditgate/internal/payment/repository"
	"github.com/smallbiznis/creditgate/internal/payment/repository/boltstore"
	"github.com/smallbiznis/creditgate/internal/payment/repository/dynamo"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("payment.store",
	fx.Provide(provideRepository),
	fx.Provide(repository.ProvideEvents),
)

type repositoryParams struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	DB        *gorm.DB
	Metrics   *metrics.StoreMetrics
	Log       *zap.Logger
}

func provideRepository(p repositoryParams) (domain.Repository, error) {
	log := p.Log.Named("payment.store")

	switch p.Config.PaymentStore {
	case config.PaymentStoreDynamo:
		client, err := dynamo.NewClient(context.Background(), p.Config.Dynamo)
		if err != nil {
			return nil, err
		}
		log.Info("using dynamodb payment store", zap.String("table", p.Config.Dynamo.PaymentsTable))
		return dynamo.New(client, p.Config.Dynamo.PaymentsTable, p.Metrics), nil
	case config.PaymentStoreBolt:
		repo, err := boltstore.Open(p.Config.BoltPath, p.Metrics)
		if err != nil {
			return nil, err
		}
		p.Lifecycle.Append(fx.Hook{
			OnStop: func(context.Context) error { return repo.Close() },
		})
		log.Info("using bolt payment store", zap.String("path", p.Config.BoltPath))
		return repo, nil
	default:
		log.Info("using database payment store")
		return repository.Provide(p.DB, p.Metrics), nil
	}
}
