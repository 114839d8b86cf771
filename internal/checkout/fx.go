package checkout

import (
	checkoutdomain "github.com/smallbiznis/creditgate/internal/checkout/domain"
	"github.com/smallbiznis/creditgate/internal/checkout/repository"
	"github.com/smallbiznis/creditgate/internal/checkout/service"
	"github.com/smallbiznis/creditgate/internal/checkout/stripe"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("checkout",
	fx.Provide(repository.Provide),
	fx.Provide(provideProcessor),
	fx.Provide(provideWebhookAdapter),
	fx.Provide(service.New),
	fx.Provide(service.NewAuthorizer),
)

func provideProcessor(cfg config.Config, log *zap.Logger) checkoutdomain.Processor {
	if cfg.Stripe.SecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY is not configured; checkout is disabled")
		return nil
	}
	return stripe.NewProcessor(cfg.Stripe.SecretKey, nil)
}

func provideWebhookAdapter(cfg config.Config, clk clock.Clock, log *zap.Logger) (checkoutdomain.WebhookAdapter, error) {
	if cfg.Stripe.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET is not configured; webhooks are rejected")
		return nil, nil
	}
	adapter, err := stripe.NewWebhookAdapter(cfg.Stripe.WebhookSecret, clk)
	if err != nil {
		return nil, err
	}
	return adapter, nil
}
