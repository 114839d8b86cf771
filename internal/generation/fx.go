package generation

import (
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/generation/provider"
	"github.com/smallbiznis/creditgate/internal/generation/repository"
	"github.com/smallbiznis/creditgate/internal/generation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("generation",
	fx.Provide(repository.Provide),
	fx.Provide(provideRegistry),
	fx.Provide(service.New),
)

func provideRegistry(cfg config.Config) *provider.Registry {
	return provider.NewRegistry(provider.NewDemo(cfg.DemoResultURL))
}
