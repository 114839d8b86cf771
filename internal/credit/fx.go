package credit

import (
	"github.com/smallbiznis/creditgate/internal/credit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("credit.ledger",
	fx.Provide(service.New),
)
