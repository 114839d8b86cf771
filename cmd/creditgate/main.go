package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditgate/internal/checkout"
	"github.com/smallbiznis/creditgate/internal/clock"
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/internal/credit"
	"github.com/smallbiznis/creditgate/internal/generation"
	"github.com/smallbiznis/creditgate/internal/migration"
	"github.com/smallbiznis/creditgate/internal/observability"
	"github.com/smallbiznis/creditgate/internal/payment"
	"github.com/smallbiznis/creditgate/internal/ratelimit"
	"github.com/smallbiznis/creditgate/internal/server"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),

		// Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(NewIDNode),
		db.Module,
		clock.Module,
		migration.Module,

		// Payment record store, then the ledger and handshake on top of it
		payment.Module,
		credit.Module,
		checkout.Module,
		ratelimit.Module,
		generation.Module,

		server.Module,
	)
	app.Run()
}

// NewIDNode returns the snowflake node for generation and webhook event ids.
func NewIDNode(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.NodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.NodeID, err)
	}
	return node, nil
}
