package migration

import (
	"github.com/smallbiznis/creditgate/internal/config"
	"github.com/smallbiznis/creditgate/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType != db.TypePostgres {
			log.Info("auto migrating schema", zap.String("dialect", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		version, err := RunMigrations(sqlDB)
		if err != nil {
			return err
		}
		log.Info("schema migrated", zap.Uint("version", version))
		return nil
	}),
)
