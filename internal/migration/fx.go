package migration

import (
	"context"

	"github.com/smallbiznis/dentaldesk/internal/config"
	"github.com/smallbiznis/dentaldesk/internal/seed"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger, seeder *seed.Seeder) error {
		if err := Migrate(conn, cfg.DBType); err != nil {
			return err
		}
		log.Info("database schema ready", zap.String("type", cfg.DBType))

		if !cfg.Bootstrap.EnsureDefaultAdmin {
			return nil
		}
		return seeder.EnsureDefaultAdmin(context.Background())
	}),
)
