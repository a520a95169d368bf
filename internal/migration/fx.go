package migration

import (
	"strings"

	"github.com/commercekit/paywall/internal/catalog"
	catalogdomain "github.com/commercekit/paywall/internal/catalog/domain"
	"github.com/commercekit/paywall/internal/config"
	orderdomain "github.com/commercekit/paywall/internal/order/domain"
	userdomain "github.com/commercekit/paywall/internal/user/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger, products catalogdomain.Repository) error {
		if strings.EqualFold(cfg.DBType, "postgres") {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		} else {
			// sqlite is for local development and tests only; the
			// versioned migrations are written for postgres.
			if err := conn.AutoMigrate(
				&orderdomain.Order{},
				&orderdomain.PaymentLog{},
				&catalogdomain.Product{},
				&userdomain.User{},
			); err != nil {
				return err
			}
		}

		return catalog.SeedFromConfig(conn, cfg, log, products)
	}),
)
