package main

import (
	"github.com/commercekit/paywall/internal/catalog"
	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/entitlement"
	"github.com/commercekit/paywall/internal/identity"
	"github.com/commercekit/paywall/internal/logger"
	"github.com/commercekit/paywall/internal/metrics"
	"github.com/commercekit/paywall/internal/migration"
	"github.com/commercekit/paywall/internal/order"
	"github.com/commercekit/paywall/internal/payment"
	"github.com/commercekit/paywall/internal/server"
	"github.com/commercekit/paywall/internal/user"
	"github.com/commercekit/paywall/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		db.Module,
		migration.Module,
		metrics.Module,

		// Functional domains
		identity.Module,
		catalog.Module,
		order.Module,
		payment.Module,
		entitlement.Module,
		user.Module,

		server.Module,
	)
	app.Run()
}
