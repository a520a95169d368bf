package payment

import (
	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/payment/service"
	"github.com/commercekit/paywall/internal/payment/stripe"
	"go.uber.org/fx"
)

var Module = fx.Module("payment",
	fx.Provide(
		func(cfg config.Config) service.Provider {
			return stripe.NewClient(cfg.Stripe.SecretKey)
		},
		service.NewService,
	),
)
