package entitlement

import (
	"github.com/commercekit/paywall/internal/entitlement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("entitlement",
	fx.Provide(service.NewService),
)
