package identity

import (
	"github.com/commercekit/paywall/internal/config"
	"github.com/commercekit/paywall/internal/identity/domain"
	"github.com/commercekit/paywall/internal/identity/keys"
	"github.com/commercekit/paywall/internal/identity/service"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("identity",
	fx.Provide(func(cfg config.Config, log *zap.Logger) domain.KeySource {
		return keys.NewCache(cfg.Identity, log)
	}),
	fx.Provide(service.NewVerifier),
)
