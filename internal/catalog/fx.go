package catalog

import (
	"github.com/commercekit/paywall/internal/catalog/repository"
	"github.com/commercekit/paywall/internal/catalog/service"
	"go.uber.org/fx"
)

var Module = fx.Module("catalog",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
