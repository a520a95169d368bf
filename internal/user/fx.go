package user

import (
	"github.com/commercekit/paywall/internal/user/repository"
	"github.com/commercekit/paywall/internal/user/service"
	"go.uber.org/fx"
)

var Module = fx.Module("user",
	fx.Provide(
		repository.Provide,
		service.NewService,
	),
)
