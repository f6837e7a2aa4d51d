package creator

import (
	"go.uber.org/fx"
)

var Module = fx.Module("creator",
	fx.Provide(
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes),
)
