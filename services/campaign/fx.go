package campaign

import (
	"go.uber.org/fx"
)

var Module = fx.Module("campaign",
	fx.Provide(
		NewService,
		NewHandler,
		NewTaskHandler,
	),
	fx.Invoke(
		RegisterRoutes,
		RegisterTasks,
		StartExpireTicker,
	),
)
