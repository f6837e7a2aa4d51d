package main

import (
	"log"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"creatorhub-payments/pkg/accesscontrol"
	"creatorhub-payments/pkg/config"
	"creatorhub-payments/pkg/db"
	"creatorhub-payments/pkg/featureflags"
	"creatorhub-payments/pkg/hashistack/secretmanager"
	"creatorhub-payments/pkg/health"
	"creatorhub-payments/pkg/httpapi"
	"creatorhub-payments/pkg/logger"
	"creatorhub-payments/pkg/otelcol"
	"creatorhub-payments/pkg/profiling"
	"creatorhub-payments/pkg/provider"
	"creatorhub-payments/pkg/provider/chapa"
	"creatorhub-payments/pkg/provider/telebirr"
	"creatorhub-payments/pkg/redis"
	"creatorhub-payments/pkg/sequence"
	"creatorhub-payments/pkg/server"
	"creatorhub-payments/pkg/task"
	"creatorhub-payments/services/campaign"
	"creatorhub-payments/services/creator"
	"creatorhub-payments/services/payout"
)

func main() {
	opts := []fx.Option{
		secretmanager.Module,
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		task.Client,
		task.Server,
		sequence.Module,
		accesscontrol.Module,
		featureflags.Module,
		health.Module,
		fx.Provide(
			provideSnowflakeNode,
			provideTelebirrClient,
			provideChapaClient,
			provideProviderRegistry,
		),
		httpapi.Module,
		campaign.Module,
		creator.Module,
		payout.Module,
		server.ProvideHTTPServer,
		otelcol.Module,
		profiling.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})

func provideSnowflakeNode() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func provideTelebirrClient(cfg *config.Config) *telebirr.Client {
	tb := cfg.Providers.Telebirr
	return telebirr.New(telebirr.Config{
		BaseURL:     tb.BaseURL,
		AppID:       tb.AppID,
		AppKey:      tb.AppKey,
		ShortCode:   tb.ShortCode,
		CallbackURL: tb.CallbackURL,
		Timeout:     tb.Timeout,
	}, nil)
}

func provideChapaClient(cfg *config.Config) *chapa.Client {
	ch := cfg.Providers.Chapa
	return chapa.New(chapa.Config{
		BaseURL:       ch.BaseURL,
		SecretKey:     ch.SecretKey,
		WebhookSecret: ch.WebhookSecret,
		Timeout:       ch.Timeout,
	}, nil)
}

func provideProviderRegistry(tb *telebirr.Client, ch *chapa.Client) provider.Registry {
	return provider.NewRegistry(tb, ch)
}
