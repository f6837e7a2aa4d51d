package httpapi

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"creatorhub-payments/pkg/config"
	"creatorhub-payments/pkg/health"
	"creatorhub-payments/pkg/middleware"
)

var Module = fx.Module("httpapi",
	fx.Provide(ProvideEngine),
	fx.Invoke(registerHealthRoutes),
)

type EngineParams struct {
	fx.In
	Config *config.Config
}

// ProvideEngine builds the shared gin engine. Services attach their routes
// through fx.Invoke hooks against this engine.
func ProvideEngine(p EngineParams) *gin.Engine {
	if p.Config.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(middleware.WithActor())
	engine.Use(middleware.Error())

	return engine
}

func registerHealthRoutes(engine *gin.Engine, h health.HealthService) {
	engine.GET("/healthz", h.Liveness)
	engine.GET("/readyz", h.Readiness)
}
