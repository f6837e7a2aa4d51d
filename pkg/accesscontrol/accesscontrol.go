package accesscontrol

import (
	"github.com/casbin/casbin/v2"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"creatorhub-payments/pkg/config"
)

var Module = fx.Module("accesscontrol", fx.Provide(ProvideAuthorizer))

// Authorizer answers role-based questions; ownership checks stay with the
// service that owns the resource.
type Authorizer interface {
	Can(role, resource, action string) bool
}

type authorizer struct {
	enforcer *casbin.Enforcer
}

type AuthorizerParams struct {
	fx.In
	Config *config.Config
}

func ProvideAuthorizer(p AuthorizerParams) Authorizer {
	ac := p.Config.AccessControl
	if ac.Model == "" || ac.Policy == "" {
		zap.L().Warn("[AccessControl] no model/policy configured, falling back to static roles")
		return &authorizer{}
	}

	enforcer, err := casbin.NewEnforcer(ac.Model, ac.Policy)
	if err != nil {
		zap.L().Error("[AccessControl] failed to build enforcer, falling back to static roles", zap.Error(err))
		return &authorizer{}
	}

	return &authorizer{enforcer: enforcer}
}

func (a *authorizer) Can(role, resource, action string) bool {
	if a.enforcer == nil {
		return role == "admin"
	}

	ok, err := a.enforcer.Enforce(role, resource, action)
	if err != nil {
		zap.L().Error("[AccessControl] enforce failed", zap.Error(err))
		return false
	}

	return ok
}
