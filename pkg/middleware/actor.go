package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
)

// Actor identifies the caller as resolved by the upstream auth gateway.
// This service trusts the gateway-set identity headers and only decides
// what the actor may do.
type Actor struct {
	UserID string
	Role   string
}

type actorKey struct{}

var ActorContextKey = actorKey{}

const (
	HeaderUserID = "X-User-Id"
	HeaderRole   = "X-User-Role"
)

// WithActor copies the identity headers into the request context.
func WithActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := Actor{
			UserID: c.GetHeader(HeaderUserID),
			Role:   c.GetHeader(HeaderRole),
		}
		if actor.Role == "" {
			actor.Role = "user"
		}

		ctx := context.WithValue(c.Request.Context(), ActorContextKey, actor)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// GetActor returns the actor stored on the context, or a zero-value actor
// with the default role.
func GetActor(ctx context.Context) Actor {
	actor, ok := ctx.Value(ActorContextKey).(Actor)
	if !ok {
		return Actor{Role: "user"}
	}
	return actor
}

// WithTestActor injects an actor directly, for tests that bypass HTTP.
func WithTestActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, actor)
}
