package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/portflow/portflow/internal/actorcontext"
	obscontext "github.com/portflow/portflow/internal/observability/context"
)

const actorHeader = "X-User-Id"

// ActorMiddleware propagates the caller's identity from the gateway-supplied
// header. Authentication itself happens upstream of this service.
func ActorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := strings.TrimSpace(c.GetHeader(actorHeader))
		if actorID == "" {
			actorID = actorcontext.SystemActor
		}

		ctx := actorcontext.WithActorID(c.Request.Context(), actorID)
		ctx = obscontext.WithActorID(ctx, actorID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
