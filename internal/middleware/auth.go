// internal/middleware/auth.go
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// Identity headers set by the gateway that authenticates operators.
const (
	HeaderActorID    = "X-Actor-Id"
	HeaderActorName  = "X-Actor-Name"
	HeaderActorEmail = "X-Actor-Email"
)

// ActorFromHeaders copies the authenticated operator into the context. Login
// and sessions live upstream; requests without headers carry no actor.
func ActorFromHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(HeaderActorID)); id != "" {
			c.Set("actor_id", id)
			c.Set("actor_name", strings.TrimSpace(c.GetHeader(HeaderActorName)))
			c.Set("actor_email", strings.TrimSpace(c.GetHeader(HeaderActorEmail)))
		}
		c.Next()
	}
}
