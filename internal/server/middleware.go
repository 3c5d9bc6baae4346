package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/quotaledger/internal/auth"
	obscontext "github.com/smallbiznis/quotaledger/internal/observability/context"
)

const contextCallerKey = "caller_id"

// AuthRequired resolves the caller from the bearer token. Browsers cannot set headers on an
// EventSource, so the stream endpoint may pass the token as access_token instead.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := auth.BearerToken(c.GetHeader("Authorization"))
		if raw == "" && strings.HasSuffix(c.FullPath(), "/stream") {
			raw = strings.TrimSpace(c.Query("access_token"))
		}
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		identity, err := s.verifier.Verify(raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), identity.Role, identity.Subject)
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextCallerKey, identity.Subject)
		c.Next()
	}
}

func callerID(c *gin.Context) string {
	return c.GetString(contextCallerKey)
}
