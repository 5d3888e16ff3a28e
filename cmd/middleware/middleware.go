package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"eventhub/internal/apperr"
	"eventhub/internal/auth"
	"eventhub/internal/dto"
	"eventhub/internal/guard"
)

const principalKey = "principal"

func LoggingMiddleware() gin.HandlerFunc {
	return func(c *ginext.Context) {
		start := time.Now()
		c.Next()

		ev := zlog.Logger.Info()
		if status := c.Writer.Status(); status >= 500 {
			ev = zlog.Logger.Error()
		} else if status >= 400 {
			ev = zlog.Logger.Warn()
		}
		if p, ok := PrincipalFrom(c); ok {
			ev = ev.Str("user_id", p.UserID)
		}
		ev.Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Msg("request handled")
	}
}

// Accounts resolves a token subject to an account that may still act.
type Accounts interface {
	ActivePrincipal(ctx context.Context, userID string) (guard.Principal, error)
}

// Authenticate accepts a bearer token and stores the caller's principal.
// Requests without a valid token, or from a blocked or deleted account, are
// rejected with 401.
func Authenticate(tokens *auth.TokenIssuer, accounts Accounts) gin.HandlerFunc {
	return func(c *ginext.Context) {
		header := c.GetHeader("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || raw == "" {
			dto.ErrorWithStatus(c, http.StatusUnauthorized, string(apperr.KindUnauthenticated), "missing bearer token")
			return
		}
		claims, err := tokens.Parse(raw)
		if err != nil {
			desc := "invalid token"
			if !errors.Is(err, auth.ErrInvalidToken) {
				desc = err.Error()
			}
			dto.ErrorWithStatus(c, http.StatusUnauthorized, string(apperr.KindUnauthenticated), desc)
			return
		}
		p, err := accounts.ActivePrincipal(c.Request.Context(), claims.UserID)
		if err != nil {
			dto.AppError(c, err)
			return
		}
		c.Set(principalKey, p)
		c.Next()
	}
}

func PrincipalFrom(c *ginext.Context) (guard.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return guard.Principal{}, false
	}
	p, ok := v.(guard.Principal)
	return p, ok
}
