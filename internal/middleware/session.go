package middleware

import (
	"errors"
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	callerKey = "caller"
	userKey   = "user"
)

// RequireSession resolves the session cookie and stores the caller on the
// context. Requests without a live session get 401.
func RequireSession(sessions *service.SessionService, cookie auth.CookieOptions, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(cookie.Name)

		resolved, err := sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			if errors.Is(err, service.ErrUnauthenticated) {
				auth.ClearSessionCookie(c.Writer, cookie)
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
				return
			}
			log.Error("session lookup failed", zap.Error(err), zap.String("request_id", GetRequestID(c)))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}

		if resolved.Refreshed != nil {
			auth.SetSessionCookie(c.Writer, cookie, resolved.Refreshed.Token, sessions.TTL())
		}

		caller := resolved.Caller
		caller.IPAddress = c.ClientIP()
		caller.RequestID = GetRequestID(c)
		c.Set(callerKey, caller)
		c.Set(userKey, resolved.User)
		c.Next()
	}
}

func CallerFrom(c *gin.Context) (domain.Caller, bool) {
	v, ok := c.Get(callerKey)
	if !ok {
		return domain.Caller{}, false
	}
	caller, ok := v.(domain.Caller)
	return caller, ok
}

func UserFrom(c *gin.Context) (*domain.User, bool) {
	v, ok := c.Get(userKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*domain.User)
	return u, ok
}
