package middleware

import (
	"context"

	"microblog/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// UserChecker reports whether a username still has an account.
type UserChecker interface {
	Exists(ctx context.Context, username string) (bool, error)
}

// LoadSession resolves the session cookie and stores the username in the
// context under auth.UsernameKey. It never rejects a request: handlers that
// need a user check the context themselves. Cookies that fail verification
// or name a user that no longer exists are cleared.
func LoadSession(sessions *auth.SessionManager, users UserChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessions.TokenFromRequest(c)
		if token == "" {
			c.Next()
			return
		}

		username, err := sessions.Resolve(token)
		if err != nil {
			logrus.WithError(err).Debug("Discarding invalid session cookie")
			sessions.Revoke(c)
			c.Next()
			return
		}

		exists, err := users.Exists(c.Request.Context(), username)
		if err != nil {
			logrus.WithError(err).Warn("Failed to validate session user")
			c.Next()
			return
		}
		if !exists {
			sessions.Revoke(c)
			c.Next()
			return
		}

		c.Set(auth.UsernameKey, username)
		c.Next()
	}
}
