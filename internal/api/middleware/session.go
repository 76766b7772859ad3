package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/taskhive/task-system/internal/core/domain"
	"github.com/taskhive/task-system/internal/core/ports"
	"github.com/taskhive/task-system/internal/core/service"
)

// SessionCookieName is the cookie carrying the signed session token.
const SessionCookieName = "taskhive_session"

const userContextKey = "session_user"

// Session validates the signed session token (cookie or bearer header),
// loads the identity from the session store, and injects it into context.
// The session TTL slides on every authenticated request.
func Session(secret string, sessions ports.SessionStore, ttl time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			sid, err := service.ParseSessionToken(token, secret)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			user, err := sessions.Get(c.Request().Context(), sid)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}

			_ = sessions.Touch(c.Request().Context(), sid, ttl)

			c.Set(userContextKey, user)
			return next(c)
		}
	}
}

// SessionUser returns the identity injected by the Session middleware, or nil
// when the request is unauthenticated.
func SessionUser(c echo.Context) *domain.SessionUser {
	user, _ := c.Get(userContextKey).(*domain.SessionUser)
	return user
}

// extractToken reads the token from the session cookie, falling back to a
// bearer Authorization header for non-browser clients.
func extractToken(c echo.Context) string {
	if cookie, err := c.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	header := c.Request().Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}
