package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/taskhive/task-system/internal/api/middleware"
	"github.com/taskhive/task-system/internal/core/domain"
)

// ctxSession extracts the identity injected by the Session middleware and
// performs a fast-fail check before any service call: a session without an id
// or email is structurally valid but operationally unusable, so reject with
// 401 rather than letting a half-formed identity reach the services.
func ctxSession(c echo.Context) (*domain.SessionUser, error) {
	user := middleware.SessionUser(c)
	if user == nil {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	if user.ID == "" || user.Email == "" {
		return nil, echo.NewHTTPError(http.StatusUnauthorized, "session missing identity")
	}
	return user, nil
}
