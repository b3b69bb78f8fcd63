package echo

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
	"github.com/glowmart/storefront-bff/services"
)

// SessionAuth validates the Bearer session token and puts the user id on the
// request context.
func (a *API) SessionAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			return errorResponse(c, http.StatusUnauthorized, "missing authorization header")
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return errorResponse(c, http.StatusUnauthorized, "invalid authorization header format: expected Bearer token")
		}

		userID, err := a.sessions.VerifyAccessToken(parts[1])
		if err != nil {
			return errorResponse(c, http.StatusUnauthorized, "invalid or expired session token")
		}

		ctx := domain.WithUserID(c.Request().Context(), userID)
		c.SetRequest(c.Request().WithContext(ctx))
		return next(c)
	}
}

// fail translates service errors to HTTP statuses: 401 for anything that
// needs a fresh login, 503 for a platform outage, 500 for configuration
// problems and the rest.
func (a *API) fail(c echo.Context, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNoToken):
		return errorResponse(c, http.StatusUnauthorized, "no commerce token, log in again")
	case errors.Is(err, apperrors.ErrReauthRequired):
		return errorResponse(c, http.StatusUnauthorized, "session with commerce platform expired, log in again")
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidSessionToken),
		errors.Is(err, services.ErrWrongTokenType):
		return errorResponse(c, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, apperrors.ErrUserExists):
		return errorResponse(c, http.StatusConflict, "account already exists")
	case errors.Is(err, apperrors.ErrUserNotFound):
		return errorResponse(c, http.StatusNotFound, "user not found")
	case apperrors.IsCommerceUnavailable(err):
		a.logger.Error(c.Request().Context(), "commerce platform unavailable", err, nil)
		return errorResponse(c, http.StatusServiceUnavailable, "commerce platform unavailable, retry later")
	default:
		var authErr *apperrors.CommerceAuthError
		if errors.As(err, &authErr) {
			return errorResponse(c, http.StatusUnauthorized, authErr.Error())
		}
		var confErr *apperrors.ConfigurationError
		if errors.As(err, &confErr) {
			a.logger.Error(c.Request().Context(), "configuration error", err, nil)
			return errorResponse(c, http.StatusInternalServerError, "server misconfigured")
		}
		a.logger.Error(c.Request().Context(), "request failed", err, nil)
		return errorResponse(c, http.StatusInternalServerError, "internal error")
	}
}

func errorResponse(c echo.Context, status int, message string) error {
	return c.JSON(status, map[string]string{"error": message})
}
