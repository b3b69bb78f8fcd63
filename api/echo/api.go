package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/glowmart/storefront-bff/domain"
	"github.com/glowmart/storefront-bff/internal/federation"
	"github.com/glowmart/storefront-bff/log"
	"github.com/glowmart/storefront-bff/services"
)

const (
	stateCookieName = "oauth_state"
	stateCookieTTL  = 10 * time.Minute
)

// API wires the HTTP surface: social login redirects and callbacks, local
// register/login, session refresh and the commerce-token endpoints.
type API struct {
	auth       *services.AuthService
	tokens     *services.TokenService
	sessions   *services.SessionService
	federation *federation.Service
	users      domain.UserRepository
	logger     log.Logger
}

func NewAPI(
	auth *services.AuthService,
	tokens *services.TokenService,
	sessions *services.SessionService,
	fed *federation.Service,
	users domain.UserRepository,
	logger log.Logger,
) *API {
	return &API{
		auth:       auth,
		tokens:     tokens,
		sessions:   sessions,
		federation: fed,
		users:      users,
		logger:     logger,
	}
}

// RegisterRoutes registers all routes on the echo instance.
func (a *API) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", a.HealthzHandler)

	e.GET("/auth/:provider/login", a.LoginRedirectHandler)
	e.GET("/auth/:provider/callback", a.CallbackHandler)
	// Apple delivers the callback as a form POST.
	e.POST("/auth/:provider/callback", a.CallbackHandler)

	e.POST("/auth/register", a.RegisterHandler)
	e.POST("/auth/login", a.LoginHandler)
	e.POST("/auth/refresh", a.RefreshHandler)

	protected := e.Group("", a.SessionAuth)
	protected.GET("/me", a.MeHandler)
	protected.GET("/shopify/token", a.ShopifyTokenHandler)
}

func (a *API) HealthzHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// LoginRedirectHandler starts the social login flow: it generates a CSRF
// state, stores it in a short-lived cookie and redirects to the provider.
func (a *API) LoginRedirectHandler(c echo.Context) error {
	provider := domain.Provider(c.Param("provider"))
	if !domain.KnownProvider(provider) || provider == domain.ProviderLocal {
		return errorResponse(c, http.StatusNotFound, "unknown provider")
	}

	state, err := a.federation.GenerateAuthState()
	if err != nil {
		return a.fail(c, err)
	}

	authURL, err := a.federation.GetAuthorizationURL(provider, state)
	if err != nil {
		if errors.Is(err, federation.ErrProviderNotFound) {
			return errorResponse(c, http.StatusNotFound, "provider not enabled")
		}
		return a.fail(c, err)
	}

	c.SetCookie(&http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/auth",
		MaxAge:   int(stateCookieTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	return c.Redirect(http.StatusFound, authURL)
}

// CallbackHandler completes the social login flow: it validates the state
// against the cookie, exchanges the code, and signs the user in.
func (a *API) CallbackHandler(c echo.Context) error {
	provider := domain.Provider(c.Param("provider"))
	if !domain.KnownProvider(provider) || provider == domain.ProviderLocal {
		return errorResponse(c, http.StatusNotFound, "unknown provider")
	}

	if errMsg := a.callbackParam(c, "error"); errMsg != "" {
		return errorResponse(c, http.StatusUnauthorized, "provider returned error: "+errMsg)
	}

	sessionState := ""
	if cookie, err := c.Cookie(stateCookieName); err == nil {
		sessionState = cookie.Value
	}
	// One-shot cookie.
	c.SetCookie(&http.Cookie{Name: stateCookieName, Value: "", Path: "/auth", MaxAge: -1, HttpOnly: true})

	queryState := a.callbackParam(c, "state")
	code := a.callbackParam(c, "code")

	ctx := c.Request().Context()
	profile, _, err := a.federation.HandleCallback(ctx, provider, queryState, sessionState, code)
	if err != nil {
		if errors.Is(err, federation.ErrInvalidAuthState) {
			return errorResponse(c, http.StatusUnauthorized, "state mismatch, restart login")
		}
		a.logger.Warn(ctx, "social callback failed", map[string]any{"provider": string(provider), "error": err.Error()})
		return errorResponse(c, http.StatusUnauthorized, "login with provider failed")
	}

	result, err := a.auth.AuthenticateSocialUser(ctx, profile)
	if err != nil {
		return a.fail(c, err)
	}

	status := http.StatusOK
	if result.IsNewUser {
		status = http.StatusCreated
	}
	return c.JSON(status, authResponse(result))
}

// callbackParam reads a callback parameter from the query string or, for
// form_post responses, the form body.
func (a *API) callbackParam(c echo.Context, name string) string {
	if v := c.QueryParam(name); v != "" {
		return v
	}
	return c.FormValue(name)
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (a *API) RegisterHandler(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	result, err := a.auth.RegisterLocalUser(c.Request().Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusCreated, authResponse(result))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (a *API) LoginHandler(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return errorResponse(c, http.StatusBadRequest, "invalid request body")
	}

	result, err := a.auth.LoginLocalUser(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, authResponse(result))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (a *API) RefreshHandler(c echo.Context) error {
	var req refreshRequest
	if err := c.Bind(&req); err != nil || req.RefreshToken == "" {
		return errorResponse(c, http.StatusBadRequest, "refresh_token is required")
	}

	result, err := a.auth.RefreshSession(c.Request().Context(), req.RefreshToken)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, authResponse(result))
}

func (a *API) MeHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := domain.UserIDFromContext(ctx)
	if !ok {
		return errorResponse(c, http.StatusUnauthorized, "not authenticated")
	}

	user, err := a.users.GetUserByID(ctx, userID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, userView(user))
}

// ShopifyTokenHandler hands the frontend a commerce access token that is
// guaranteed to be usable past the expiry buffer.
func (a *API) ShopifyTokenHandler(c echo.Context) error {
	ctx := c.Request().Context()
	userID, ok := domain.UserIDFromContext(ctx)
	if !ok {
		return errorResponse(c, http.StatusUnauthorized, "not authenticated")
	}

	token, err := a.tokens.GetValidToken(ctx, userID)
	if err != nil {
		return a.fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"access_token": token.AccessToken,
		"expires_at":   token.ExpiresAt,
	})
}
