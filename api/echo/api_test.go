package echo_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/glowmart/storefront-bff/api/echo"
	"github.com/glowmart/storefront-bff/cache"
	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
	"github.com/glowmart/storefront-bff/internal/auth"
	"github.com/glowmart/storefront-bff/internal/federation"
	"github.com/glowmart/storefront-bff/internal/shopify"
	"github.com/glowmart/storefront-bff/internal/vault"
	"github.com/glowmart/storefront-bff/log"
	"github.com/glowmart/storefront-bff/services"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[string]*domain.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (r *fakeUserRepo) CreateUser(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == user.Email && u.Provider == user.Provider {
			return apperrors.ErrUserExists
		}
	}
	r.nextID++
	user.ID = fmt.Sprintf("user-%d", r.nextID)
	user.CreatedAt = time.Now()
	r.users[user.ID] = user
	return nil
}

func (r *fakeUserRepo) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetUserByEmailAndProvider(_ context.Context, email string, provider domain.Provider) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email && u.Provider == provider {
			return u, nil
		}
	}
	return nil, apperrors.ErrUserNotFound
}

func (r *fakeUserRepo) GetTokenInfo(_ context.Context, userID string) (domain.CustomerToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.CustomerToken{}, apperrors.ErrUserNotFound
	}
	token := domain.CustomerToken{AccessToken: u.ShopifyAccessToken}
	if u.ShopifyTokenExpiresAt != nil {
		token.ExpiresAt = *u.ShopifyTokenExpiresAt
	}
	return token, nil
}

func (r *fakeUserRepo) GetCredentials(_ context.Context, userID string) (domain.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return domain.Credentials{}, apperrors.ErrUserNotFound
	}
	return domain.Credentials{Email: u.Email, EncryptedPassword: u.ShopifyPasswordEnc}, nil
}

func (r *fakeUserRepo) WriteToken(_ context.Context, userID string, token domain.CustomerToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	expiresAt := token.ExpiresAt
	u.ShopifyAccessToken = token.AccessToken
	u.ShopifyTokenExpiresAt = &expiresAt
	return nil
}

type fakeCommerce struct {
	unavailable bool
	renewErr    error
}

func (f *fakeCommerce) CreateCustomer(_ context.Context, email, _, _, _ string) (*shopify.ProvisionedCustomer, error) {
	if f.unavailable {
		return nil, apperrors.NewCommerceUnavailableError("customerCreate", assert.AnError)
	}
	return &shopify.ProvisionedCustomer{
		CustomerID: "gid://shopify/Customer/" + email,
		Token: domain.CustomerToken{
			AccessToken: "commerce-token-" + email,
			ExpiresAt:   time.Now().Add(72 * time.Hour),
		},
	}, nil
}

func (f *fakeCommerce) CreateAccessToken(_ context.Context, email, _ string) (domain.CustomerToken, error) {
	if f.unavailable {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError("customerAccessTokenCreate", assert.AnError)
	}
	return domain.CustomerToken{
		AccessToken: "reauthed-token-" + email,
		ExpiresAt:   time.Now().Add(72 * time.Hour),
	}, nil
}

func (f *fakeCommerce) RenewAccessToken(_ context.Context, accessToken string) (domain.CustomerToken, error) {
	if f.unavailable {
		return domain.CustomerToken{}, apperrors.NewCommerceUnavailableError("customerAccessTokenRenew", assert.AnError)
	}
	if f.renewErr != nil {
		return domain.CustomerToken{}, f.renewErr
	}
	return domain.CustomerToken{
		AccessToken: "renewed-" + accessToken,
		ExpiresAt:   time.Now().Add(72 * time.Hour),
	}, nil
}

type apiFixture struct {
	e        *echo.Echo
	repo     *fakeUserRepo
	commerce *fakeCommerce
	sessions *services.SessionService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	logger := log.NewZerologAdapter(zerolog.Disabled, false)
	v, err := vault.New("test-server-secret")
	require.NoError(t, err)

	sessions, err := services.NewSessionService("test-server-secret", 72*time.Hour, 168*time.Hour)
	require.NoError(t, err)

	repo := newFakeUserRepo()
	commerce := &fakeCommerce{}
	tokenCache := cache.NewTokenCache()
	t.Cleanup(tokenCache.Close)

	tokens := services.NewTokenService(repo, commerce, v, tokenCache, logger)
	hasher := auth.NewBcryptPasswordHasher(4)
	authSvc := services.NewAuthService(repo, commerce, v, hasher, sessions, "fallback-password", logger)

	fed := federation.NewService("https://bff.example.com/auth")
	fed.RegisterProvider(federation.NewGoogleProvider(federation.ProviderConfig{
		ClientID:     "google-id",
		ClientSecret: "google-secret",
	}))

	e := echo.New()
	api.NewAPI(authSvc, tokens, sessions, fed, repo, logger).RegisterRoutes(e)

	return &apiFixture{e: e, repo: repo, commerce: commerce, sessions: sessions}
}

func (f *apiFixture) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)
	return rec
}

func (f *apiFixture) registerUser(t *testing.T, email, password string) api.AuthResponse {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginRedirect(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))
	require.Equal(t, http.StatusFound, rec.Code)

	location := rec.Header().Get("Location")
	assert.Contains(t, location, "accounts.google.com")
	assert.Contains(t, location, "client_id=google-id")

	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	var state string
	for _, c := range cookies {
		if c.Name == "oauth_state" {
			state = c.Value
		}
	}
	assert.NotEmpty(t, state)
	assert.Contains(t, location, "state="+url.QueryEscape(state))
}

func TestLoginRedirect_UnknownProvider(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/myspace/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Local accounts use /auth/login, not the redirect flow.
	rec = f.do(httptest.NewRequest(http.MethodGet, "/auth/local/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginRedirect_UnregisteredProvider(t *testing.T) {
	f := newAPIFixture(t)

	// Kakao is a known provider but not registered in this fixture.
	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/kakao/login", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCallback_StateMismatch(t *testing.T) {
	f := newAPIFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=forged&code=abc", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "original"})
	rec := f.do(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "state mismatch")
}

func TestCallback_ProviderError(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRegisterAndLogin(t *testing.T) {
	f := newAPIFixture(t)

	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")
	assert.True(t, resp.IsNewUser)
	assert.Equal(t, "local", resp.User.Provider)
	assert.NotEmpty(t, resp.Tokens.AccessToken)
	assert.NotEmpty(t, resp.User.ShopifyCustomerID)

	// Registering the same email again conflicts.
	body := `{"email":"jane@example.com","password":"hunter2hunter2"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusConflict, f.do(req).Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var loginResp api.AuthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &loginResp))
	assert.False(t, loginResp.IsNewUser)
}

func TestLogin_WrongPassword(t *testing.T) {
	f := newAPIFixture(t)
	f.registerUser(t, "jane@example.com", "hunter2hunter2")

	body := `{"email":"jane@example.com","password":"wrong-password"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestRefresh(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	body := fmt.Sprintf(`{"refresh_token":%q}`, resp.Tokens.RefreshToken)
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	// An access token is not accepted as a refresh token.
	body = fmt.Sprintf(`{"refresh_token":%q}`, resp.Tokens.AccessToken)
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestMe(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Tokens.AccessToken)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view api.UserView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "jane@example.com", view.Email)

	// Credential material never appears on the wire.
	assert.NotContains(t, rec.Body.String(), "password")
	assert.NotContains(t, rec.Body.String(), "shopify_access_token")
}

func TestMe_Unauthenticated(t *testing.T) {
	f := newAPIFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.do(httptest.NewRequest(http.MethodGet, "/me", nil)).Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer garbage")
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}

func TestShopifyToken(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	req := httptest.NewRequest(http.MethodGet, "/shopify/token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Tokens.AccessToken)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "commerce-token-jane@example.com")
}

func TestShopifyToken_PlatformOutage(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	// Force the stored token to be expired, then take the platform down.
	expired := time.Now().Add(-time.Hour)
	f.repo.mu.Lock()
	f.repo.users[resp.User.ID].ShopifyTokenExpiresAt = &expired
	f.repo.mu.Unlock()
	f.commerce.unavailable = true

	req := httptest.NewRequest(http.MethodGet, "/shopify/token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Tokens.AccessToken)
	assert.Equal(t, http.StatusServiceUnavailable, f.do(req).Code)
}

func TestShopifyToken_RenewFallsBackToReauth(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	expired := time.Now().Add(-time.Hour)
	f.repo.mu.Lock()
	f.repo.users[resp.User.ID].ShopifyTokenExpiresAt = &expired
	f.repo.mu.Unlock()
	f.commerce.renewErr = apperrors.NewCommerceAuthError("customerAccessTokenRenew", "token expired")

	req := httptest.NewRequest(http.MethodGet, "/shopify/token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Tokens.AccessToken)
	rec := f.do(req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "reauthed-token-jane@example.com")
}

func TestShopifyToken_NoStoredToken(t *testing.T) {
	f := newAPIFixture(t)
	resp := f.registerUser(t, "jane@example.com", "hunter2hunter2")

	f.repo.mu.Lock()
	f.repo.users[resp.User.ID].ShopifyAccessToken = ""
	f.repo.users[resp.User.ID].ShopifyTokenExpiresAt = nil
	f.repo.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/shopify/token", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+resp.Tokens.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, f.do(req).Code)
}
