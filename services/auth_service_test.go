package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
	"github.com/glowmart/storefront-bff/internal/federation"
	"github.com/glowmart/storefront-bff/internal/shopify"
	"github.com/glowmart/storefront-bff/internal/vault"
	"github.com/glowmart/storefront-bff/services"
)

const testFallbackPassword = "server-fallback-password"

type authServiceFixture struct {
	users    *MockUserRepository
	commerce *MockCommerceAPI
	hasher   *MockPasswordHasher
	vault    *vault.Vault
	sessions *services.SessionService
	svc      *services.AuthService
}

func newAuthServiceFixture(t *testing.T, fallbackPassword string) *authServiceFixture {
	t.Helper()

	v, err := vault.New("test-server-secret")
	require.NoError(t, err)

	sessions, err := services.NewSessionService("test-server-secret", 72*time.Hour, 168*time.Hour)
	require.NoError(t, err)

	f := &authServiceFixture{
		users:    new(MockUserRepository),
		commerce: new(MockCommerceAPI),
		hasher:   new(MockPasswordHasher),
		vault:    v,
		sessions: sessions,
	}
	f.svc = services.NewAuthService(f.users, f.commerce, v, f.hasher, sessions, fallbackPassword, nopLogger())
	return f
}

func googleProfile() *federation.ExternalUserInfo {
	return &federation.ExternalUserInfo{
		Provider:       domain.ProviderGoogle,
		ProviderUserID: "google-sub-1",
		Email:          "Jane.Doe@example.com",
		FirstName:      "Jane",
		LastName:       "Doe",
	}
}

func provisionedCustomer() *shopify.ProvisionedCustomer {
	return &shopify.ProvisionedCustomer{
		CustomerID: "gid://shopify/Customer/123",
		Token: domain.CustomerToken{
			AccessToken: "fresh-commerce-token",
			ExpiresAt:   time.Now().Add(72 * time.Hour),
		},
	}
}

func TestAuthenticateSocialUser_ExistingUser(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	existing := &domain.User{ID: testUserID, Provider: domain.ProviderGoogle, Email: "jane.doe@example.com"}

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(existing, nil)

	result, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	require.NoError(t, err)
	assert.False(t, result.IsNewUser)
	assert.Equal(t, existing, result.User)
	assert.NotEmpty(t, result.Tokens.AccessToken)
	assert.NotEmpty(t, result.Tokens.RefreshToken)

	f.commerce.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestAuthenticateSocialUser_NewUserProvisioned(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	customer := provisionedCustomer()

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(nil, apperrors.ErrUserNotFound)
	f.commerce.On("CreateCustomer", mock.Anything, "jane.doe@example.com", testFallbackPassword, "Jane", "Doe").
		Return(customer, nil)
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Provider == domain.ProviderGoogle &&
			u.Email == "jane.doe@example.com" &&
			u.ShopifyCustomerID == customer.CustomerID &&
			u.ShopifyAccessToken == customer.Token.AccessToken &&
			u.ShopifyPasswordEnc != ""
	})).Return(nil)

	result, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)

	// The stored blob must decrypt back to the fallback password so the
	// re-authentication path can use it later.
	decrypted, err := f.vault.Decrypt(result.User.ShopifyPasswordEnc)
	require.NoError(t, err)
	assert.Equal(t, testFallbackPassword, decrypted)

	f.commerce.AssertExpectations(t)
	f.users.AssertExpectations(t)
}

func TestAuthenticateSocialUser_CommerceFailureLeavesNoLocalRow(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(nil, apperrors.ErrUserNotFound)
	f.commerce.On("CreateCustomer", mock.Anything, "jane.doe@example.com", testFallbackPassword, "Jane", "Doe").
		Return(nil, apperrors.NewCommerceUnavailableError("customerCreate", assert.AnError))

	_, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	require.Error(t, err)
	assert.True(t, apperrors.IsCommerceUnavailable(err))

	f.users.AssertNotCalled(t, "CreateUser", mock.Anything, mock.Anything)
}

func TestAuthenticateSocialUser_MissingFallbackPassword(t *testing.T) {
	f := newAuthServiceFixture(t, "")

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(nil, apperrors.ErrUserNotFound)

	_, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	require.Error(t, err)

	var confErr *apperrors.ConfigurationError
	assert.ErrorAs(t, err, &confErr)
	f.commerce.AssertNotCalled(t, "CreateCustomer", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthenticateSocialUser_LocalWriteFailureIsOrphaned(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(nil, apperrors.ErrUserNotFound)
	f.commerce.On("CreateCustomer", mock.Anything, "jane.doe@example.com", testFallbackPassword, "Jane", "Doe").
		Return(provisionedCustomer(), nil)
	f.users.On("CreateUser", mock.Anything, mock.Anything).Return(assert.AnError)

	_, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	assert.ErrorIs(t, err, apperrors.ErrOrphanedCustomer)
}

func TestAuthenticateSocialUser_ProvisioningRaceReturnsWinner(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	winner := &domain.User{ID: testUserID, Provider: domain.ProviderGoogle, Email: "jane.doe@example.com"}

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(nil, apperrors.ErrUserNotFound).Once()
	f.commerce.On("CreateCustomer", mock.Anything, "jane.doe@example.com", testFallbackPassword, "Jane", "Doe").
		Return(provisionedCustomer(), nil)
	f.users.On("CreateUser", mock.Anything, mock.Anything).Return(apperrors.ErrUserExists)
	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane.doe@example.com", domain.ProviderGoogle).
		Return(winner, nil).Once()

	result, err := f.svc.AuthenticateSocialUser(context.Background(), googleProfile())
	require.NoError(t, err)
	assert.Equal(t, winner, result.User)
}

func TestAuthenticateSocialUser_RejectsUnknownProviderAndMissingEmail(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)

	_, err := f.svc.AuthenticateSocialUser(context.Background(), &federation.ExternalUserInfo{Provider: "myspace"})
	assert.Error(t, err)

	profile := googleProfile()
	profile.Email = ""
	_, err = f.svc.AuthenticateSocialUser(context.Background(), profile)
	assert.Error(t, err)
}

func TestRegisterLocalUser(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	customer := provisionedCustomer()

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "new.user@example.com", domain.ProviderLocal).
		Return(nil, apperrors.ErrUserNotFound)
	f.hasher.On("Hash", "hunter2hunter2").Return("$2a$10$hash", nil)
	f.commerce.On("CreateCustomer", mock.Anything, "new.user@example.com", testFallbackPassword, "New", "User").
		Return(customer, nil)
	f.users.On("CreateUser", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
		return u.Provider == domain.ProviderLocal && u.PasswordHash == "$2a$10$hash"
	})).Return(nil)

	result, err := f.svc.RegisterLocalUser(context.Background(), "New.User@example.com", "hunter2hunter2", "New", "User")
	require.NoError(t, err)
	assert.True(t, result.IsNewUser)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestRegisterLocalUser_DuplicateEmail(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "taken@example.com", domain.ProviderLocal).
		Return(&domain.User{ID: testUserID}, nil)

	_, err := f.svc.RegisterLocalUser(context.Background(), "taken@example.com", "password123", "", "")
	assert.ErrorIs(t, err, apperrors.ErrUserExists)
}

func TestLoginLocalUser(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	user := &domain.User{ID: testUserID, Provider: domain.ProviderLocal, Email: "jane@example.com", PasswordHash: "$2a$10$hash"}

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane@example.com", domain.ProviderLocal).
		Return(user, nil)
	f.hasher.On("Verify", "$2a$10$hash", "correct-password").Return(nil)

	result, err := f.svc.LoginLocalUser(context.Background(), "jane@example.com", "correct-password")
	require.NoError(t, err)
	assert.False(t, result.IsNewUser)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestLoginLocalUser_BadPassword(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	user := &domain.User{ID: testUserID, Provider: domain.ProviderLocal, PasswordHash: "$2a$10$hash"}

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "jane@example.com", domain.ProviderLocal).
		Return(user, nil)
	f.hasher.On("Verify", "$2a$10$hash", "wrong").Return(assert.AnError)

	_, err := f.svc.LoginLocalUser(context.Background(), "jane@example.com", "wrong")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestLoginLocalUser_UnknownEmail(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)

	f.users.On("GetUserByEmailAndProvider", mock.Anything, "ghost@example.com", domain.ProviderLocal).
		Return(nil, apperrors.ErrUserNotFound)

	_, err := f.svc.LoginLocalUser(context.Background(), "ghost@example.com", "whatever")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

func TestRefreshSession(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	user := &domain.User{ID: testUserID, Provider: domain.ProviderGoogle, Email: "jane@example.com"}

	pair, err := f.sessions.IssueTokens(user)
	require.NoError(t, err)

	f.users.On("GetUserByID", mock.Anything, testUserID).Return(user, nil)

	result, err := f.svc.RefreshSession(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, user, result.User)
	assert.NotEmpty(t, result.Tokens.AccessToken)
}

func TestRefreshSession_AccessTokenRejected(t *testing.T) {
	f := newAuthServiceFixture(t, testFallbackPassword)
	user := &domain.User{ID: testUserID, Provider: domain.ProviderGoogle}

	pair, err := f.sessions.IssueTokens(user)
	require.NoError(t, err)

	_, err = f.svc.RefreshSession(context.Background(), pair.AccessToken)
	assert.ErrorIs(t, err, services.ErrWrongTokenType)
}
