package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
	"github.com/glowmart/storefront-bff/internal/federation"
	"github.com/glowmart/storefront-bff/internal/metrics"
	"github.com/glowmart/storefront-bff/log"
)

var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthResult is the outcome of a login or registration.
type AuthResult struct {
	User      *domain.User
	IsNewUser bool
	Tokens    *TokenPair
}

// AuthService signs users in. Social logins are provisioned against the
// commerce platform with a server-held fallback password; local accounts
// additionally keep a bcrypt hash of the user's own password.
type AuthService struct {
	users            domain.UserRepository
	commerce         CommerceAPI
	vault            CredentialVault
	hasher           PasswordHasher
	sessions         *SessionService
	fallbackPassword string
	logger           log.Logger
}

func NewAuthService(
	users domain.UserRepository,
	commerce CommerceAPI,
	vault CredentialVault,
	hasher PasswordHasher,
	sessions *SessionService,
	fallbackPassword string,
	logger log.Logger,
) *AuthService {
	return &AuthService{
		users:            users,
		commerce:         commerce,
		vault:            vault,
		hasher:           hasher,
		sessions:         sessions,
		fallbackPassword: fallbackPassword,
		logger:           logger,
	}
}

// AuthenticateSocialUser signs in a user from an external provider profile,
// provisioning them on first login. Provisioning is remote-first: the
// commerce customer must exist before any local row is written, so a
// commerce failure leaves no local state behind. The reverse failure, a
// commerce customer created but the local write failing, surfaces as
// apperrors.ErrOrphanedCustomer for operational follow-up.
func (s *AuthService) AuthenticateSocialUser(ctx context.Context, profile *federation.ExternalUserInfo) (*AuthResult, error) {
	if profile == nil || !domain.KnownProvider(profile.Provider) {
		return nil, fmt.Errorf("unknown provider")
	}
	email := strings.ToLower(strings.TrimSpace(profile.Email))
	if email == "" {
		return nil, fmt.Errorf("provider %s returned no email for user %s", profile.Provider, profile.ProviderUserID)
	}

	user, err := s.users.GetUserByEmailAndProvider(ctx, email, profile.Provider)
	if err == nil {
		metrics.LoginSuccessTotal.Inc()
		return s.result(user, false)
	}
	if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	user, err = s.provisionUser(ctx, &domain.User{
		Provider:       profile.Provider,
		ProviderUserID: profile.ProviderUserID,
		Email:          email,
		FirstName:      profile.FirstName,
		LastName:       profile.LastName,
	})
	if err != nil {
		return nil, err
	}

	metrics.LoginSuccessTotal.Inc()
	return s.result(user, true)
}

// RegisterLocalUser creates an email/password account. The commerce customer
// is still provisioned with the fallback password, so token refresh works
// identically for every provider; the user's own password only gates login
// to this service.
func (s *AuthService) RegisterLocalUser(ctx context.Context, email, password, firstName, lastName string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	if _, err := s.users.GetUserByEmailAndProvider(ctx, email, domain.ProviderLocal); err == nil {
		return nil, apperrors.ErrUserExists
	} else if !errors.Is(err, apperrors.ErrUserNotFound) {
		return nil, err
	}

	passwordHash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.provisionUser(ctx, &domain.User{
		Provider:     domain.ProviderLocal,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: passwordHash,
	})
	if err != nil {
		return nil, err
	}

	return s.result(user, true)
}

// LoginLocalUser authenticates an email/password account.
func (s *AuthService) LoginLocalUser(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetUserByEmailAndProvider(ctx, email, domain.ProviderLocal)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			metrics.LoginFailureTotal.Inc()
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.hasher.Verify(user.PasswordHash, password); err != nil {
		metrics.LoginFailureTotal.Inc()
		return nil, ErrInvalidCredentials
	}

	metrics.LoginSuccessTotal.Inc()
	return s.result(user, false)
}

// RefreshSession exchanges a valid refresh token for a fresh token pair.
func (s *AuthService) RefreshSession(ctx context.Context, refreshToken string) (*AuthResult, error) {
	userID, err := s.sessions.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	return s.result(user, false)
}

// provisionUser creates the commerce customer and then the local row, in
// that order.
func (s *AuthService) provisionUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if s.fallbackPassword == "" {
		return nil, apperrors.NewConfigurationError("SHOPIFY_CUSTOMER_PASSWORD")
	}

	customer, err := s.commerce.CreateCustomer(ctx, user.Email, s.fallbackPassword, user.FirstName, user.LastName)
	if err != nil {
		return nil, err
	}

	encrypted, err := s.vault.Encrypt(s.fallbackPassword)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt fallback credentials: %w", err)
	}

	expiresAt := customer.Token.ExpiresAt
	user.ShopifyCustomerID = customer.CustomerID
	user.ShopifyAccessToken = customer.Token.AccessToken
	user.ShopifyTokenExpiresAt = &expiresAt
	user.ShopifyPasswordEnc = encrypted

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrUserExists) {
			// Lost a provisioning race. CreateCustomer resolves duplicate
			// emails to the existing commerce customer, so the winner's row
			// is the same identity.
			existing, lookupErr := s.users.GetUserByEmailAndProvider(ctx, user.Email, user.Provider)
			if lookupErr == nil {
				return existing, nil
			}
		}
		s.logger.Error(ctx, "commerce customer created but local user write failed", err,
			map[string]any{"email": user.Email, "provider": string(user.Provider), "customer_id": customer.CustomerID})
		return nil, fmt.Errorf("%w: commerce customer %s has no local user: %v",
			apperrors.ErrOrphanedCustomer, customer.CustomerID, err)
	}

	metrics.CustomersCreatedTotal.Inc()
	s.logger.Info(ctx, "provisioned new user",
		map[string]any{"user_id": user.ID, "provider": string(user.Provider), "customer_id": customer.CustomerID})

	return user, nil
}

func (s *AuthService) result(user *domain.User, isNew bool) (*AuthResult, error) {
	tokens, err := s.sessions.IssueTokens(user)
	if err != nil {
		return nil, err
	}
	return &AuthResult{User: user, IsNewUser: isNew, Tokens: tokens}, nil
}
