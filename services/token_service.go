package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/glowmart/storefront-bff/cache"
	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
	"github.com/glowmart/storefront-bff/internal/metrics"
	"github.com/glowmart/storefront-bff/log"
)

// DefaultExpiryBuffer is the safety margin applied to commerce token expiry
// checks. A token within this margin of its expiry is refreshed eagerly so
// clock skew and in-flight latency never hand a dead token downstream.
const DefaultExpiryBuffer = 5 * time.Minute

// TokenService keeps each user's commerce access token usable. It serves
// cached tokens while they are comfortably fresh and refreshes expiring ones
// in two tiers: renew the current token, then fall back to re-authenticating
// with the stored fallback credentials.
type TokenService struct {
	users    domain.UserRepository
	commerce CommerceAPI
	vault    CredentialVault
	cache    *cache.TokenCache
	locker   cache.RenewalLocker
	logger   log.Logger
	buffer   time.Duration
	group    singleflight.Group
	now      func() time.Time
}

type TokenServiceOption func(*TokenService)

// WithRenewalLocker adds a cross-instance advisory lock around refreshes.
func WithRenewalLocker(locker cache.RenewalLocker) TokenServiceOption {
	return func(s *TokenService) { s.locker = locker }
}

// WithExpiryBuffer overrides the default freshness margin.
func WithExpiryBuffer(buffer time.Duration) TokenServiceOption {
	return func(s *TokenService) { s.buffer = buffer }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) TokenServiceOption {
	return func(s *TokenService) { s.now = now }
}

func NewTokenService(
	users domain.UserRepository,
	commerce CommerceAPI,
	vault CredentialVault,
	tokenCache *cache.TokenCache,
	logger log.Logger,
	opts ...TokenServiceOption,
) *TokenService {
	s := &TokenService{
		users:    users,
		commerce: commerce,
		vault:    vault,
		cache:    tokenCache,
		logger:   logger,
		buffer:   DefaultExpiryBuffer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetValidAccessToken returns just the bearer string of GetValidToken. The
// request guard uses it to attach the token to outbound commerce calls.
func (s *TokenService) GetValidAccessToken(ctx context.Context, userID string) (string, error) {
	token, err := s.GetValidToken(ctx, userID)
	if err != nil {
		return "", err
	}
	return token.AccessToken, nil
}

// GetValidToken returns a commerce token guaranteed to outlive the expiry
// buffer. A comfortably fresh stored token is returned without any network
// call. An expiring one is renewed against the platform; if the platform
// rejects the renewal, the stored fallback credentials are decrypted and
// used to re-authenticate. Failures map to apperrors.ErrNoToken (nothing
// stored, full social login needed) and apperrors.ErrReauthRequired
// (fallback exhausted). Platform outages surface as CommerceUnavailableError
// without burning the fallback path.
//
// Concurrent calls for the same user collapse into a single refresh.
func (s *TokenService) GetValidToken(ctx context.Context, userID string) (domain.CustomerToken, error) {
	if token, ok := s.cache.Get(ctx, userID); ok && token.Valid(s.now(), s.buffer) {
		return token, nil
	}

	v, err, _ := s.group.Do(userID, func() (any, error) {
		return s.refresh(ctx, userID)
	})
	if err != nil {
		return domain.CustomerToken{}, err
	}
	return v.(domain.CustomerToken), nil
}

func (s *TokenService) refresh(ctx context.Context, userID string) (domain.CustomerToken, error) {
	stored, err := s.users.GetTokenInfo(ctx, userID)
	if err != nil {
		return domain.CustomerToken{}, err
	}
	if stored.AccessToken == "" {
		return domain.CustomerToken{}, apperrors.ErrNoToken
	}

	now := s.now()
	if stored.Valid(now, s.buffer) {
		s.cache.Set(ctx, userID, stored, s.buffer)
		return stored, nil
	}

	if s.locker != nil {
		acquired, lockErr := s.locker.TryAcquire(ctx, userID)
		switch {
		case lockErr != nil:
			// Lock backend trouble never blocks a refresh.
			s.logger.Warn(ctx, "renewal lock unavailable, refreshing anyway",
				map[string]any{"user_id": userID, "error": lockErr.Error()})
		case acquired:
			defer s.locker.Release(ctx, userID)
		default:
			// Another instance is refreshing. Re-read once in case its
			// write already landed, then refresh ourselves regardless:
			// the store is last-write-wins, so a duplicate refresh is
			// wasteful but harmless.
			if again, readErr := s.users.GetTokenInfo(ctx, userID); readErr == nil && again.Valid(now, s.buffer) {
				s.cache.Set(ctx, userID, again, s.buffer)
				return again, nil
			}
		}
	}

	s.logger.Debug(ctx, "commerce token expiring, renewing", map[string]any{"user_id": userID})

	renewed, renewErr := s.commerce.RenewAccessToken(ctx, stored.AccessToken)
	if renewErr == nil {
		metrics.TokenRenewalsTotal.Inc()
		return s.persist(ctx, userID, renewed)
	}
	if apperrors.IsCommerceUnavailable(renewErr) {
		return domain.CustomerToken{}, renewErr
	}

	// Renewal was rejected. Expected and recoverable: fall back to
	// re-authentication with the stored credentials.
	metrics.TokenRenewalFailTotal.Inc()
	s.logger.Debug(ctx, "token renewal rejected, falling back to re-authentication",
		map[string]any{"user_id": userID, "error": renewErr.Error()})

	return s.reauthenticate(ctx, userID)
}

func (s *TokenService) reauthenticate(ctx context.Context, userID string) (domain.CustomerToken, error) {
	creds, err := s.users.GetCredentials(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return domain.CustomerToken{}, err
		}
		metrics.ReauthRequiredTotal.Inc()
		return domain.CustomerToken{}, apperrors.ErrReauthRequired
	}
	if creds.Email == "" || creds.EncryptedPassword == "" {
		metrics.ReauthRequiredTotal.Inc()
		return domain.CustomerToken{}, apperrors.ErrReauthRequired
	}

	password, err := s.vault.Decrypt(creds.EncryptedPassword)
	if err != nil {
		metrics.ReauthRequiredTotal.Inc()
		s.logger.Warn(ctx, "stored credential unreadable, re-login required",
			map[string]any{"user_id": userID, "error": err.Error()})
		return domain.CustomerToken{}, apperrors.ErrReauthRequired
	}

	metrics.ReauthFallbacksTotal.Inc()

	fresh, err := s.commerce.CreateAccessToken(ctx, creds.Email, password)
	if err != nil {
		if apperrors.IsCommerceUnavailable(err) {
			return domain.CustomerToken{}, err
		}
		metrics.ReauthRequiredTotal.Inc()
		s.logger.Info(ctx, "re-authentication rejected, re-login required",
			map[string]any{"user_id": userID, "error": err.Error()})
		return domain.CustomerToken{}, apperrors.ErrReauthRequired
	}

	return s.persist(ctx, userID, fresh)
}

// persist writes the freshly issued token even when the caller has gone
// away: a minted token must not be lost to a cancelled request.
func (s *TokenService) persist(ctx context.Context, userID string, token domain.CustomerToken) (domain.CustomerToken, error) {
	writeCtx := context.WithoutCancel(ctx)
	if err := s.users.WriteToken(writeCtx, userID, token); err != nil {
		return domain.CustomerToken{}, err
	}
	s.cache.Set(ctx, userID, token, s.buffer)
	return token, nil
}
