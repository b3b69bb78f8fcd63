package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/glowmart/storefront-bff/domain"
	apperrors "github.com/glowmart/storefront-bff/errors"
)

const (
	sessionTokenAccess  = "access"
	sessionTokenRefresh = "refresh"
)

var (
	ErrInvalidSessionToken = errors.New("invalid session token")
	ErrWrongTokenType      = errors.New("wrong session token type")
)

// SessionClaims are the claims carried by the session JWTs this service
// issues. Subject is the local user id.
type SessionClaims struct {
	Provider  string `json:"prv,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenPair is an access/refresh session token pair for the HTTP surface.
// These tokens authenticate the user to this service only; they are distinct
// from the commerce access token managed by TokenService.
type TokenPair struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// SessionService issues and verifies the session JWT pair.
type SessionService struct {
	signer     *TokenSigner
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewSessionService(secret string, accessTTL, refreshTTL time.Duration) (*SessionService, error) {
	if secret == "" {
		return nil, apperrors.NewConfigurationError("JWT_SECRET")
	}

	signer := NewTokenSigner()
	signer.AddKeySigner(secret)

	return &SessionService{
		signer:     signer,
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}, nil
}

// IssueTokens mints a fresh access/refresh pair for the user.
func (s *SessionService) IssueTokens(user *domain.User) (*TokenPair, error) {
	now := s.now()

	accessToken, err := s.sign(user, sessionTokenAccess, now, s.accessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.sign(user, sessionTokenRefresh, now, s.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    now.Add(s.accessTTL),
	}, nil
}

func (s *SessionService) sign(user *domain.User, tokenType string, now time.Time, ttl time.Duration) (string, error) {
	claims := SessionClaims{
		Provider:  string(user.Provider),
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return s.signer.Sign(claims, "")
}

// VerifyAccessToken validates an access token and returns the subject user
// id.
func (s *SessionService) VerifyAccessToken(tokenString string) (string, error) {
	return s.verify(tokenString, sessionTokenAccess)
}

// VerifyRefreshToken validates a refresh token and returns the subject user
// id.
func (s *SessionService) VerifyRefreshToken(tokenString string) (string, error) {
	return s.verify(tokenString, sessionTokenRefresh)
}

func (s *SessionService) verify(tokenString, wantType string) (string, error) {
	claims := &SessionClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return "", ErrInvalidSessionToken
	}
	if claims.TokenType != wantType {
		return "", ErrWrongTokenType
	}
	return claims.Subject, nil
}
