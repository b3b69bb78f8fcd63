package federation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/glowmart/storefront-bff/domain"
)

const (
	AppleAuthURL  = "https://appleid.apple.com/auth/authorize"
	AppleTokenURL = "https://appleid.apple.com/auth/token"
)

// AppleProvider implements OAuth2Provider for Sign in with Apple.
//
// The configured client secret is expected to be a pre-generated client
// secret JWT. Apple has no user info endpoint; identity comes from the ID
// token returned by the code exchange. Name and email are only guaranteed on
// the user's first authorization.
type AppleProvider struct {
	*BaseProvider
}

func NewAppleProvider(cfg ProviderConfig) *AppleProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"name", "email"}
	}
	endpoint := oauth2.Endpoint{
		AuthURL:  AppleAuthURL,
		TokenURL: AppleTokenURL,
		// Apple expects client_secret_post.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return &AppleProvider{
		BaseProvider: NewBaseProvider(domain.ProviderApple, cfg, endpoint),
	}
}

// GetAuthCodeURL appends response_mode=form_post, which Apple requires when
// the name or email scope is requested.
func (a *AppleProvider) GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	authCodeURL, err := a.BaseProvider.GetAuthCodeURL(state, redirectURL, opts...)
	if err != nil {
		return "", err
	}
	parsed, err := url.Parse(authCodeURL)
	if err != nil {
		return "", fmt.Errorf("apple: failed to parse auth code URL: %w", err)
	}
	q := parsed.Query()
	if q.Get("response_mode") == "" {
		q.Set("response_mode", "form_post")
	}
	parsed.RawQuery = q.Encode()
	return parsed.String(), nil
}

// FetchUserInfo parses the ID token from the token response. The exchange
// itself happened over TLS against Apple's token endpoint, so the claims are
// read without re-verifying the signature.
func (a *AppleProvider) FetchUserInfo(_ context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	idTokenRaw, ok := token.Extra("id_token").(string)
	if !ok || idTokenRaw == "" {
		return nil, fmt.Errorf("apple: ID token not found in token response")
	}

	parts := strings.Split(idTokenRaw, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("apple: invalid ID token format")
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("apple: failed to decode ID token payload: %w", err)
	}

	var claims struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("apple: failed to unmarshal ID token claims: %w", err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("apple: ID token missing sub claim")
	}

	var rawData map[string]any
	_ = json.Unmarshal(payload, &rawData)

	return &ExternalUserInfo{
		Provider:       domain.ProviderApple,
		ProviderUserID: claims.Sub,
		Email:          claims.Email,
		RawData:        rawData,
	}, nil
}

var _ OAuth2Provider = (*AppleProvider)(nil)
