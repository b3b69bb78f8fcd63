package federation

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/glowmart/storefront-bff/domain"
)

// Service holds the registered OAuth2 providers and drives the redirect and
// callback legs of the login flow.
type Service struct {
	registry        map[domain.Provider]OAuth2Provider
	callbackBaseURL string
}

// NewService creates a federation Service. callbackBaseURL is the base URL
// providers redirect back to, e.g. "https://bff.example.com/auth"; the
// provider name and "/callback" are appended per provider.
func NewService(callbackBaseURL string) *Service {
	return &Service{
		registry:        make(map[domain.Provider]OAuth2Provider),
		callbackBaseURL: strings.TrimSuffix(callbackBaseURL, "/"),
	}
}

// RegisterProvider adds a provider to the registry. Providers with empty
// client credentials should not be registered.
func (s *Service) RegisterProvider(provider OAuth2Provider) {
	s.registry[provider.Name()] = provider
}

func (s *Service) GetProvider(name domain.Provider) (OAuth2Provider, error) {
	provider, ok := s.registry[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return provider, nil
}

// GenerateAuthState generates an unguessable state parameter for CSRF
// protection of the authorization flow.
func (s *Service) GenerateAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

// GetAuthorizationURL constructs the URL to redirect the user to for
// authentication with the external provider.
func (s *Service) GetAuthorizationURL(name domain.Provider, state string, opts ...oauth2.AuthCodeOption) (string, error) {
	provider, err := s.GetProvider(name)
	if err != nil {
		return "", err
	}
	return provider.GetAuthCodeURL(state, s.RedirectURLFor(name), opts...)
}

// HandleCallback validates the returned state against the one stored at
// redirect time, exchanges the authorization code and fetches the user's
// profile from the provider.
func (s *Service) HandleCallback(
	ctx context.Context,
	name domain.Provider,
	queryState, sessionState, code string,
	opts ...oauth2.AuthCodeOption,
) (*ExternalUserInfo, *oauth2.Token, error) {
	if queryState == "" || queryState != sessionState {
		return nil, nil, ErrInvalidAuthState
	}

	provider, err := s.GetProvider(name)
	if err != nil {
		return nil, nil, err
	}

	token, err := provider.ExchangeCode(ctx, s.RedirectURLFor(name), code, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrExchangeCodeFailed, err)
	}

	userInfo, err := provider.FetchUserInfo(ctx, token)
	if err != nil {
		return nil, token, fmt.Errorf("%w: %v", ErrFetchUserInfoFailed, err)
	}

	return userInfo, token, nil
}

// RedirectURLFor constructs the callback URL for a given provider,
// e.g. https://bff.example.com/auth/google/callback.
func (s *Service) RedirectURLFor(name domain.Provider) string {
	return fmt.Sprintf("%s/%s/callback", s.callbackBaseURL, url.PathEscape(string(name)))
}
