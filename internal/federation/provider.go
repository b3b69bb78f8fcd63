package federation

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/glowmart/storefront-bff/domain"
)

// ExternalUserInfo holds standardized user information retrieved from an
// external OAuth2 provider.
type ExternalUserInfo struct {
	Provider       domain.Provider
	ProviderUserID string // Unique ID of the user within the external provider (e.g. Google's 'sub')
	Email          string
	FirstName      string
	LastName       string
	PictureURL     string
	RawData        map[string]any
}

// ProviderConfig carries the static OAuth2 client configuration for a single
// provider, as loaded from the server configuration.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// OAuth2Provider defines the interface for an external OAuth2 identity provider.
// Implementations handle provider-specific endpoints and user info shapes.
type OAuth2Provider interface {
	// Name returns the provider key (e.g. domain.ProviderGoogle).
	Name() domain.Provider

	// GetOAuth2Config returns the oauth2.Config for this provider, bound to
	// the given redirect URL.
	GetOAuth2Config(redirectURL string) (*oauth2.Config, error)

	// GetAuthCodeURL generates the authorization URL the user should be
	// redirected to. state is the CSRF token for this flow.
	GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error)

	// ExchangeCode exchanges an authorization code for an OAuth2 token.
	ExchangeCode(ctx context.Context, redirectURL string, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)

	// FetchUserInfo uses an access token to retrieve user information from
	// the provider and normalizes it into ExternalUserInfo.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error)
}

// BaseProvider provides the common OAuth2 plumbing. Specific providers embed
// it and supply their endpoints and FetchUserInfo.
type BaseProvider struct {
	name     domain.Provider
	config   ProviderConfig
	endpoint oauth2.Endpoint
}

func NewBaseProvider(name domain.Provider, cfg ProviderConfig, endpoint oauth2.Endpoint) *BaseProvider {
	return &BaseProvider{name: name, config: cfg, endpoint: endpoint}
}

func (b *BaseProvider) Name() domain.Provider {
	return b.name
}

func (b *BaseProvider) GetOAuth2Config(redirectURL string) (*oauth2.Config, error) {
	if b.config.ClientID == "" || b.config.ClientSecret == "" {
		return nil, ErrProviderMisconfigured
	}
	return &oauth2.Config{
		ClientID:     b.config.ClientID,
		ClientSecret: b.config.ClientSecret,
		RedirectURL:  redirectURL,
		Scopes:       b.config.Scopes,
		Endpoint:     b.endpoint,
	}, nil
}

func (b *BaseProvider) GetAuthCodeURL(state, redirectURL string, opts ...oauth2.AuthCodeOption) (string, error) {
	conf, err := b.GetOAuth2Config(redirectURL)
	if err != nil {
		return "", err
	}
	return conf.AuthCodeURL(state, opts...), nil
}

func (b *BaseProvider) ExchangeCode(ctx context.Context, redirectURL string, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error) {
	conf, err := b.GetOAuth2Config(redirectURL)
	if err != nil {
		return nil, err
	}
	return conf.Exchange(ctx, code, opts...)
}

// httpClient returns an *http.Client that authenticates requests to the
// provider's API with the given token.
func (b *BaseProvider) httpClient(ctx context.Context, token *oauth2.Token) *http.Client {
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
}
