package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	googleOAuth2 "golang.org/x/oauth2/google"

	"github.com/glowmart/storefront-bff/domain"
)

// GoogleUserInfoEndpoint is a var so tests can point it at a mock server.
var GoogleUserInfoEndpoint = "https://www.googleapis.com/oauth2/v3/userinfo"

// GoogleProvider implements OAuth2Provider for Google.
type GoogleProvider struct {
	*BaseProvider
}

func NewGoogleProvider(cfg ProviderConfig) *GoogleProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"openid", "profile", "email"}
	}
	return &GoogleProvider{
		BaseProvider: NewBaseProvider(domain.ProviderGoogle, cfg, googleOAuth2.Endpoint),
	}
}

func (g *GoogleProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	client := g.httpClient(ctx, token)
	resp, err := client.Get(GoogleUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("google: failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("google: failed to read user info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google: user info request failed: status %d, body: %s", resp.StatusCode, string(rawBody))
	}

	var raw struct {
		Sub           string `json:"sub"`
		Name          string `json:"name"`
		GivenName     string `json:"given_name"`
		FamilyName    string `json:"family_name"`
		Picture       string `json:"picture"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
	}
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return nil, fmt.Errorf("google: failed to unmarshal user info: %w", err)
	}

	var rawData map[string]any
	_ = json.Unmarshal(rawBody, &rawData)

	return &ExternalUserInfo{
		Provider:       domain.ProviderGoogle,
		ProviderUserID: raw.Sub,
		Email:          raw.Email,
		FirstName:      raw.GivenName,
		LastName:       raw.FamilyName,
		PictureURL:     raw.Picture,
		RawData:        rawData,
	}, nil
}

var _ OAuth2Provider = (*GoogleProvider)(nil)
