package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/oauth2"

	"github.com/glowmart/storefront-bff/domain"
)

const (
	KakaoAuthURL  = "https://kauth.kakao.com/oauth/authorize"
	KakaoTokenURL = "https://kauth.kakao.com/oauth/token"
)

// KakaoUserInfoEndpoint is a var so tests can point it at a mock server.
var KakaoUserInfoEndpoint = "https://kapi.kakao.com/v2/user/me"

// KakaoProvider implements OAuth2Provider for Kakao Login.
type KakaoProvider struct {
	*BaseProvider
}

func NewKakaoProvider(cfg ProviderConfig) *KakaoProvider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = []string{"account_email", "profile_nickname"}
	}
	endpoint := oauth2.Endpoint{
		AuthURL:  KakaoAuthURL,
		TokenURL: KakaoTokenURL,
		// Kakao rejects HTTP basic auth on the token endpoint.
		AuthStyle: oauth2.AuthStyleInParams,
	}
	return &KakaoProvider{
		BaseProvider: NewBaseProvider(domain.ProviderKakao, cfg, endpoint),
	}
}

// FetchUserInfo queries the Kakao user API. Kakao numeric user IDs are
// normalized to their decimal string form.
func (k *KakaoProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*ExternalUserInfo, error) {
	client := k.httpClient(ctx, token)
	resp, err := client.Get(KakaoUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("kakao: failed to get user info: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("kakao: failed to read user info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kakao: user info request failed: status %d, body: %s", resp.StatusCode, string(rawBody))
	}

	var raw struct {
		ID           int64 `json:"id"`
		KakaoAccount struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname        string `json:"nickname"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.Unmarshal(rawBody, &raw); err != nil {
		return nil, fmt.Errorf("kakao: failed to unmarshal user info: %w", err)
	}
	if raw.ID == 0 {
		return nil, fmt.Errorf("kakao: user info response missing id")
	}

	var rawData map[string]any
	_ = json.Unmarshal(rawBody, &rawData)

	return &ExternalUserInfo{
		Provider:       domain.ProviderKakao,
		ProviderUserID: strconv.FormatInt(raw.ID, 10),
		Email:          raw.KakaoAccount.Email,
		// Kakao exposes a single nickname rather than a split name.
		FirstName:  raw.KakaoAccount.Profile.Nickname,
		PictureURL: raw.KakaoAccount.Profile.ProfileImageURL,
		RawData:    rawData,
	}, nil
}

var _ OAuth2Provider = (*KakaoProvider)(nil)
