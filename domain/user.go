package domain

import "time"

// Provider identifies how a user authenticates. "local" is email+password;
// the rest are external social identity providers.
type Provider string

const (
	ProviderLocal  Provider = "local"
	ProviderGoogle Provider = "google"
	ProviderApple  Provider = "apple"
	ProviderKakao  Provider = "kakao"
)

// KnownProvider reports whether p is one of the supported providers.
func KnownProvider(p Provider) bool {
	switch p {
	case ProviderLocal, ProviderGoogle, ProviderApple, ProviderKakao:
		return true
	}
	return false
}

// User is a shopper account local to this service. Product, order and
// customer data live in Shopify; we keep only the linkage (customer id),
// the cached customer access token, and the encrypted fallback password
// used to mint a new token when renewal fails.
//
// Email is unique per (email, provider) pair, not globally: the same
// address may exist once per provider.
type User struct {
	ID             string   `bson:"_id,omitempty" json:"id"`
	Provider       Provider `bson:"provider" json:"provider"`
	ProviderUserID string   `bson:"provider_user_id,omitempty" json:"-"`
	Email          string   `bson:"email" json:"email"`
	FirstName      string   `bson:"first_name,omitempty" json:"first_name,omitempty"`
	LastName       string   `bson:"last_name,omitempty" json:"last_name,omitempty"`

	// PasswordHash is set only for the local provider (bcrypt).
	PasswordHash string `bson:"password_hash,omitempty" json:"-"`

	// Shopify linkage. ShopifyCustomerID is platform-assigned, set once at
	// first provisioning and never changed. The token pair is written
	// together by a single repository call; if ShopifyAccessToken is
	// non-empty, ShopifyTokenExpiresAt is non-nil.
	ShopifyCustomerID     string     `bson:"shopify_customer_id,omitempty" json:"shopify_customer_id,omitempty"`
	ShopifyAccessToken    string     `bson:"shopify_access_token,omitempty" json:"-"`
	ShopifyTokenExpiresAt *time.Time `bson:"shopify_token_expires_at,omitempty" json:"-"`

	// ShopifyPasswordEnc holds the vault-encrypted fallback password
	// ("hexIV:hexCiphertext"). Only the token lifecycle manager reads it.
	ShopifyPasswordEnc string `bson:"shopify_password_enc,omitempty" json:"-"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
