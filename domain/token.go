package domain

import "time"

// CustomerToken is a Shopify customer access token together with its
// absolute expiry. ExpiresAt is the authoritative source of validity; a
// token must never be used without an explicit expiry check.
type CustomerToken struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Valid reports whether the token is usable at instant now, applying the
// given safety buffer: a token within buffer of its expiry is treated as
// already expired to absorb clock skew and in-flight request latency.
func (t CustomerToken) Valid(now time.Time, buffer time.Duration) bool {
	if t.AccessToken == "" || t.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(buffer).Before(t.ExpiresAt)
}

// Credentials is the stored material for the password re-authentication
// fallback: the user's email and the vault-encrypted fallback password.
type Credentials struct {
	Email             string
	EncryptedPassword string
}
