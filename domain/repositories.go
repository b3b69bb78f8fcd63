package domain

import "context"

// UserRepository defines persistence for users and their cached commerce
// tokens. Implementations must make WriteToken atomic: both token fields
// are written in a single update, or neither is.
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmailAndProvider(ctx context.Context, email string, provider Provider) (*User, error)

	// GetTokenInfo returns the cached token pair for the user. A user with
	// no stored token yields a zero-valued CustomerToken, not an error.
	GetTokenInfo(ctx context.Context, userID string) (CustomerToken, error)

	// GetCredentials returns the stored email and encrypted fallback
	// password used for re-authentication.
	GetCredentials(ctx context.Context, userID string) (Credentials, error)

	// WriteToken persists a fresh token pair for the user. Last write wins:
	// concurrent refreshes for the same user may both call this and either
	// result is a usable, freshly issued token.
	WriteToken(ctx context.Context, userID string, token CustomerToken) error
}
