package services

import (
	"context"

	"github.com/glowmart/storefront-bff/domain"
	"github.com/glowmart/storefront-bff/internal/shopify"
)

// PasswordHasher hashes and verifies local account passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
}

// CommerceAPI is the slice of the commerce platform client the services
// depend on. *shopify.Client satisfies it.
type CommerceAPI interface {
	// CreateCustomer provisions a customer account, resolving duplicate
	// emails to the existing customer instead of failing.
	CreateCustomer(ctx context.Context, email, password, firstName, lastName string) (*shopify.ProvisionedCustomer, error)

	// CreateAccessToken authenticates with email and password and mints a
	// fresh customer access token.
	CreateAccessToken(ctx context.Context, email, password string) (domain.CustomerToken, error)

	// RenewAccessToken exchanges a still-renewable token for a fresh one.
	RenewAccessToken(ctx context.Context, accessToken string) (domain.CustomerToken, error)
}

// CredentialVault encrypts and decrypts the stored fallback password.
type CredentialVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encrypted string) (string, error)
}
