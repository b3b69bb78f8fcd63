package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the token lifecycle. These are terminal for the
// manager; the HTTP boundary maps them to user-facing statuses.
var (
	// ErrNoToken means no cached commerce token exists for the user. The
	// caller must force a full social re-login. Not retryable.
	ErrNoToken = errors.New("no commerce access token stored for user")

	// ErrReauthRequired means both renewal and the stored-credential
	// fallback failed (or no credentials were stored). The user must log
	// in again through a provider.
	ErrReauthRequired = errors.New("commerce re-authentication required")

	// ErrUserNotFound is returned by repositories when no user matches.
	ErrUserNotFound = errors.New("user not found")

	// ErrUserExists is returned on a duplicate (email, provider) insert.
	ErrUserExists = errors.New("user with this email and provider already exists")

	// ErrOrphanedCustomer means the commerce customer was created remotely
	// but the local user row could not be persisted. No automatic rollback
	// is attempted; this needs operational attention.
	ErrOrphanedCustomer = errors.New("commerce customer created but local user persistence failed")
)

// CommerceAuthError is returned when the commerce platform rejects a
// credential or token: invalid password, locked account, expired token, or
// any user-error list in a GraphQL payload. It triggers the reauth fallback.
type CommerceAuthError struct {
	Op       string   // operation that failed, e.g. "customerAccessTokenCreate"
	Messages []string // user-facing error strings reported by the platform
}

func (e *CommerceAuthError) Error() string {
	return fmt.Sprintf("shopify %s rejected: %s", e.Op, strings.Join(e.Messages, ", "))
}

func NewCommerceAuthError(op string, messages ...string) *CommerceAuthError {
	return &CommerceAuthError{Op: op, Messages: messages}
}

// CommerceUnavailableError wraps transport or platform-side failures:
// network errors, non-2xx responses, top-level GraphQL errors. Retryable by
// the caller with backoff. It must never trigger the reauth fallback.
type CommerceUnavailableError struct {
	Op  string
	Err error
}

func (e *CommerceUnavailableError) Error() string {
	return fmt.Sprintf("shopify %s unavailable: %v", e.Op, e.Err)
}

func (e *CommerceUnavailableError) Unwrap() error { return e.Err }

func NewCommerceUnavailableError(op string, err error) *CommerceUnavailableError {
	return &CommerceUnavailableError{Op: op, Err: err}
}

// DecryptionError means a stored credential blob could not be decrypted:
// malformed token, wrong IV length, or a blob written under a different
// derived key (secret rotation). The lifecycle manager escalates it to
// ErrReauthRequired.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("credential decryption failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("credential decryption failed: %s", e.Reason)
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func NewDecryptionError(reason string, err error) *DecryptionError {
	return &DecryptionError{Reason: reason, Err: err}
}

// ConfigurationError means a required secret or setting is absent. Never
// silently defaulted; fatal at startup or surfaced as a 500 at request time.
type ConfigurationError struct {
	Key string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("missing required configuration: %s", e.Key)
}

func NewConfigurationError(key string) *ConfigurationError {
	return &ConfigurationError{Key: key}
}

// IsCommerceUnavailable reports whether err is (or wraps) a
// CommerceUnavailableError. The lifecycle manager uses this to distinguish
// "platform is down" from "credential is bad" before falling through to the
// stored-password path.
func IsCommerceUnavailable(err error) bool {
	var ue *CommerceUnavailableError
	return errors.As(err, &ue)
}
