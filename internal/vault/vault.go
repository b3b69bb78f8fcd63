package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	apperrors "github.com/glowmart/storefront-bff/errors"
)

// Vault reversibly encrypts the Shopify fallback password so the token
// lifecycle manager can re-authenticate without user interaction. Storing a
// reversible credential is a deliberate trade-off: it is what makes silent
// re-login possible. Do not replace this with a one-way hash.
//
// The AES-256 key is SHA-256 of the server secret, derived once at
// construction and immutable afterwards. Rotating the server secret
// invalidates every stored blob; that is a known operational constraint.
type Vault struct {
	key []byte
}

// New derives the encryption key from the server secret. An empty secret is
// a deployment error, not something to default.
func New(serverSecret string) (*Vault, error) {
	if serverSecret == "" {
		return nil, apperrors.NewConfigurationError("JWT_SECRET")
	}
	sum := sha256.Sum256([]byte(serverSecret))
	return &Vault{key: sum[:]}, nil
}

// Encrypt encrypts plaintext with AES-256-CBC under a fresh random IV and
// returns "hexIV:hexCiphertext". A new IV is drawn on every call; reusing
// one would break CBC confidentiality.
func (v *Vault) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ct := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ct, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ct), nil
}

// Decrypt reverses Encrypt. Any malformed token, wrong IV length, or blob
// produced under a different derived key yields a DecryptionError.
func (v *Vault) Decrypt(token string) (string, error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", apperrors.NewDecryptionError("malformed token, expected hexIV:hexCiphertext", nil)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", apperrors.NewDecryptionError("invalid iv encoding", err)
	}
	if len(iv) != aes.BlockSize {
		return "", apperrors.NewDecryptionError("wrong iv length", nil)
	}

	ct, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", apperrors.NewDecryptionError("invalid ciphertext encoding", err)
	}
	if len(ct) == 0 || len(ct)%aes.BlockSize != 0 {
		return "", apperrors.NewDecryptionError("ciphertext length not a block multiple", nil)
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	pt := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(pt, ct)

	unpadded, err := pkcs7Unpad(pt, aes.BlockSize)
	if err != nil {
		// Bad padding is what a wrong key most commonly looks like.
		return "", apperrors.NewDecryptionError("invalid padding (wrong key or corrupted blob)", err)
	}
	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, fmt.Errorf("invalid padding byte %d", n)
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
