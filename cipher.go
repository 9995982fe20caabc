package carevault

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hengadev/carevault/internal/crypto"
)

// Cipher encrypts and decrypts individual patient field values with the single
// process-wide key. The key never leaves this type.
//
// A Cipher is immutable after construction and safe for concurrent use.
type Cipher struct {
	fields *crypto.FieldEncryption
}

// NewCipher builds a Cipher from raw key material, which must be KeyLength bytes.
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeyLength {
		return nil, fmt.Errorf("%w: key must be exactly %d bytes, got %d", ErrInvalidKey, KeyLength, len(key))
	}
	fields, err := crypto.NewFieldEncryption(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidKey, err)
	}
	return &Cipher{fields: fields}, nil
}

// NewCipherFromString parses an encoded key (see ParseKey) and builds a Cipher.
func NewCipherFromString(encoded string) (*Cipher, error) {
	key, err := ParseKey(encoded)
	if err != nil {
		return nil, err
	}
	return NewCipher(key)
}

// NewCipherFromSources resolves ENCRYPTION_KEY from the given sources, in order,
// and builds a Cipher. A missing key is reported as ErrMissingEncryptionKey; callers
// are expected to treat that as fatal.
func NewCipherFromSources(ctx context.Context, sources ...SecretSource) (*Cipher, error) {
	encoded, err := ResolveSecret(ctx, EncryptionKeyName, sources...)
	if err != nil {
		return nil, err
	}
	return NewCipherFromString(encoded)
}

// Encrypt seals plaintext with authenticated encryption under a fresh random nonce,
// so equal inputs give different ciphertexts. The empty string maps to itself.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	token, err := c.fields.Seal([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return token, nil
}

// Decrypt opens ciphertext for display. The empty string maps to itself; corrupt,
// tampered or foreign ciphertext yields DecryptionErrorMarker instead of an error.
func (c *Cipher) Decrypt(ciphertext string) string {
	plaintext, err := c.Open(ciphertext)
	if err != nil {
		return DecryptionErrorMarker
	}
	return plaintext
}

// Open is the strict form of Decrypt: failures are returned as ErrDecryptionFailed.
func (c *Cipher) Open(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	plaintext, err := c.fields.Open(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrDecryptionFailed, err)
	}
	return string(plaintext), nil
}

// ParseKey decodes an ENCRYPTION_KEY value. Accepted encodings are 64 hex characters
// or base64 (standard or url-safe, padded or not) of exactly KeyLength bytes, which
// covers Fernet-style keys.
func ParseKey(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, ErrMissingEncryptionKey
	}
	key, ok := decodeFixed(encoded, KeyLength)
	if !ok {
		return nil, fmt.Errorf("%w: expected %d bytes encoded as hex or base64", ErrInvalidKey, KeyLength)
	}
	return key, nil
}

// decodeFixed decodes hex or any base64 variant into exactly size bytes.
func decodeFixed(encoded string, size int) ([]byte, bool) {
	if len(encoded) == hex.EncodedLen(size) {
		if b, err := hex.DecodeString(encoded); err == nil {
			return b, true
		}
	}

	for _, enc := range []*base64.Encoding{
		base64.URLEncoding,
		base64.RawURLEncoding,
		base64.StdEncoding,
		base64.RawStdEncoding,
	} {
		b, err := enc.DecodeString(encoded)
		if err == nil && len(b) == size {
			return b, true
		}
	}
	return nil, false
}
