package carevault

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/hengadev/carevault/internal/crypto"
)

// GenerateEncryptionKey returns KeyLength cryptographically random bytes.
func GenerateEncryptionKey() ([]byte, error) {
	key, err := crypto.GenerateKey(KeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return key, nil
}

// GenerateStringEncryptionKey returns a fresh key encoded as url-safe base64, ready
// to be stored as ENCRYPTION_KEY.
func GenerateStringEncryptionKey() (string, error) {
	key, err := GenerateEncryptionKey()
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(key), nil
}

// GeneratePepper returns a fresh PASSWORD_PEPPER value: PepperLength random bytes,
// hex encoded.
func GeneratePepper() (string, error) {
	pepper, err := crypto.GenerateKey(PepperLength)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}
	return hex.EncodeToString(pepper), nil
}
