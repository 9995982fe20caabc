package crypto

import (
	"crypto/rand"
	"fmt"
	"io"
)

// GenerateKey returns size bytes from the system CSPRNG.
func GenerateKey(size int) ([]byte, error) {
	key := make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
