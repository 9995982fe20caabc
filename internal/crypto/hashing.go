package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidHashFormat = errors.New("invalid hash format")

// Argon2Params defines the parameters for Argon2id
type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Params returns recommended parameters for Argon2id
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      64 * 1024, // 64MB
		Iterations:  3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (p Argon2Params) Validate() error {
	if p.Memory < 8*uint32(p.Parallelism) {
		return fmt.Errorf("argon2 memory must be at least 8*parallelism KiB, got %d", p.Memory)
	}
	if p.Iterations == 0 {
		return fmt.Errorf("argon2 iterations must be positive")
	}
	if p.Parallelism == 0 {
		return fmt.Errorf("argon2 parallelism must be positive")
	}
	if p.SaltLength < 8 {
		return fmt.Errorf("argon2 salt length must be at least 8 bytes, got %d", p.SaltLength)
	}
	if p.KeyLength < 16 {
		return fmt.Errorf("argon2 key length must be at least 16 bytes, got %d", p.KeyLength)
	}
	return nil
}

// PasswordHasher produces and verifies peppered Argon2id password hashes.
type PasswordHasher struct {
	pepper []byte
	params Argon2Params
}

func NewPasswordHasher(pepper []byte, params Argon2Params) (*PasswordHasher, error) {
	if isZeroPepper(pepper) {
		return nil, fmt.Errorf("pepper is uninitialized")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("validate Argon2Params: %w", err)
	}
	return &PasswordHasher{pepper: pepper, params: params}, nil
}

// Hash returns the PHC-style encoding $argon2id$v=19$m=..,t=..,p=..$salt$hash.
func (h *PasswordHasher) Hash(password string) (string, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey(
		h.peppered(password),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		h.params.KeyLength,
	)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		h.params.Memory,
		h.params.Iterations,
		h.params.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

// Verify reports whether password matches encoded. The comparison is constant time.
func (h *PasswordHasher) Verify(password, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return false, ErrInvalidHashFormat
	}

	versionPart := parts[2]
	if !strings.HasPrefix(versionPart, "v=") {
		return false, fmt.Errorf("%w: version", ErrInvalidHashFormat)
	}
	version, err := strconv.Atoi(versionPart[2:])
	if err != nil {
		return false, fmt.Errorf("%w: version number: %w", ErrInvalidHashFormat, err)
	}
	if version != argon2.Version {
		return false, fmt.Errorf("unsupported Argon2 version %d", version)
	}

	var memory, iterations uint32
	var parallelism uint8
	for _, pair := range strings.Split(parts[3], ",") {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return false, fmt.Errorf("%w: parameter %q", ErrInvalidHashFormat, pair)
		}
		value, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return false, fmt.Errorf("%w: parameter value: %w", ErrInvalidHashFormat, err)
		}
		switch key {
		case "m":
			memory = uint32(value)
		case "t":
			iterations = uint32(value)
		case "p":
			parallelism = uint8(value)
		default:
			return false, fmt.Errorf("%w: unknown parameter %s", ErrInvalidHashFormat, key)
		}
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %w", ErrInvalidHashFormat, err)
	}
	storedHash, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: hash: %w", ErrInvalidHashFormat, err)
	}

	computedHash := argon2.IDKey(
		h.peppered(password),
		salt,
		iterations,
		memory,
		parallelism,
		uint32(len(storedHash)),
	)

	return subtle.ConstantTimeCompare(computedHash, storedHash) == 1, nil
}

func (h *PasswordHasher) peppered(password string) []byte {
	out := make([]byte, 0, len(password)+len(h.pepper))
	out = append(out, password...)
	return append(out, h.pepper...)
}

func isZeroPepper(pepper []byte) bool {
	if len(pepper) == 0 {
		return true
	}
	for _, b := range pepper {
		if b != 0 {
			return false
		}
	}
	return true
}
