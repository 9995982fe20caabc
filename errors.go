package carevault

import (
	"errors"
	"fmt"
)

var (
	// Key provisioning errors
	ErrMissingEncryptionKey     = errors.New("encryption key not found")
	ErrInvalidKey               = errors.New("invalid encryption key")
	ErrSecretStorageUnavailable = errors.New("secret storage unavailable")
	ErrSecretNotFound           = errors.New("secret not found")
	ErrInvalidConfiguration     = errors.New("invalid configuration")

	// Crypto errors
	ErrEncryptionFailed    = errors.New("encryption failed")
	ErrDecryptionFailed    = errors.New("decryption failed")
	ErrUninitializedPepper = errors.New("pepper value appears to be uninitialized (all zeros)")

	// Access errors
	ErrAccessDenied         = errors.New("access denied")
	ErrAuthenticationFailed = errors.New("authentication failed")

	// Record errors
	ErrPatientNotFound     = errors.New("patient not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrValidation          = errors.New("validation failed")
	ErrDatabaseUnavailable = errors.New("database unavailable")
)

func NewAccessDeniedError(role Role, action Action) error {
	return fmt.Errorf("%w: role '%s' may not perform %s", ErrAccessDenied, role, action)
}

func NewPatientNotFoundError(id int64) error {
	return fmt.Errorf("%w: id %d", ErrPatientNotFound, id)
}

func NewFieldValidationError(field Field, reason string) error {
	return fmt.Errorf("%w: %s %s", ErrValidation, field, reason)
}

// IsRetryableError returns true if the error represents a transient failure that might succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrSecretStorageUnavailable) ||
		errors.Is(err, ErrDatabaseUnavailable)
}

// IsConfigurationError returns true if the error represents a configuration problem.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrInvalidConfiguration) ||
		errors.Is(err, ErrMissingEncryptionKey) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrUninitializedPepper)
}

// IsAuthError returns true if the error is an authentication or authorization refusal.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed) ||
		errors.Is(err, ErrAccessDenied)
}

// IsValidationError returns true if the error represents rejected caller input.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrValidation)
}
