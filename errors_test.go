package carevault

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	sentinels := []error{
		ErrMissingEncryptionKey,
		ErrInvalidKey,
		ErrSecretStorageUnavailable,
		ErrSecretNotFound,
		ErrInvalidConfiguration,
		ErrEncryptionFailed,
		ErrDecryptionFailed,
		ErrAccessDenied,
		ErrAuthenticationFailed,
		ErrPatientNotFound,
		ErrValidation,
		ErrDatabaseUnavailable,
	}

	for _, sentinel := range sentinels {
		t.Run(sentinel.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("context: %w", sentinel)
			assert.ErrorIs(t, wrapped, sentinel)
		})
	}
}

func TestErrorConstructors(t *testing.T) {
	err := NewAccessDeniedError(RoleDoctor, ActionDeletePatient)
	assert.ErrorIs(t, err, ErrAccessDenied)
	assert.Contains(t, err.Error(), "doctor")
	assert.Contains(t, err.Error(), "DELETE_PATIENT")

	err = NewPatientNotFoundError(12)
	assert.ErrorIs(t, err, ErrPatientNotFound)
	assert.Contains(t, err.Error(), "12")

	err = NewFieldValidationError(FieldContact, "is required")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation failed: contact is required", err.Error())
}

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		retryable     bool
		configuration bool
		auth          bool
		validation    bool
	}{
		{"secret storage", fmt.Errorf("vault: %w", ErrSecretStorageUnavailable), true, false, false, false},
		{"database", fmt.Errorf("ping: %w", ErrDatabaseUnavailable), true, false, false, false},
		{"missing key", ErrMissingEncryptionKey, false, true, false, false},
		{"invalid key", ErrInvalidKey, false, true, false, false},
		{"pepper", ErrUninitializedPepper, false, true, false, false},
		{"access", NewAccessDeniedError("x", ActionViewLogs), false, false, true, false},
		{"login", ErrAuthenticationFailed, false, false, true, false},
		{"validation", NewFieldValidationError(FieldName, "is required"), false, false, false, true},
		{"other", errors.New("boom"), false, false, false, false},
		{"nil", nil, false, false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryableError(tt.err))
			assert.Equal(t, tt.configuration, IsConfigurationError(tt.err))
			assert.Equal(t, tt.auth, IsAuthError(tt.err))
			assert.Equal(t, tt.validation, IsValidationError(tt.err))
		})
	}
}
