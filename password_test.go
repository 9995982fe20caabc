package carevault

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPepper = []byte("test-pepper-32-chars-for-testing")

func fastArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:      1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestAuthenticator(t *testing.T) (*Authenticator, *memoryStore) {
	t.Helper()
	store := newMemoryStore()
	auth, err := NewAuthenticator(store, store, testPepper, WithArgon2Params(fastArgon2Params()))
	require.NoError(t, err)
	return auth, store
}

func TestParsePepper(t *testing.T) {
	tests := []struct {
		name    string
		encoded string
		wantErr error
	}{
		{"hex", hex.EncodeToString(testPepper), nil},
		{"base64", base64.StdEncoding.EncodeToString(testPepper), nil},
		{"raw url base64", base64.RawURLEncoding.EncodeToString(testPepper), nil},
		{"empty", "  ", ErrInvalidConfiguration},
		{"too short", hex.EncodeToString([]byte("short")), ErrInvalidConfiguration},
		{"all zeros", hex.EncodeToString(make([]byte, PepperLength)), ErrUninitializedPepper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pepper, err := ParsePepper(tt.encoded)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testPepper, pepper)
		})
	}
}

func TestNewAuthenticator_Validation(t *testing.T) {
	store := newMemoryStore()

	_, err := NewAuthenticator(nil, store, testPepper)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewAuthenticator(store, store, []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)

	_, err = NewAuthenticator(store, store, make([]byte, PepperLength))
	assert.ErrorIs(t, err, ErrUninitializedPepper)

	bad := fastArgon2Params()
	bad.Iterations = 0
	_, err = NewAuthenticator(store, store, testPepper, WithArgon2Params(bad))
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestAuthenticator_Register(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuthenticator(t)

	user, err := auth.Register(ctx, " admin ", "admin123", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "admin", user.Username)
	assert.True(t, strings.HasPrefix(user.PasswordHash, "$argon2id$"))
	assert.NotContains(t, user.PasswordHash, "admin123")

	tests := []struct {
		name     string
		username string
		password string
		role     Role
	}{
		{"blank username", " ", "secret1", RoleDoctor},
		{"short password", "doc", "12345", RoleDoctor},
		{"unknown role", "janitor", "secret1", Role("janitor")},
		{"duplicate", "admin", "another1", RoleAdmin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Register(ctx, tt.username, tt.password, tt.role)
			assert.True(t, IsValidationError(err))
		})
	}

	assert.Empty(t, store.actions(), "registration is not a session event")
}

func TestAuthenticator_Authenticate(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuthenticator(t)

	registered, err := auth.Register(ctx, "doctor", "doc123", RoleDoctor)
	require.NoError(t, err)

	p, err := auth.Authenticate(ctx, "doctor", "doc123")
	require.NoError(t, err)
	assert.Equal(t, Principal{UserID: registered.ID, Role: RoleDoctor}, p)

	last := store.lastLog()
	assert.Equal(t, ActionLogin, last.Action)
	assert.Equal(t, "User doctor logged in", last.Details)
	assert.Equal(t, registered.ID, last.UserID)

	failures := []struct {
		name     string
		username string
		password string
	}{
		{"wrong password", "doctor", "doc124"},
		{"unknown user", "nurse", "doc123"},
		{"empty password", "doctor", ""},
	}
	for _, tt := range failures {
		t.Run(tt.name, func(t *testing.T) {
			_, err := auth.Authenticate(ctx, tt.username, tt.password)
			assert.ErrorIs(t, err, ErrAuthenticationFailed)
			assert.True(t, IsAuthError(err))
		})
	}
	assert.Len(t, store.actions(), 1, "failed logins are not audited as logins")
}

func TestAuthenticator_AuditFailure(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuthenticator(t)

	_, err := auth.Register(ctx, "reception", "rec123", RoleReceptionist)
	require.NoError(t, err)

	store.failAudit = errors.New("disk full")
	_, err = auth.Authenticate(ctx, "reception", "rec123")
	assert.ErrorContains(t, err, "disk full")
}

func TestAuthenticator_Logout(t *testing.T) {
	ctx := context.Background()
	auth, store := newTestAuthenticator(t)

	p := Principal{UserID: 7, Role: RoleReceptionist}
	require.NoError(t, auth.Logout(ctx, p, "reception"))

	last := store.lastLog()
	assert.Equal(t, ActionLogout, last.Action)
	assert.Equal(t, "User reception logged out", last.Details)
	assert.Equal(t, RoleReceptionist, last.Role)
}
