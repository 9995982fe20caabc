package httpapi

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hengadev/carevault"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestNewTokenIssuer(t *testing.T) {
	_, err := NewTokenIssuer("short", time.Hour)
	assert.ErrorIs(t, err, carevault.ErrInvalidConfiguration)

	_, err = NewTokenIssuer(testSecret, 0)
	assert.ErrorIs(t, err, carevault.ErrInvalidConfiguration)

	ti, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, ti.TTL())
}

func TestTokenIssuer_RoundTrip(t *testing.T) {
	ti, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	want := Session{
		Principal: carevault.Principal{UserID: 42, Role: carevault.RoleDoctor},
		Username:  "doctor",
	}
	token, err := ti.Issue(want)
	require.NoError(t, err)

	got, err := ti.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestTokenIssuer_Rejects(t *testing.T) {
	issued := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	ti, err := NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)
	ti.now = func() time.Time { return issued }

	session := Session{Principal: carevault.Principal{UserID: 1, Role: carevault.RoleAdmin}, Username: "admin"}
	valid, err := ti.Issue(session)
	require.NoError(t, err)

	other, err := NewTokenIssuer("another-secret-that-is-32-bytes!", time.Hour)
	require.NoError(t, err)
	other.now = ti.now
	foreign, err := other.Issue(session)
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
		Role: "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   "not-a-number",
			ExpiresAt: jwt.NewNumericDate(issued.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		at    time.Time
	}{
		{"garbage", "not.a.token", issued},
		{"wrong secret", foreign, issued},
		{"none algorithm", unsigned, issued},
		{"bad subject", badSubject, issued},
		{"expired", valid, issued.Add(2 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			at := tt.at
			ti.now = func() time.Time { return at }
			_, err := ti.Validate(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}
