package carevault

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hengadev/carevault/internal/crypto"
	"github.com/hengadev/carevault/internal/monitoring"
)

// MinPasswordLength is the shortest password Register accepts.
const MinPasswordLength = 6

// Argon2Params configures password hashing.
type Argon2Params = crypto.Argon2Params

// DefaultArgon2Params returns the production Argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return crypto.DefaultArgon2Params()
}

// ParsePepper decodes a PASSWORD_PEPPER value: PepperLength bytes as hex or base64.
func ParsePepper(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, fmt.Errorf("%w: %s is empty", ErrInvalidConfiguration, PasswordPepperName)
	}
	pepper, ok := decodeFixed(encoded, PepperLength)
	if !ok {
		return nil, fmt.Errorf("%w: %s must be %d bytes encoded as hex or base64", ErrInvalidConfiguration, PasswordPepperName, PepperLength)
	}
	if isZero(pepper) {
		return nil, ErrUninitializedPepper
	}
	return pepper, nil
}

// Authenticator registers users and checks their credentials. Passwords are stored
// as peppered Argon2id hashes.
type Authenticator struct {
	users  UserStore
	audit  AuditSink
	hasher *crypto.PasswordHasher
	logger *monitoring.StructuredLogger

	// dummyHash is verified against when the username does not exist so both
	// failure paths cost the same.
	dummyHash string
}

type AuthenticatorOption func(a *authenticatorConfig)

type authenticatorConfig struct {
	params Argon2Params
	logger *monitoring.StructuredLogger
}

func WithArgon2Params(params Argon2Params) AuthenticatorOption {
	return func(c *authenticatorConfig) {
		c.params = params
	}
}

func WithAuthLogger(logger *monitoring.StructuredLogger) AuthenticatorOption {
	return func(c *authenticatorConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewAuthenticator(users UserStore, audit AuditSink, pepper []byte, options ...AuthenticatorOption) (*Authenticator, error) {
	if users == nil || audit == nil {
		return nil, fmt.Errorf("%w: authenticator requires a user store and an audit sink", ErrInvalidConfiguration)
	}
	if len(pepper) != PepperLength {
		return nil, fmt.Errorf("%w: pepper must be exactly %d bytes, got %d", ErrInvalidConfiguration, PepperLength, len(pepper))
	}
	if isZero(pepper) {
		return nil, ErrUninitializedPepper
	}

	cfg := authenticatorConfig{params: DefaultArgon2Params(), logger: monitoring.NewNopLogger()}
	for _, opt := range options {
		opt(&cfg)
	}

	hasher, err := crypto.NewPasswordHasher(pepper, cfg.params)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	dummy, err := hasher.Hash("carevault-dummy-password")
	if err != nil {
		return nil, err
	}

	return &Authenticator{
		users:     users,
		audit:     audit,
		hasher:    hasher,
		logger:    cfg.logger.WithComponent("auth"),
		dummyHash: dummy,
	}, nil
}

// Register creates an account. The role must be one of the known roles.
func (a *Authenticator) Register(ctx context.Context, username, password string, role Role) (User, error) {
	username = strings.TrimSpace(username)
	switch {
	case username == "":
		return User{}, fmt.Errorf("%w: username is required", ErrValidation)
	case len(password) < MinPasswordLength:
		return User{}, fmt.Errorf("%w: password must be at least %d characters", ErrValidation, MinPasswordLength)
	case !role.Known():
		return User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := a.hasher.Hash(password)
	if err != nil {
		return User{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := a.users.CreateUser(ctx, User{Username: username, PasswordHash: hash, Role: role})
	if err != nil {
		return User{}, err
	}
	a.logger.Info("User registered", "user_id", user.ID, "role", string(role))
	return user, nil
}

// Authenticate checks username and password and records a LOGIN audit entry. Any
// mismatch is reported as ErrAuthenticationFailed without saying which part failed.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (Principal, error) {
	user, err := a.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil && !errors.Is(err, ErrUserNotFound) {
		return Principal{}, err
	}

	encoded := user.PasswordHash
	if err != nil {
		encoded = a.dummyHash
	}

	ok, verr := a.hasher.Verify(password, encoded)
	if err != nil || verr != nil || !ok {
		a.logger.Security("login_failed", map[string]any{"username": username})
		return Principal{}, ErrAuthenticationFailed
	}

	p := Principal{UserID: user.ID, Role: user.Role}
	if err := a.audit.AppendLog(ctx, AuditEntry{
		UserID:  user.ID,
		Role:    user.Role,
		Action:  ActionLogin,
		Details: fmt.Sprintf("User %s logged in", user.Username),
	}); err != nil {
		return Principal{}, fmt.Errorf("failed to record login: %w", err)
	}
	return p, nil
}

// Logout records a LOGOUT audit entry.
func (a *Authenticator) Logout(ctx context.Context, p Principal, username string) error {
	if err := a.audit.AppendLog(ctx, AuditEntry{
		UserID:  p.UserID,
		Role:    p.Role,
		Action:  ActionLogout,
		Details: fmt.Sprintf("User %s logged out", username),
	}); err != nil {
		return fmt.Errorf("failed to record logout: %w", err)
	}
	return nil
}

func isZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
