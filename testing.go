package carevault

// Test utilities exported for package tests, the CLI's dry runs and downstream
// integration tests.

import (
	"context"
	"fmt"
	"sync"
	"testing"
)

// InMemorySecretStore is a SecretSource backed by a map.
//
// This store keeps all secrets in memory and is suitable for unit tests.
// All data is lost when the process terminates.
//
// Usage:
//
//	store := NewInMemorySecretStore()
//	store.Set(EncryptionKeyName, key)
//	cipher, err := NewCipherFromSources(ctx, store)
type InMemorySecretStore struct {
	mu          sync.RWMutex
	secrets     map[string]string
	unavailable int
	calls       int
}

// NewInMemorySecretStore creates a new in-memory secret store
func NewInMemorySecretStore() *InMemorySecretStore {
	return &InMemorySecretStore{secrets: make(map[string]string)}
}

func (s *InMemorySecretStore) Name() string {
	return "memory"
}

// Set stores value under name.
func (s *InMemorySecretStore) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}

// StoreSecret implements SecretWriter.
func (s *InMemorySecretStore) StoreSecret(ctx context.Context, name, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Set(name, value)
	return nil
}

// FailNext makes the next n reads report ErrSecretStorageUnavailable.
func (s *InMemorySecretStore) FailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unavailable = n
}

// Calls returns how many times GetSecret was invoked.
func (s *InMemorySecretStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

func (s *InMemorySecretStore) GetSecret(ctx context.Context, name string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.unavailable > 0 {
		s.unavailable--
		return "", fmt.Errorf("%w: memory store offline", ErrSecretStorageUnavailable)
	}

	value, exists := s.secrets[name]
	if !exists {
		return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
	}
	return value, nil
}

// NewTestCipher returns a Cipher under a fresh random key.
func NewTestCipher(t testing.TB) *Cipher {
	t.Helper()

	key, err := GenerateEncryptionKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	c, err := NewCipher(key)
	if err != nil {
		t.Fatalf("create cipher: %v", err)
	}
	return c
}

// NewTestEngine returns an Engine over c, or over a fresh test cipher when c is nil.
func NewTestEngine(t testing.TB, c *Cipher) *Engine {
	t.Helper()

	if c == nil {
		c = NewTestCipher(t)
	}
	e, err := NewEngine(c)
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	return e
}
