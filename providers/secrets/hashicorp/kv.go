package hashicorp

import (
	"context"
	"fmt"

	"github.com/hashicorp/vault/api"

	"github.com/hengadev/carevault"
)

// logicalClient is the subset of *api.Logical used by KVSource (allows mocking).
type logicalClient interface {
	ReadWithContext(ctx context.Context, path string) (*api.Secret, error)
	WriteWithContext(ctx context.Context, path string, data map[string]interface{}) (*api.Secret, error)
}

// KVSource implements carevault.SecretSource and carevault.SecretWriter using the
// HashiCorp Vault KV v2 engine. Each secret is stored as {"value": "<secret>"}.
type KVSource struct {
	logical      logicalClient
	pathTemplate string
}

// NewKVSource creates a KVSource from the VAULT_* environment (see
// createVaultClient). pathTemplate maps a secret name to its KV v2 data path;
// empty means carevault.VaultKeyPathTemplate.
//
// Usage:
//
//	kv, err := hashicorp.NewKVSource("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	cipher, err := carevault.NewCipherFromSources(ctx, kv, carevault.NewEnvSource())
//
// The KV v2 engine must be enabled in Vault before use:
//
//	vault secrets enable -path=secret kv-v2
func NewKVSource(pathTemplate string) (*KVSource, error) {
	client, err := createVaultClient()
	if err != nil {
		return nil, err
	}
	return newKVSource(client.Logical(), pathTemplate), nil
}

func newKVSource(logical logicalClient, pathTemplate string) *KVSource {
	if pathTemplate == "" {
		pathTemplate = carevault.VaultKeyPathTemplate
	}
	return &KVSource{logical: logical, pathTemplate: pathTemplate}
}

func (k *KVSource) Name() string {
	return "vault"
}

// StoragePath returns the Vault KV v2 path of the secret called name.
//
// Note: The "/data/" segment is required for KV v2 API reads/writes.
//
// Examples:
//   - "ENCRYPTION_KEY" → "secret/data/carevault/ENCRYPTION_KEY"
func (k *KVSource) StoragePath(name string) string {
	return fmt.Sprintf(k.pathTemplate, name)
}

// GetSecret reads the secret called name.
//
// Vault answers a read of a missing path with a nil secret; that, and a secret
// without a value, is carevault.ErrSecretNotFound. Transport and permission
// failures are carevault.ErrSecretStorageUnavailable.
func (k *KVSource) GetSecret(ctx context.Context, name string) (string, error) {
	path := k.StoragePath(name)

	secret, err := k.logical.ReadWithContext(ctx, path)
	if err != nil {
		return "", fmt.Errorf("%w: failed to read %s from Vault KV: %w",
			carevault.ErrSecretStorageUnavailable, path, err)
	}
	if secret == nil || secret.Data == nil {
		return "", fmt.Errorf("%w: %s", carevault.ErrSecretNotFound, path)
	}

	// KV v2 wraps the actual data in a "data" key
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: invalid KV v2 secret format at %s", carevault.ErrSecretNotFound, path)
	}

	value, ok := data["value"].(string)
	if !ok || value == "" {
		return "", fmt.Errorf("%w: no value at %s", carevault.ErrSecretNotFound, path)
	}
	return value, nil
}

// StoreSecret writes value under name. KV v2 keeps previous versions.
func (k *KVSource) StoreSecret(ctx context.Context, name, value string) error {
	path := k.StoragePath(name)

	// KV v2 requires data to be wrapped in a "data" key
	_, err := k.logical.WriteWithContext(ctx, path, map[string]interface{}{
		"data": map[string]interface{}{
			"value": value,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: failed to store %s in Vault KV: %w",
			carevault.ErrSecretStorageUnavailable, path, err)
	}
	return nil
}
