// Package hashicorp provides HashiCorp Vault KV v2 integration for carevault.
//
// KVSource implements carevault.SecretSource, so ENCRYPTION_KEY and
// PASSWORD_PEPPER can be kept in Vault instead of the process environment.
//
// # Basic Usage
//
//	kv, err := hashicorp.NewKVSource(cfg.VaultKeyPath)
//	if err != nil {
//	    // handle error
//	}
//
//	// Vault first, then the environment (.env included)
//	cipher, err := carevault.NewCipherFromSources(ctx, kv, carevault.NewEnvSource())
//
// # Configuration
//
// The client is configured via environment variables:
//
//	// Required
//	export VAULT_ADDR="https://vault.example.com:8200"
//	export VAULT_TOKEN="hvs.your-token-here"
//	// or, instead of VAULT_TOKEN
//	export VAULT_ROLE_ID="..."
//	export VAULT_SECRET_ID="..."
//
//	// Optional
//	export VAULT_NAMESPACE="my-namespace"  // For Vault Enterprise
//
// # Secret Storage
//
// Secrets are read from the path template carevault.VaultKeyPathTemplate:
//
//	secret/data/carevault/ENCRYPTION_KEY
//	secret/data/carevault/PASSWORD_PEPPER
//
// Each holds a single "value" field with the encoded secret, as written by
// `carevault keygen -store vault`:
//
//	vault kv put secret/carevault/ENCRYPTION_KEY value="$(carevault keygen)"
//
// # Policy Permissions
//
//	path "secret/data/carevault/*" {
//	    capabilities = ["create", "read", "update"]
//	}
//
// # Error Handling
//
//   - carevault.ErrSecretNotFound: nothing stored at the path; the resolver
//     moves on to the next source
//   - carevault.ErrSecretStorageUnavailable: Vault could not be reached or
//     refused the request; the resolver retries, then moves on
//   - carevault.ErrInvalidConfiguration: VAULT_ADDR or credentials missing
package hashicorp
