// Package carevault implements the record layer of a hospital records system:
// field-level encryption of patient data and role-based disclosure of it.
//
// Three roles use the system. Admins see and edit everything, doctors see
// anonymized records with categorized diagnoses, and receptionists register
// patients and edit their contact details without ever seeing a diagnosis.
// Every performed action is appended to an audit log.
//
// # Cipher
//
// Patient name, contact and diagnosis are stored encrypted with a single
// AES-256-GCM key. Encrypt uses a fresh random nonce per call, so equal
// plaintexts give different ciphertexts. The empty string maps to itself.
//
//	cipher, err := carevault.NewCipherFromSources(ctx, vaultSource, carevault.NewEnvSource())
//	if err != nil {
//	    logger.Fatal("Encryption key unavailable", "error", err)
//	}
//
//	token, err := cipher.Encrypt("John Doe")
//	name := cipher.Decrypt(token) // "John Doe"
//
// Decrypt never fails: corrupt, tampered or foreign ciphertext yields
// DecryptionErrorMarker. Open is the strict form for callers that must not carry
// the marker forward.
//
// The key is resolved from the given SecretSource values in order. Managed
// stores (HashiCorp Vault KV v2, AWS Secrets Manager) live under providers/;
// EnvSource reads the process environment and a .env file.
//
// # Disclosure
//
// Engine turns an encrypted PatientRecord into the DisclosureView a Principal
// may see:
//
//	role          name       contact         diagnosis
//	admin         plaintext  plaintext       plaintext
//	doctor        ANON_{id}  XXX-XXX-{last4} category
//	receptionist  ANON_{id}  XXX-XXX-{last4} [Restricted]
//	other         [Restricted] for every field
//
// A field that fails to decrypt holds DecryptionErrorMarker and is listed in
// DisclosureView.Faults; the marker is never masked or categorized.
//
// # Access
//
// Authorize is the single permission table. Service checks it before every
// operation and writes the audit entry after every successful one:
//
//	svc, err := carevault.NewService(store, store, store, cipher)
//	views, err := svc.ListPatients(ctx, principal, false)
//
// Authenticator registers users with peppered Argon2id password hashes and
// produces the Principal of a successful login.
//
// # Testing
//
// NewTestCipher and InMemorySecretStore build fixtures without touching the
// environment:
//
//	cipher := carevault.NewTestCipher(t)
//	engine := carevault.NewTestEngine(t, cipher)
package carevault
