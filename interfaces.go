package carevault

import (
	"context"
	"io"
	"time"
)

// SecretSource defines the contract for reading named secrets such as ENCRYPTION_KEY.
//
// Implementations:
//   - Process environment (optionally seeded from a .env file): carevault.EnvSource
//   - HashiCorp Vault KV v2: github.com/hengadev/carevault/providers/secrets/hashicorp.KVSource
//   - AWS Secrets Manager: github.com/hengadev/carevault/providers/secrets/aws.SecretsManagerSource
//   - In-memory (testing): carevault.InMemorySecretStore
//
// GetSecret returns an error wrapping ErrSecretNotFound when the source is reachable
// but holds no value for name, and ErrSecretStorageUnavailable when the source itself
// cannot be reached. ResolveSecret skips the former and retries the latter.
type SecretSource interface {
	// Name identifies the source in logs (e.g. "env", "vault", "aws").
	Name() string

	// GetSecret returns the value stored under name.
	GetSecret(ctx context.Context, name string) (string, error)
}

// SecretWriter is a SecretSource that can also store secrets. The keygen command
// uses it to provision ENCRYPTION_KEY and PASSWORD_PEPPER.
type SecretWriter interface {
	SecretSource

	// StoreSecret stores value under name, replacing any current value.
	StoreSecret(ctx context.Context, name, value string) error
}

// PatientStore persists patient records. Sensitive fields cross this boundary as
// ciphertext only.
type PatientStore interface {
	CreatePatient(ctx context.Context, rec PatientRecord) (PatientRecord, error)
	GetPatient(ctx context.Context, id int64) (PatientRecord, error)
	ListPatients(ctx context.Context) ([]PatientRecord, error)
	UpdatePatient(ctx context.Context, rec PatientRecord) error
	DeletePatient(ctx context.Context, id int64) error
	CountPatients(ctx context.Context) (int, error)
}

// UserStore persists application users.
type UserStore interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUserByUsername(ctx context.Context, username string) (User, error)
}

// AuditSink is the append-only audit log.
type AuditSink interface {
	AppendLog(ctx context.Context, entry AuditEntry) error
}

// AuditReader queries the audit log.
type AuditReader interface {
	ListLogs(ctx context.Context, limit int) ([]AuditEntry, error)
	ListLogsByAction(ctx context.Context, action Action, limit int) ([]AuditEntry, error)
	ActivityStats(ctx context.Context, now time.Time) (ActivityStats, error)
	DailyActivity(ctx context.Context, days int, now time.Time) ([]DailyCount, error)
}

// ObjectUploader stores an export object and returns its location.
//
// Implementations:
//   - Amazon S3: github.com/hengadev/carevault/providers/s3.Uploader
type ObjectUploader interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error)
}
