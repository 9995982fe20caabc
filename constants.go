package carevault

// Display markers
const (
	// DecryptionErrorMarker stands in for a field whose ciphertext could not be
	// opened. It is reserved: the record service refuses to store it as data.
	DecryptionErrorMarker = "[Decryption Error]"

	// RestrictedMarker replaces a field the requesting role may not see.
	RestrictedMarker = "[Restricted]"

	// RedactedContact is shown when a contact is too short to keep any digits.
	RedactedContact = "XXX-XXX-XXXX"

	// ContactMaskPrefix precedes the last four characters of a masked contact.
	ContactMaskPrefix = "XXX-XXX-"

	// AnonymousNamePrefix precedes the patient id in an anonymized name.
	AnonymousNamePrefix = "ANON_"
)

// Key constants
const (
	// KeyLength is the size in bytes of the field encryption key (AES-256).
	KeyLength = 32

	// PepperLength defines the required length for pepper values in bytes.
	PepperLength = 32
)

// Secret names
const (
	// EncryptionKeyName is the configuration value holding the field encryption key,
	// both as an environment variable and as a managed secret name.
	EncryptionKeyName = "ENCRYPTION_KEY"

	// PasswordPepperName is the configuration value holding the password pepper.
	PasswordPepperName = "PASSWORD_PEPPER"
)

// Environment variable names
const (
	EnvDBPath        = "CAREVAULT_DB_PATH"
	EnvDBFilename    = "CAREVAULT_DB_FILENAME"
	EnvSecretBackend = "CAREVAULT_SECRET_BACKEND"
	EnvVaultKeyPath  = "CAREVAULT_VAULT_KEY_PATH"
	EnvAWSSecretName = "CAREVAULT_AWS_SECRET_NAME"
	EnvAWSRegion     = "CAREVAULT_AWS_REGION"
	EnvLogLevel      = "CAREVAULT_LOG_LEVEL"
	EnvLogFormat     = "CAREVAULT_LOG_FORMAT"
	EnvListenAddr    = "CAREVAULT_LISTEN_ADDR"
	EnvJWTSecret     = "CAREVAULT_JWT_SECRET"
	EnvTokenTTL      = "CAREVAULT_TOKEN_TTL"
	EnvExportBucket  = "CAREVAULT_EXPORT_BUCKET"
	EnvPepperAlias   = "CAREVAULT_PEPPER_ALIAS"
	EnvConfigFile    = "CAREVAULT_CONFIG_FILE"
)

// Default values
const (
	DefaultDBPath        = ".carevault"
	DefaultDBFilename    = "hospital.db"
	DefaultSecretBackend = SecretBackendEnv
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "json"
	DefaultListenAddr    = ":8080"
	DefaultTokenTTL      = "8h"
)

// Storage path templates for the managed secret backends.
const (
	// VaultKeyPathTemplate is the KV v2 read path of the application secrets.
	// The %s placeholder is replaced with the secret name.
	// Example: "secret/data/carevault/ENCRYPTION_KEY"
	VaultKeyPathTemplate = "secret/data/carevault/%s"

	// AWSSecretPathTemplate is the Secrets Manager id of the application secrets.
	// Example: "carevault/ENCRYPTION_KEY"
	AWSSecretPathTemplate = "carevault/%s"
)

// Secret backends
const (
	SecretBackendEnv   = "env"
	SecretBackendVault = "vault"
	SecretBackendAWS   = "aws"
)
