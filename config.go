package carevault

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hengadev/errsx"
	"github.com/sirupsen/logrus"

	"github.com/hengadev/carevault/internal/config"
)

// Config holds the runtime configuration of the carevault binaries.
//
// This struct contains only data, no behavior. Configuration can be loaded from
// the environment (LoadConfigFromEnvironment), from a YAML file (LoadConfigFile)
// or built in code, and is passed explicitly to the components that need it.
//
// Every field is optional; Validate applies the defaults listed below.
//
// Example usage:
//
//	cfg := carevault.Config{
//	    DBPath:        "/var/lib/carevault",
//	    SecretBackend: carevault.SecretBackendVault,
//	}
//
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
type Config struct {
	// DBPath is the directory holding the sqlite database, or the database file
	// itself when it has an extension.
	//
	// Default: .carevault under the project root, or under the working
	// directory outside a Go module.
	DBPath string `yaml:"db_path"`

	// DBFilename is the database file name inside DBPath.
	//
	// Default: hospital.db
	DBFilename string `yaml:"db_filename"`

	// SecretBackend selects the managed secret store consulted before the
	// environment: "env" (environment only), "vault" or "aws".
	//
	// Default: env
	SecretBackend string `yaml:"secret_backend"`

	// VaultKeyPath is the KV v2 read path template for secrets; %s is replaced
	// with the secret name.
	//
	// Default: secret/data/carevault/%s
	VaultKeyPath string `yaml:"vault_key_path"`

	// AWSSecretName is the Secrets Manager id template for secrets; %s is
	// replaced with the secret name.
	//
	// Default: carevault/%s
	AWSSecretName string `yaml:"aws_secret_name"`

	// AWSRegion overrides the region of the AWS SDK default chain.
	AWSRegion string `yaml:"aws_region"`

	// PepperAlias is the secret name holding the password pepper.
	//
	// Default: PASSWORD_PEPPER
	PepperAlias string `yaml:"pepper_alias"`

	// LogLevel is a logrus level name.
	//
	// Default: info
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json" or "text".
	//
	// Default: json
	LogFormat string `yaml:"log_format"`

	// ListenAddr is the HTTP API address.
	//
	// Default: :8080
	ListenAddr string `yaml:"listen_addr"`

	// JWTSecret signs session tokens. Required by the HTTP API only.
	JWTSecret string `yaml:"jwt_secret"`

	// TokenTTL is the lifetime of a session token.
	//
	// Default: 8h
	TokenTTL time.Duration `yaml:"token_ttl"`

	// ExportBucket is the S3 bucket encrypted exports are uploaded to. Uploads
	// are disabled when empty.
	ExportBucket string `yaml:"export_bucket"`
}

// Validate checks the configuration and applies defaults to empty fields.
// All problems are reported together, wrapped in ErrInvalidConfiguration.
func (c *Config) Validate() error {
	c.applyDefaults()

	errs := make(errsx.Map)

	switch c.SecretBackend {
	case SecretBackendEnv, SecretBackendVault, SecretBackendAWS:
	default:
		errs.Set("secret_backend", fmt.Errorf("must be one of %s, %s, %s; got %q",
			SecretBackendEnv, SecretBackendVault, SecretBackendAWS, c.SecretBackend))
	}
	if strings.Count(c.VaultKeyPath, "%s") != 1 {
		errs.Set("vault_key_path", fmt.Errorf("must contain exactly one %%s placeholder"))
	}
	if strings.Count(c.AWSSecretName, "%s") != 1 {
		errs.Set("aws_secret_name", fmt.Errorf("must contain exactly one %%s placeholder"))
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs.Set("log_level", err)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		errs.Set("log_format", fmt.Errorf("must be json or text, got %q", c.LogFormat))
	}
	if c.TokenTTL < 0 {
		errs.Set("token_ttl", fmt.Errorf("must be positive, got %s", c.TokenTTL))
	}

	if errs.IsEmpty() {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errs.AsError())
}

func (c *Config) applyDefaults() {
	c.SecretBackend = strings.ToLower(strings.TrimSpace(c.SecretBackend))
	c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat))

	if c.DBPath == "" {
		c.DBPath = defaultDBPath()
	}
	if c.DBFilename == "" {
		c.DBFilename = DefaultDBFilename
	}
	if c.SecretBackend == "" {
		c.SecretBackend = DefaultSecretBackend
	}
	if c.VaultKeyPath == "" {
		c.VaultKeyPath = VaultKeyPathTemplate
	}
	if c.AWSSecretName == "" {
		c.AWSSecretName = AWSSecretPathTemplate
	}
	if c.PepperAlias == "" {
		c.PepperAlias = PasswordPepperName
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.LogFormat == "" {
		c.LogFormat = DefaultLogFormat
	}
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.TokenTTL == 0 {
		c.TokenTTL, _ = time.ParseDuration(DefaultTokenTTL)
	}
}

// defaultDBPath places the database directory at the project root when running
// inside a Go module, and relative to the working directory otherwise.
func defaultDBPath() string {
	cwd, err := os.Getwd()
	if err != nil {
		return DefaultDBPath
	}
	if projectRoot, err := config.FindProjectRoot(cwd); err == nil {
		return filepath.Join(projectRoot, DefaultDBPath)
	}
	return DefaultDBPath
}

// VaultPath returns the Vault read path of the secret called name.
func (c Config) VaultPath(name string) string {
	return fmt.Sprintf(c.VaultKeyPath, name)
}

// AWSSecretID returns the Secrets Manager id of the secret called name.
func (c Config) AWSSecretID(name string) string {
	return fmt.Sprintf(c.AWSSecretName, name)
}
