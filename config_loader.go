package carevault

import (
	"fmt"
	"os"
	"time"

	"github.com/hengadev/carevault/internal/config"
)

// DotenvFile is loaded into the environment, when present, before configuration
// is read. Variables already set in the process win.
const DotenvFile = ".env"

// LoadConfigFromEnvironment loads configuration from CAREVAULT_* environment
// variables, after loading DotenvFile, and returns a validated Config.
//
// Recognized variables:
//   - CAREVAULT_DB_PATH, CAREVAULT_DB_FILENAME
//   - CAREVAULT_SECRET_BACKEND (env, vault, aws)
//   - CAREVAULT_VAULT_KEY_PATH, CAREVAULT_AWS_SECRET_NAME, CAREVAULT_AWS_REGION
//   - CAREVAULT_PEPPER_ALIAS
//   - CAREVAULT_LOG_LEVEL, CAREVAULT_LOG_FORMAT
//   - CAREVAULT_LISTEN_ADDR, CAREVAULT_JWT_SECRET, CAREVAULT_TOKEN_TTL
//   - CAREVAULT_EXPORT_BUCKET
//
// Example usage (12-factor app):
//
//	// export CAREVAULT_SECRET_BACKEND=vault
//	// export CAREVAULT_JWT_SECRET=...
//	cfg, err := carevault.LoadConfigFromEnvironment()
//	if err != nil {
//	    log.Fatal(err)
//	}
func LoadConfigFromEnvironment() (Config, error) {
	if err := config.LoadDotenv(DotenvFile); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}

	var cfg Config
	if err := cfg.overrideFromEnvironment(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfigFile reads a YAML configuration file. Environment variables, set
// directly or through DotenvFile, override values from the file.
//
// Example file:
//
//	db_path: /var/lib/carevault
//	secret_backend: aws
//	aws_region: eu-west-1
//	token_ttl: 4h
func LoadConfigFile(path string) (Config, error) {
	var cfg Config
	if err := config.ReadYAML(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := config.LoadDotenv(DotenvFile); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidConfiguration, err)
	}
	if err := cfg.overrideFromEnvironment(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads the file named by CAREVAULT_CONFIG_FILE when set, and the
// environment alone otherwise.
func LoadConfig() (Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return LoadConfigFile(path)
	}
	return LoadConfigFromEnvironment()
}

func (c *Config) overrideFromEnvironment() error {
	for env, field := range map[string]*string{
		EnvDBPath:        &c.DBPath,
		EnvDBFilename:    &c.DBFilename,
		EnvSecretBackend: &c.SecretBackend,
		EnvVaultKeyPath:  &c.VaultKeyPath,
		EnvAWSSecretName: &c.AWSSecretName,
		EnvAWSRegion:     &c.AWSRegion,
		EnvPepperAlias:   &c.PepperAlias,
		EnvLogLevel:      &c.LogLevel,
		EnvLogFormat:     &c.LogFormat,
		EnvListenAddr:    &c.ListenAddr,
		EnvJWTSecret:     &c.JWTSecret,
		EnvExportBucket:  &c.ExportBucket,
	} {
		*field = getEnvOrDefault(env, *field)
	}

	if raw := os.Getenv(EnvTokenTTL); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfiguration, EnvTokenTTL, err)
		}
		c.TokenTTL = ttl
	}
	return nil
}

// getEnvOrDefault returns the value of an environment variable, or defaultValue
// if the variable is not set or empty.
func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}
