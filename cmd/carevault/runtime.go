package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hengadev/carevault"
	"github.com/hengadev/carevault/internal/monitoring"
	"github.com/hengadev/carevault/internal/store"
	awssecrets "github.com/hengadev/carevault/providers/secrets/aws"
	"github.com/hengadev/carevault/providers/secrets/hashicorp"
)

// runtime is what every command needs: validated configuration, a logger and the
// secret sources in lookup order.
type runtime struct {
	cfg      carevault.Config
	logger   *monitoring.StructuredLogger
	metrics  monitoring.MetricsCollector
	managed  carevault.SecretWriter
	sources  []carevault.SecretSource
	resolver *carevault.SecretResolver
}

func newRuntime(ctx context.Context, metrics monitoring.MetricsCollector) (*runtime, error) {
	cfg, err := carevault.LoadConfig()
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = &monitoring.NoOpMetricsCollector{}
	}

	logger := monitoring.NewStructuredLogger(monitoring.LoggerConfig{
		Level:  cfg.LogLevel,
		Format: monitoring.ParseLogFormat(cfg.LogFormat),
		Output: os.Stderr,
		Fields: map[string]any{"version": carevault.Version},
	})

	managed, err := managedSource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg, logger: logger, metrics: metrics, managed: managed}
	rt.sources = secretSources(managed, carevault.NewEnvSource(carevault.DotenvFile))
	rt.resolver = carevault.NewSecretResolver(rt.sources,
		carevault.WithResolverLogger(logger),
		carevault.WithResolverMetrics(metrics),
	)
	return rt, nil
}

// managedSource builds the secret store selected by cfg.SecretBackend. It is nil
// for the env backend.
func managedSource(ctx context.Context, cfg carevault.Config) (carevault.SecretWriter, error) {
	switch cfg.SecretBackend {
	case carevault.SecretBackendVault:
		source, err := hashicorp.NewKVSource(cfg.VaultKeyPath)
		if err != nil {
			return nil, err
		}
		return source, nil
	case carevault.SecretBackendAWS:
		source, err := awssecrets.NewSecretsManagerSource(ctx, awssecrets.Config{
			Region:       cfg.AWSRegion,
			NameTemplate: cfg.AWSSecretName,
		})
		if err != nil {
			return nil, err
		}
		return source, nil
	default:
		return nil, nil
	}
}

// secretSources orders the managed store before the environment.
func secretSources(managed carevault.SecretWriter, env carevault.SecretSource) []carevault.SecretSource {
	if managed == nil {
		return []carevault.SecretSource{env}
	}
	return []carevault.SecretSource{managed, env}
}

func (rt *runtime) cipher(ctx context.Context) (*carevault.Cipher, error) {
	encoded, err := rt.resolver.Resolve(ctx, carevault.EncryptionKeyName)
	if err != nil {
		return nil, err
	}
	return carevault.NewCipherFromString(encoded)
}

func (rt *runtime) authenticator(ctx context.Context, st *store.Store) (*carevault.Authenticator, error) {
	encoded, err := rt.resolver.Resolve(ctx, rt.cfg.PepperAlias)
	if err != nil {
		return nil, err
	}
	pepper, err := carevault.ParsePepper(encoded)
	if err != nil {
		return nil, err
	}
	return carevault.NewAuthenticator(st, st, pepper, carevault.WithAuthLogger(rt.logger))
}

func (rt *runtime) openStore(ctx context.Context) (*store.Store, error) {
	dsn, err := store.ResolvePath(rt.cfg.DBPath, rt.cfg.DBFilename)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, dsn)
	if err != nil {
		return nil, err
	}
	rt.logger.Debug("Database opened", "path", dsn)
	return st, nil
}

// readPassword reads the first line of r. Passwords are never taken from flags so
// they stay out of shell history.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", errors.New("password must be given on standard input")
	}
	return password, nil
}
