package carevault

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hengadev/carevault/internal/monitoring"
	"github.com/hengadev/carevault/internal/reliability"
)

// SecretResolver looks a secret up in an ordered list of sources. The first source
// holding a non-empty value wins. Sources reporting ErrSecretNotFound are skipped;
// sources reporting ErrSecretStorageUnavailable are retried with backoff and then
// skipped with a warning.
type SecretResolver struct {
	sources []SecretSource
	retry   reliability.RetryConfig
	logger  *monitoring.StructuredLogger
	metrics monitoring.MetricsCollector
}

type ResolverOption func(r *SecretResolver)

func WithResolverLogger(logger *monitoring.StructuredLogger) ResolverOption {
	return func(r *SecretResolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithResolverRetry(config reliability.RetryConfig) ResolverOption {
	return func(r *SecretResolver) {
		r.retry = config
	}
}

func WithResolverMetrics(collector monitoring.MetricsCollector) ResolverOption {
	return func(r *SecretResolver) {
		if collector != nil {
			r.metrics = collector
		}
	}
}

func NewSecretResolver(sources []SecretSource, options ...ResolverOption) *SecretResolver {
	r := &SecretResolver{
		sources: sources,
		retry:   reliability.DefaultRetryConfig(),
		logger:  monitoring.NewNopLogger(),
		metrics: &monitoring.NoOpMetricsCollector{},
	}
	for _, opt := range options {
		opt(r)
	}
	r.logger = r.logger.WithComponent("secrets")
	return r
}

// ResolveSecret resolves name with a default SecretResolver.
func ResolveSecret(ctx context.Context, name string, sources ...SecretSource) (string, error) {
	return NewSecretResolver(sources).Resolve(ctx, name)
}

// Resolve returns the value of name from the first source that has it. When no
// source does, the error wraps ErrMissingEncryptionKey for EncryptionKeyName and
// ErrSecretNotFound otherwise.
func (r *SecretResolver) Resolve(ctx context.Context, name string) (string, error) {
	for _, source := range r.sources {
		if source == nil {
			continue
		}

		var value string
		retry := r.retry
		retry.ShouldRetry = IsRetryableError
		retry.OnRetry = func(attempt int, delay time.Duration, err error) {
			r.logger.Warn("Secret source unavailable, retrying",
				"source", source.Name(), "secret", name, "attempt", attempt, "delay", delay.String(), "error", err.Error())
		}

		err := reliability.Retry(ctx, retry, func(ctx context.Context) error {
			v, err := source.GetSecret(ctx, name)
			if err != nil {
				return err
			}
			value = strings.TrimSpace(v)
			return nil
		})

		switch {
		case err == nil && value != "":
			r.logger.Info("Secret resolved", "source", source.Name(), "secret", name)
			r.metrics.IncrementCounter(monitoring.MetricSecretResolution, map[string]string{"source": source.Name(), "status": "found"})
			return value, nil
		case err == nil, errors.Is(err, ErrSecretNotFound):
			r.logger.Debug("Secret not present in source", "source", source.Name(), "secret", name)
		case IsRetryableError(err):
			r.logger.Warn("Secret source skipped", "source", source.Name(), "secret", name, "error", err.Error())
			r.metrics.IncrementCounter(monitoring.MetricSecretResolution, map[string]string{"source": source.Name(), "status": "unavailable"})
		default:
			return "", fmt.Errorf("read %s from %s: %w", name, source.Name(), err)
		}
	}

	r.metrics.IncrementCounter(monitoring.MetricSecretResolution, map[string]string{"source": "none", "status": "missing"})
	if name == EncryptionKeyName {
		return "", fmt.Errorf("%w: %s not set in any configured source", ErrMissingEncryptionKey, name)
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}

// EnvSource reads secrets from the process environment, falling back to dotenv
// files. Process environment wins over file values.
type EnvSource struct {
	files  []string
	lookup func(string) (string, bool)
}

// NewEnvSource returns an EnvSource reading the given dotenv files, ".env" when
// none are given. Missing files are ignored.
func NewEnvSource(files ...string) *EnvSource {
	if len(files) == 0 {
		files = []string{".env"}
	}
	return &EnvSource{files: files, lookup: os.LookupEnv}
}

func (s *EnvSource) Name() string {
	return SecretBackendEnv
}

func (s *EnvSource) GetSecret(_ context.Context, name string) (string, error) {
	if v, ok := s.lookup(name); ok && strings.TrimSpace(v) != "" {
		return v, nil
	}

	for _, file := range s.files {
		values, err := godotenv.Read(file)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return "", fmt.Errorf("%w: parse %s: %w", ErrInvalidConfiguration, file, err)
		}
		if v := values[name]; strings.TrimSpace(v) != "" {
			return v, nil
		}
	}

	return "", fmt.Errorf("%w: %s not in environment", ErrSecretNotFound, name)
}
