package aws

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/hengadev/carevault"
)

// secretsManagerClient interface for AWS Secrets Manager operations (allows mocking)
type secretsManagerClient interface {
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	DescribeSecret(ctx context.Context, params *secretsmanager.DescribeSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.DescribeSecretOutput, error)
}

// SecretsManagerSource implements carevault.SecretSource and carevault.SecretWriter
// using AWS Secrets Manager.
type SecretsManagerSource struct {
	client       secretsManagerClient
	region       string
	nameTemplate string
}

// NewSecretsManagerSource creates a new AWS Secrets Manager source.
//
// Usage:
//
//	// Using default AWS configuration
//	source, err := aws.NewSecretsManagerSource(ctx, aws.Config{})
//
//	// With specific region
//	source, err := aws.NewSecretsManagerSource(ctx, aws.Config{Region: "us-east-1"})
func NewSecretsManagerSource(ctx context.Context, cfg Config) (*SecretsManagerSource, error) {
	var awsConfig aws.Config
	var err error

	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", carevault.ErrSecretStorageUnavailable, err)
		}
	}

	return newSecretsManagerSource(secretsmanager.NewFromConfig(awsConfig), awsConfig.Region, cfg.NameTemplate), nil
}

func newSecretsManagerSource(client secretsManagerClient, region, nameTemplate string) *SecretsManagerSource {
	if nameTemplate == "" {
		nameTemplate = carevault.AWSSecretPathTemplate
	}
	return &SecretsManagerSource{client: client, region: region, nameTemplate: nameTemplate}
}

func (s *SecretsManagerSource) Name() string {
	return "aws"
}

// SecretID returns the Secrets Manager id of the secret called name.
//
// Examples:
//   - "ENCRYPTION_KEY" → "carevault/ENCRYPTION_KEY"
//   - "PASSWORD_PEPPER" → "carevault/PASSWORD_PEPPER"
func (s *SecretsManagerSource) SecretID(name string) string {
	return fmt.Sprintf(s.nameTemplate, name)
}

// GetSecret retrieves the secret string stored under name.
//
// A missing secret is reported as carevault.ErrSecretNotFound so the resolver
// falls through to the next source; any other failure is
// carevault.ErrSecretStorageUnavailable.
func (s *SecretsManagerSource) GetSecret(ctx context.Context, name string) (string, error) {
	id := s.SecretID(name)

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return "", fmt.Errorf("%w: %s", carevault.ErrSecretNotFound, id)
		}
		return "", fmt.Errorf("%w: failed to get %s from Secrets Manager: %w",
			carevault.ErrSecretStorageUnavailable, id, err)
	}

	if result.SecretString == nil || *result.SecretString == "" {
		return "", fmt.Errorf("%w: %s has no string value", carevault.ErrSecretNotFound, id)
	}
	return *result.SecretString, nil
}

// StoreSecret stores value under name, creating the secret or adding a new
// version to it.
func (s *SecretsManagerSource) StoreSecret(ctx context.Context, name, value string) error {
	id := s.SecretID(name)

	exists, err := s.secretExists(ctx, id)
	if err != nil {
		return err
	}

	if exists {
		_, err = s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
			SecretId:     aws.String(id),
			SecretString: aws.String(value),
		})
		if err != nil {
			return fmt.Errorf("%w: failed to update %s in Secrets Manager: %w",
				carevault.ErrSecretStorageUnavailable, id, err)
		}
		return nil
	}

	_, err = s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         aws.String(id),
		Description:  aws.String(fmt.Sprintf("carevault %s", name)),
		SecretString: aws.String(value),
	})
	if err != nil {
		return fmt.Errorf("%w: failed to create %s in Secrets Manager: %w",
			carevault.ErrSecretStorageUnavailable, id, err)
	}
	return nil
}

// secretExists returns an error only for actual failures, not for "secret not found".
func (s *SecretsManagerSource) secretExists(ctx context.Context, id string) (bool, error) {
	_, err := s.client.DescribeSecret(ctx, &secretsmanager.DescribeSecretInput{
		SecretId: aws.String(id),
	})
	if err != nil {
		var notFoundErr *types.ResourceNotFoundException
		if errors.As(err, &notFoundErr) {
			return false, nil
		}
		return false, fmt.Errorf("%w: failed to check if %s exists: %w",
			carevault.ErrSecretStorageUnavailable, id, err)
	}
	return true, nil
}

// Region returns the AWS region this source is configured for.
func (s *SecretsManagerSource) Region() string {
	return s.region
}
