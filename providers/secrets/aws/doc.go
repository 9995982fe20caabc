// Package aws provides AWS Secrets Manager integration for carevault.
//
// SecretsManagerSource implements carevault.SecretSource, so ENCRYPTION_KEY and
// PASSWORD_PEPPER can be kept in Secrets Manager instead of the process
// environment.
//
// # Basic Usage
//
//	source, err := aws.NewSecretsManagerSource(ctx, aws.Config{
//	    Region: "us-east-1",
//	})
//	if err != nil {
//	    // handle error
//	}
//
//	cipher, err := carevault.NewCipherFromSources(ctx, source, carevault.NewEnvSource())
//
// # Configuration
//
//	// Option 1: Specify region explicitly
//	cfg := aws.Config{Region: "us-east-1"}
//
//	// Option 2: Use default AWS configuration (from env vars or AWS config file)
//	cfg := aws.Config{}
//
//	// Option 3: Provide custom AWS config
//	awsCfg, _ := config.LoadDefaultConfig(ctx)
//	cfg := aws.Config{AWSConfig: &awsCfg}
//
// # Secret Storage
//
// Secret ids follow carevault.AWSSecretPathTemplate:
//
//	carevault/ENCRYPTION_KEY
//	carevault/PASSWORD_PEPPER
//
// The secret string is the encoded value itself.
//
// # IAM Permissions
//
//	{
//	    "Effect": "Allow",
//	    "Action": [
//	        "secretsmanager:GetSecretValue",
//	        "secretsmanager:DescribeSecret",
//	        "secretsmanager:CreateSecret",
//	        "secretsmanager:PutSecretValue"
//	    ],
//	    "Resource": "arn:aws:secretsmanager:*:*:secret:carevault/*"
//	}
//
// Only GetSecretValue is needed at runtime; the others are used by
// `carevault keygen -store aws`.
//
// # Error Handling
//
//   - carevault.ErrSecretNotFound: ResourceNotFoundException or no string value
//   - carevault.ErrSecretStorageUnavailable: any other API failure
package aws
