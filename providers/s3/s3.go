// Package s3bucket uploads encrypted carevault exports to Amazon S3.
//
// Usage:
//
//	uploader, err := s3bucket.NewUploader(ctx, s3bucket.Config{Bucket: "hospital-exports"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	location, err := svc.UploadEncryptedExport(ctx, principal, carevault.ExportPatients, uploader)
//
// Objects are written with SSE-S3 server side encryption on top of the
// application level encryption of their content.
package s3bucket

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hengadev/carevault"
)

// AWSS3Uploader defines the method used to upload to S3
type AWSS3Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Config holds configuration for the S3 uploader.
type Config struct {
	// Bucket receives the export objects. Required.
	Bucket string

	// Region is the AWS region (e.g., "eu-west-1")
	// If empty, uses AWS_REGION environment variable or AWS config file
	Region string

	// AWSConfig is an optional pre-configured AWS config
	// If provided, Region is ignored
	AWSConfig *aws.Config
}

// Uploader implements carevault.ObjectUploader on top of S3 PutObject.
type Uploader struct {
	client AWSS3Uploader
	bucket string
}

// NewUploader creates an Uploader using the default AWS credential chain.
func NewUploader(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: export bucket is required", carevault.ErrInvalidConfiguration)
	}

	var awsConfig aws.Config
	if cfg.AWSConfig != nil {
		awsConfig = *cfg.AWSConfig
	} else {
		opts := []func(*config.LoadOptions) error{}
		if cfg.Region != "" {
			opts = append(opts, config.WithRegion(cfg.Region))
		}

		var err error
		awsConfig, err = config.LoadDefaultConfig(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load AWS config: %w", carevault.ErrInvalidConfiguration, err)
		}
	}

	return NewUploaderWithClient(s3.NewFromConfig(awsConfig), cfg.Bucket), nil
}

// NewUploaderWithClient wraps an existing S3 client.
func NewUploaderWithClient(client AWSS3Uploader, bucket string) *Uploader {
	return &Uploader{client: client, bucket: bucket}
}

// Bucket returns the destination bucket.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// Upload stores body under key and returns its s3:// location. PutObject signs
// the payload, so the body is buffered first.
func (u *Uploader) Upload(ctx context.Context, key string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read export body: %w", err)
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(u.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(data),
		ContentLength:        aws.Int64(int64(len(data))),
		ContentType:          aws.String(contentType),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", u.bucket, key, err)
	}

	return fmt.Sprintf("s3://%s/%s", u.bucket, key), nil
}
