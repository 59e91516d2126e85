package services

import (
	"bytes"
	"context"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/primesmshub/sms-hub-api/config"
)

// PayloadArchive stores raw provider payloads for later audit
type PayloadArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

// s3PutObjectAPI is the slice of the S3 client the archive needs
type s3PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archive writes payloads to an S3 bucket
type S3Archive struct {
	client s3PutObjectAPI
	bucket string
}

// NewS3Archive builds an archive from AWS credentials in configuration
func NewS3Archive(ctx context.Context, cfg *config.Config) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Archive{
		client: s3.NewFromConfig(awsConfig),
		bucket: cfg.AWSS3Bucket,
	}, nil
}

func (a *S3Archive) Put(ctx context.Context, key string, body []byte, contentType string) error {
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload to S3: %w", err)
	}

	log.Printf("Archived %d bytes to s3://%s/%s", len(body), a.bucket, key)
	return nil
}

// PaymentArchiveKey is where a payment webhook body for reference is stored
func PaymentArchiveKey(provider, reference string) string {
	return fmt.Sprintf("%s/%s.json", provider, reference)
}
