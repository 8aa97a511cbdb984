package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client streams STE objects from S3.
type S3Client struct {
	s3Client *s3.Client
}

// NewS3Client creates a client using the default AWS configuration.
func NewS3Client(ctx context.Context) (*S3Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewS3ClientWithConfig(cfg), nil
}

// NewS3ClientWithConfig creates a client with a custom AWS config.
func NewS3ClientWithConfig(cfg aws.Config) *S3Client {
	return &S3Client{
		s3Client: s3.NewFromConfig(cfg),
	}
}

// StreamObject returns a reader for an S3 object.
func (c *S3Client) StreamObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	resp, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	return resp.Body, nil
}

// ParseS3URI parses an S3 URI (s3://bucket/key) into bucket and key components.
func ParseS3URI(uri string) (bucket, key string, err error) {
	if !strings.HasPrefix(uri, S3Scheme) {
		return "", "", errors.New("invalid S3 URI: must start with s3://")
	}

	rest := strings.TrimPrefix(uri, S3Scheme)
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" {
		return "", "", errors.New("invalid S3 URI: missing bucket name")
	}
	return bucket, key, nil
}
