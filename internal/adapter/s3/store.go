// Package s3 implements the blobstore port on Amazon S3 or any S3-compatible
// object store (MinIO, GCS interoperability mode).
package s3

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/Strob0t/mfi-api/internal/config"
)

// PutObjectAPI is the subset of the S3 client used by Store.
type PutObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Store uploads objects to a single bucket.
type Store struct {
	client  PutObjectAPI
	bucket  string
	baseURL string
}

// New creates a Store from the default AWS credential chain. A non-empty
// Endpoint switches to path-style addressing for S3-compatible servers.
func New(ctx context.Context, cfg config.Blob) (*Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	base := cfg.PublicBaseURL
	if base == "" {
		base = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, awsCfg.Region)
	}
	return NewWithClient(client, cfg.Bucket, base), nil
}

// NewWithClient creates a Store on an existing client. Objects are addressed
// as baseURL/<name>.
func NewWithClient(client PutObjectAPI, bucket, baseURL string) *Store {
	return &Store{client: client, bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}
}

// Put uploads body under name and returns its public URL.
func (s *Store) Put(ctx context.Context, name, contentType string, size int64, body io.Reader) (string, error) {
	in := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(name),
		Body:   body,
	}
	if contentType != "" {
		in.ContentType = aws.String(contentType)
	}
	if size > 0 {
		in.ContentLength = aws.Int64(size)
	}
	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("s3 put %s/%s: %w", s.bucket, name, err)
	}
	return s.baseURL + "/" + url.PathEscape(name), nil
}
