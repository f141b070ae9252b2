package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Client is the slice of the S3 API the store uses.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Store persists evidence blobs in an S3 bucket. References have the
// form s3://<bucket>/<key>.
type S3Store struct {
	client S3Client
	bucket string
}

// NewS3Store builds an S3-backed blob store. An empty bucket name yields
// an unconfigured store, which the nightly driver treats as "skip run".
func NewS3Store(ctx context.Context, bucket, region string) (*S3Store, error) {
	if bucket == "" {
		return &S3Store{}, nil
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &S3Store{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// NewS3StoreWithClient wires an explicit client, used by tests.
func NewS3StoreWithClient(client S3Client, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// Configured reports whether a bucket is set.
func (s *S3Store) Configured() bool {
	return s.bucket != "" && s.client != nil
}

// Put uploads a blob and returns its s3:// reference.
func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if !s.Configured() {
		return "", fmt.Errorf("object storage not configured")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to put object %s: %w", key, err)
	}

	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// Get downloads a blob by its s3:// reference.
func (s *S3Store) Get(ctx context.Context, ref string) ([]byte, error) {
	if !s.Configured() {
		return nil, fmt.Errorf("object storage not configured")
	}

	bucket, key, err := parseRef(ref)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get object %s: %w", ref, err)
	}
	defer func() {
		_ = out.Body.Close()
	}()

	return io.ReadAll(out.Body)
}

func parseRef(ref string) (bucket, key string, err error) {
	trimmed := strings.TrimPrefix(ref, "s3://")
	if trimmed == ref {
		return "", "", fmt.Errorf("not an s3 reference: %s", ref)
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed s3 reference: %s", ref)
	}
	return parts[0], parts[1], nil
}
