package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ErrNoDocsBucket is returned when no bucket name is configured for the
// published API document.
var ErrNoDocsBucket = errors.New("docs bucket name is empty")

// MinioStore publishes generated artifacts, such as the OpenAPI document,
// into a bucket that anonymous clients may read.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to the object store and prepares the docs bucket:
// it is created when missing and given an anonymous read-only policy.
func NewMinioStore(ctx context.Context, endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioStore, error) {
	if bucket == "" {
		return nil, ErrNoDocsBucket
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("docs store %s: %w", endpoint, err)
	}

	s := &MinioStore{client: client, bucket: bucket}
	if err := s.ensureBucket(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MinioStore) ensureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("docs bucket %q: %w", s.bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create docs bucket %q: %w", s.bucket, err)
		}
	}
	if err := s.client.SetBucketPolicy(ctx, s.bucket, publicReadPolicy(s.bucket)); err != nil {
		return fmt.Errorf("docs bucket %q policy: %w", s.bucket, err)
	}
	return nil
}

// publicReadPolicy allows anonymous GetObject and nothing else.
func publicReadPolicy(bucket string) string {
	return fmt.Sprintf(`{"Version":"2012-10-17","Statement":[{"Effect":"Allow","Principal":{"AWS":["*"]},"Action":["s3:GetObject"],"Resource":["arn:aws:s3:::%s/*"]}]}`, bucket)
}

// Upload stores bytes under the given object key, replacing any previous version.
func (s *MinioStore) Upload(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "no-cache",
	})
	if err != nil {
		return fmt.Errorf("publish %s/%s: %w", s.bucket, key, err)
	}
	return nil
}
