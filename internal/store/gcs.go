package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"cloud.google.com/go/storage"
)

const gcsTimeout = 30 * time.Second

// GCSStore is a Cloud Storage-backed implementation of Store.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCS creates a new GCSStore for the specified bucket.
func NewGCS(ctx context.Context, bucket string) (*GCSStore, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return NewGCSWithClient(client, bucket), nil
}

// NewGCSWithClient wraps an existing client. Several stores may share one.
func NewGCSWithClient(client *storage.Client, bucket string) *GCSStore {
	return &GCSStore{client: client, bucket: bucket}
}

// Bucket returns the bucket name.
func (s *GCSStore) Bucket() string {
	return s.bucket
}

// Get reads the object stored under key.
func (s *GCSStore) Get(ctx context.Context, key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	reader, err := s.client.Bucket(s.bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("gs://%s/%s: %w", s.bucket, key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return io.ReadAll(reader)
}

// Put uploads data under key with the given metadata.
func (s *GCSStore) Put(ctx context.Context, key string, data []byte, attrs Attrs) error {
	ctx, cancel := context.WithTimeout(ctx, gcsTimeout)
	defer cancel()

	writer := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	writer.ContentType = attrs.ContentType
	writer.ContentEncoding = attrs.ContentEncoding
	writer.CacheControl = attrs.CacheControl
	if writer.ContentType == "" {
		writer.ContentType = "application/octet-stream"
	}

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}

// Close closes the GCS client.
func (s *GCSStore) Close() error {
	return s.client.Close()
}
