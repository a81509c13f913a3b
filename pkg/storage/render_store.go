package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// RenderStore holds the bytes of synthesized renders: audio takes,
// generated images, video clips. Records for these objects live in the
// relational store; only the payload lives here.
type RenderStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PutBytes(ctx context.Context, key string, data []byte, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// MinioRenderStore implements RenderStore for MinIO/S3 compatible storage.
type MinioRenderStore struct {
	client *minio.Client
	bucket string
}

// NewMinioRenderStore connects to MinIO and ensures the bucket exists.
func NewMinioRenderStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*MinioRenderStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &MinioRenderStore{client: client, bucket: bucket}, nil
}

// Put uploads a render payload.
func (m *MinioRenderStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put render: %w", err)
	}
	return nil
}

// PutBytes uploads an in-memory render payload.
func (m *MinioRenderStore) PutBytes(ctx context.Context, key string, data []byte, contentType string) error {
	return m.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentType)
}

// PresignGet generates a pre-signed GET URL for streaming a render.
func (m *MinioRenderStore) PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error) {
	url, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, nil)
	if err != nil {
		return "", fmt.Errorf("presign render: %w", err)
	}
	return url.String(), nil
}

// Delete removes a render payload.
func (m *MinioRenderStore) Delete(ctx context.Context, key string) error {
	if err := m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete render: %w", err)
	}
	return nil
}
