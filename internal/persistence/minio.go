package persistence

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kozaktomas/facedb/internal/database"
)

// MinioConfig describes an S3-compatible object holding the database.
type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Object    string
	UseSSL    bool
}

// MinioBlob keeps the database as one object in MinIO or any S3-compatible storage.
type MinioBlob struct {
	client *minio.Client
	bucket string
	object string
}

// NewMinioBlob wraps an existing client.
func NewMinioBlob(client *minio.Client, bucket, object string) *MinioBlob {
	return &MinioBlob{client: client, bucket: bucket, object: object}
}

// DialMinio creates a client from cfg and makes sure the bucket exists.
func DialMinio(ctx context.Context, cfg MinioConfig) (*MinioBlob, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" || cfg.Object == "" {
		return nil, fmt.Errorf("%w: minio endpoint, bucket and object are required", database.ErrInvalidInput)
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("%w: checking bucket %s: %v", database.ErrIO, cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("%w: creating bucket %s: %v", database.ErrIO, cfg.Bucket, err)
		}
	}

	return NewMinioBlob(client, cfg.Bucket, cfg.Object), nil
}

// Describe returns the object URL-ish location.
func (m *MinioBlob) Describe() string {
	return fmt.Sprintf("s3://%s/%s", m.bucket, m.object)
}

// Write uploads the blob; object storage replaces objects atomically.
func (m *MinioBlob) Write(ctx context.Context, data []byte) error {
	_, err := m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return fmt.Errorf("%w: uploading %s: %v", database.ErrIO, m.Describe(), err)
	}
	return nil
}

// Read downloads the blob.
func (m *MinioBlob) Read(ctx context.Context) ([]byte, error) {
	if _, err := m.client.StatObject(ctx, m.bucket, m.object, minio.StatObjectOptions{}); err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%s: %w", m.Describe(), database.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: stat %s: %v", database.ErrIO, m.Describe(), err)
	}

	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", database.ErrIO, m.Describe(), err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		if isMinioNotFound(err) {
			return nil, fmt.Errorf("%s: %w", m.Describe(), database.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: downloading %s: %v", database.ErrIO, m.Describe(), err)
	}
	return data, nil
}

func isMinioNotFound(err error) bool {
	code := minio.ToErrorResponse(err).Code
	return code == "NoSuchKey" || code == "NotFound" || code == "NoSuchBucket"
}
