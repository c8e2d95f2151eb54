package blob

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectStore is the blob collaborator. Keys are "<ownerID>/<storageName>".
type ObjectStore interface {
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	Delete(ctx context.Context, key string) error
	DeleteMany(ctx context.Context, keys []string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	DownloadTo(ctx context.Context, key, localPath string) error
	PublicURL(key string) string
}

// MinioStore implements ObjectStore against an S3-compatible endpoint.
type MinioStore struct {
	client    *minio.Client
	bucket    string
	publicURL string
}

// NewMinio connects and ensures the bucket exists.
func NewMinio(endpoint, accessKey, secretKey, bucket, publicURL string, useSSL bool) (*MinioStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(context.Background(), bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		log.Printf("[MinIO] created bucket %s", bucket)
	}

	if publicURL == "" {
		scheme := "http"
		if useSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, endpoint, bucket)
	}

	log.Println("[MinIO] connected")
	return &MinioStore{client: client, bucket: bucket, publicURL: publicURL}, nil
}

func (m *MinioStore) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error) {
	_, err := m.client.PutObject(ctx, m.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", err
	}
	return m.PublicURL(key), nil
}

func (m *MinioStore) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// DeleteMany removes each key, keeps going on failure and reports the first
// error. Folder deletion treats blob cleanup as best-effort.
func (m *MinioStore) DeleteMany(ctx context.Context, keys []string) error {
	var firstErr error
	for _, key := range keys {
		if err := m.Delete(ctx, key); err != nil {
			log.Printf("[MinIO] failed to delete object %s: %v", key, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (m *MinioStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	listing := m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})
	errCh := m.client.RemoveObjects(ctx, m.bucket, listing, minio.RemoveObjectsOptions{})
	for removeErr := range errCh {
		if removeErr.Err != nil {
			log.Printf("[MinIO] failed to delete object %s: %v", removeErr.ObjectName, removeErr.Err)
			return removeErr.Err
		}
	}
	return nil
}

func (m *MinioStore) DownloadTo(ctx context.Context, key, localPath string) error {
	return m.client.FGetObject(ctx, m.bucket, key, localPath, minio.GetObjectOptions{})
}

func (m *MinioStore) PublicURL(key string) string {
	return fmt.Sprintf("%s/%s", m.publicURL, key)
}
