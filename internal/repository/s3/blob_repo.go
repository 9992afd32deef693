package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"

	"github.com/lucosvsk10/wsgestaocontabil-sub003/pkg/client/s3"
)

type BlobRepo struct {
	StorageS3 *s3.StorageS3
}

func NewBlobRepo(storageS3 *s3.StorageS3) *BlobRepo {
	return &BlobRepo{
		StorageS3: storageS3,
	}
}

func (r *BlobRepo) Upload(ctx context.Context, key string, file []byte) error {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	reader := bytes.NewReader(file)
	fileSize := int64(len(file))

	_, err := r.StorageS3.Client.PutObject(
		ctx,
		r.StorageS3.Bucket,
		key,
		reader,
		fileSize,
		minio.PutObjectOptions{
			ContentType: "application/octet-stream",
		},
	)
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}

	return nil
}

// GetPresignedURL mints a fresh time-limited read URL for the given key.
// Called once per processing attempt; the URLs are never persisted.
func (r *BlobRepo) GetPresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return "", fmt.Errorf("s3 client not initialized")
	}

	reqParams := url.Values{}

	presignedURL, err := r.StorageS3.Client.PresignedGetObject(ctx, r.StorageS3.Bucket, key, expiry, reqParams)
	if err != nil {
		return "", fmt.Errorf("presigned get object: %w", err)
	}
	return presignedURL.String(), nil
}

func (r *BlobRepo) Remove(ctx context.Context, key string) error {
	if r.StorageS3 == nil || r.StorageS3.Client == nil {
		return fmt.Errorf("s3 client not initialized")
	}

	if err := r.StorageS3.Client.RemoveObject(ctx, r.StorageS3.Bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("s3 remove object: %w", err)
	}
	return nil
}
