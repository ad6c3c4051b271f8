package export

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/crisnc100/SmartGains-Personal-Training-Project-sub000/internal/log"
)

// Archive stores rendered exports and hands back a download link.
type Archive interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	LinkTTL   time.Duration
}

// MinioArchive keeps exports in a MinIO or S3-compatible bucket.
type MinioArchive struct {
	client  *minio.Client
	bucket  string
	linkTTL time.Duration
}

// NewMinioArchive connects and creates the bucket if it does not exist.
func NewMinioArchive(ctx context.Context, cfg MinioConfig) (*MinioArchive, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
		log.Infof("export: created bucket %s", cfg.Bucket)
	}

	ttl := cfg.LinkTTL
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &MinioArchive{client: client, bucket: cfg.Bucket, linkTTL: ttl}, nil
}

func (a *MinioArchive) Put(ctx context.Context, key, contentType string, data []byte) (string, error) {
	if _, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	}); err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", lastSegment(key)))
	link, err := a.client.PresignedGetObject(ctx, a.bucket, key, a.linkTTL, params)
	if err != nil {
		return "", fmt.Errorf("presign object %s: %w", key, err)
	}
	return link.String(), nil
}

func lastSegment(key string) string {
	for i := len(key) - 1; i >= 0; i-- {
		if key[i] == '/' {
			return key[i+1:]
		}
	}
	return key
}
