package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Publisher mirrors a finished video to durable storage and returns the URL
// clients should use instead of the local one.
type Publisher interface {
	Publish(ctx context.Context, localPath, objectName string) (string, error)
}

// MinioOptions configures an S3 compatible bucket.
type MinioOptions struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PresignExpiry time.Duration
	Prefix        string
}

// MinioPublisher uploads final videos and hands out presigned GET URLs.
type MinioPublisher struct {
	client *minio.Client
	bucket string
	prefix string
	expiry time.Duration
}

// NewMinioPublisher connects and makes sure the bucket exists. It returns nil
// when no endpoint is configured.
func NewMinioPublisher(ctx context.Context, opts MinioOptions) (*MinioPublisher, error) {
	if strings.TrimSpace(opts.Endpoint) == "" {
		return nil, nil
	}
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, errors.New("storage: minio bucket is required")
	}
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: minio client: %w", err)
	}
	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("storage: check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("storage: create bucket: %w", err)
		}
	}
	expiry := opts.PresignExpiry
	if expiry <= 0 {
		expiry = 72 * time.Hour
	}
	prefix := strings.Trim(opts.Prefix, "/")
	if prefix == "" {
		prefix = "videos"
	}
	return &MinioPublisher{client: client, bucket: opts.Bucket, prefix: prefix, expiry: expiry}, nil
}

// Publish uploads localPath under the publisher prefix.
func (p *MinioPublisher) Publish(ctx context.Context, localPath, objectName string) (string, error) {
	key := path.Join(p.prefix, objectName)
	if _, err := p.client.FPutObject(ctx, p.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: "video/mp4",
	}); err != nil {
		return "", fmt.Errorf("storage: upload %s: %w", key, err)
	}
	signed, err := p.client.PresignedGetObject(ctx, p.bucket, key, p.expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("storage: presign %s: %w", key, err)
	}
	return signed.String(), nil
}

var _ Publisher = (*MinioPublisher)(nil)
