// Package s3 archives session uploads in S3-compatible object storage.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pardeepwalia007/Assignment-RAG/internal/storage"
)

type Config struct {
	Endpoint         string
	Region           string
	Bucket           string
	AccessKeyID      string
	SecretAccessKey  string
	UseSSL           bool
	Prefix           string
	AutoCreateBucket bool
}

type client interface {
	PutObject(ctx context.Context, bucket, key string, obj storage.Object) (storage.ObjectInfo, error)
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket, region string) error
}

// Archive writes uploads under an optional key prefix in one bucket.
type Archive struct {
	client client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Archive, error) {
	host, secure, err := endpointHost(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}
	mc, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: strings.TrimSpace(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("create s3 client: %w", err)
	}
	a, err := NewWithClient(cfg.Bucket, cfg.Prefix, minioClient{api: mc})
	if err != nil {
		return nil, err
	}
	if cfg.AutoCreateBucket {
		if err := a.ensureBucket(ctx, strings.TrimSpace(cfg.Region)); err != nil {
			return nil, err
		}
	}
	return a, nil
}

func NewWithClient(bucket, prefix string, c client) (*Archive, error) {
	if c == nil {
		return nil, fmt.Errorf("s3 client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix = path.Clean(prefix)
	}
	return &Archive{client: c, bucket: bucket, prefix: prefix}, nil
}

// Archive stores one upload. Keys are relative to the configured prefix.
func (a *Archive) Archive(ctx context.Context, obj storage.Object) (storage.ObjectInfo, error) {
	key, err := a.objectKey(obj.Key)
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	obj.Key = key
	if obj.ContentType == "" {
		obj.ContentType = storage.ContentTypeFor(key)
	}
	info, err := a.client.PutObject(ctx, a.bucket, key, obj)
	if err != nil {
		return storage.ObjectInfo{}, fmt.Errorf("put s3://%s/%s: %w", a.bucket, key, err)
	}
	return info, nil
}

// Ping fails when the bucket cannot be reached or does not exist.
func (a *Archive) Ping(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket %q: %w", a.bucket, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", storage.ErrBucketMissing, a.bucket)
	}
	return nil
}

func (a *Archive) ensureBucket(ctx context.Context, region string) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check archive bucket %q: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, region); err != nil {
		return fmt.Errorf("create archive bucket %q: %w", a.bucket, err)
	}
	return nil
}

func (a *Archive) objectKey(key string) (string, error) {
	key = strings.TrimLeft(strings.TrimSpace(key), "/")
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == "" || segment == "." || segment == ".." {
			return "", fmt.Errorf("invalid object key: %q", key)
		}
	}
	if a.prefix == "" {
		return key, nil
	}
	return a.prefix + "/" + key, nil
}

// endpointHost accepts either host[:port] or a URL. An https URL forces TLS.
func endpointHost(raw string, useSSL bool) (string, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("s3 endpoint is required")
	}
	if !strings.Contains(raw, "://") {
		return raw, useSSL, nil
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return "", false, fmt.Errorf("parse s3 endpoint: %w", err)
	}
	switch {
	case parsed.Host == "":
		return "", false, fmt.Errorf("s3 endpoint %q has no host", raw)
	case parsed.Scheme == "https":
		return parsed.Host, true, nil
	case parsed.Scheme == "http":
		return parsed.Host, useSSL, nil
	default:
		return "", false, fmt.Errorf("unsupported s3 endpoint scheme %q", parsed.Scheme)
	}
}

type minioClient struct {
	api *minio.Client
}

func (m minioClient) PutObject(ctx context.Context, bucket, key string, obj storage.Object) (storage.ObjectInfo, error) {
	info, err := m.api.PutObject(ctx, bucket, key, bytes.NewReader(obj.Data), int64(len(obj.Data)), minio.PutObjectOptions{
		ContentType:  obj.ContentType,
		UserMetadata: obj.Metadata,
	})
	if err != nil {
		return storage.ObjectInfo{}, err
	}
	return storage.ObjectInfo{Key: info.Key, Size: info.Size, ETag: info.ETag}, nil
}

func (m minioClient) BucketExists(ctx context.Context, bucket string) (bool, error) {
	return m.api.BucketExists(ctx, bucket)
}

func (m minioClient) MakeBucket(ctx context.Context, bucket, region string) error {
	return m.api.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region})
}
