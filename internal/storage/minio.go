package storage

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage implements ObjectStorage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client *minio.Client
	bucket string
}

// NewMinioStorage creates a MinIO client for the given endpoint and bucket.
// The endpoint may be "host:port" or carry an http/https scheme; an explicit
// scheme overrides the secure flag.
func NewMinioStorage(endpoint, accessKey, secretKey, bucket string, secure bool) (*MinioStorage, error) {
	host, schemeSecure, err := normalizeEndpoint(endpoint)
	if err != nil {
		return nil, fmt.Errorf("storage endpoint %q: %w", endpoint, err)
	}
	if schemeSecure != nil {
		secure = *schemeSecure
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &MinioStorage{client: client, bucket: bucket}, nil
}

// normalizeEndpoint accepts "minio:9000" or "http(s)://minio:9000" and returns
// the bare host plus the scheme's security flag when a scheme was given.
func normalizeEndpoint(raw string) (string, *bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil, fmt.Errorf("empty endpoint")
	}

	if !strings.Contains(raw, "://") {
		return raw, nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", nil, err
	}
	if u.Host == "" {
		return "", nil, fmt.Errorf("invalid endpoint")
	}
	if u.Path != "" && u.Path != "/" {
		return "", nil, fmt.Errorf("endpoint must not contain a path")
	}
	secure := u.Scheme == "https"
	return u.Host, &secure, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *MinioStorage) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	log.Printf("storage: created bucket %q", s.bucket)
	return nil
}

// Upload stores the file at localPath under objectName with metadata attached.
func (s *MinioStorage) Upload(ctx context.Context, localPath, objectName string, metadata map[string]string) error {
	if _, err := os.Stat(localPath); err != nil {
		return fmt.Errorf("local file %q: %w", localPath, err)
	}

	opts := minio.PutObjectOptions{UserMetadata: metadata}
	if ct, ok := metadata["content_type"]; ok {
		opts.ContentType = ct
	}

	if _, err := s.client.FPutObject(ctx, s.bucket, objectName, localPath, opts); err != nil {
		log.Printf("storage: upload %q failed: %v", objectName, err)
		return fmt.Errorf("put object %q: %w", objectName, err)
	}
	return nil
}

// Download fetches objectName into localPath.
func (s *MinioStorage) Download(ctx context.Context, objectName, localPath string) error {
	err := s.client.FGetObject(ctx, s.bucket, objectName, localPath, minio.GetObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			log.Printf("storage: object %q not found", objectName)
			return ErrNotFound
		}
		log.Printf("storage: download %q failed: %v", objectName, err)
		return fmt.Errorf("get object %q: %w", objectName, err)
	}
	return nil
}

// Delete removes objectName from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		log.Printf("storage: delete %q failed: %v", objectName, err)
		return fmt.Errorf("remove object %q: %w", objectName, err)
	}
	return nil
}

// List returns summaries of all objects matching prefix.
func (s *MinioStorage) List(ctx context.Context, prefix string) ([]ObjectSummary, error) {
	objects := []ObjectSummary{}
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			log.Printf("storage: list with prefix %q failed: %v", prefix, obj.Err)
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		objects = append(objects, ObjectSummary{
			Name:         obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			ETag:         strings.Trim(obj.ETag, `"`),
		})
	}
	return objects, nil
}

// PresignedURL returns a time-limited GET URL for objectName.
func (s *MinioStorage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, expiry, url.Values{})
	if err != nil {
		log.Printf("storage: presign %q failed: %v", objectName, err)
		return "", fmt.Errorf("presign object %q: %w", objectName, err)
	}
	return u.String(), nil
}

// Info returns head-metadata for objectName.
func (s *MinioStorage) Info(ctx context.Context, objectName string) (*ObjectInfo, error) {
	stat, err := s.client.StatObject(ctx, s.bucket, objectName, minio.StatObjectOptions{})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, ErrNotFound
		}
		log.Printf("storage: stat %q failed: %v", objectName, err)
		return nil, fmt.Errorf("stat object %q: %w", objectName, err)
	}

	return &ObjectInfo{
		Name:         objectName,
		Size:         stat.Size,
		LastModified: stat.LastModified,
		ContentType:  stat.ContentType,
		ETag:         strings.Trim(stat.ETag, `"`),
		Metadata:     lowerKeys(stat.UserMetadata),
	}, nil
}

// HealthCheck lists buckets as a lightweight availability probe.
func (s *MinioStorage) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		log.Printf("storage: health check failed: %v", err)
		return fmt.Errorf("list buckets: %w", err)
	}
	return nil
}

// isNoSuchKey reports whether err is the backend's missing-object error.
func isNoSuchKey(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.Code == "NoSuchKey" || resp.StatusCode == 404
}

// lowerKeys normalizes user metadata keys, which S3 backends canonicalize
// into mixed case on the way back.
func lowerKeys(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[strings.ToLower(k)] = v
	}
	return out
}
