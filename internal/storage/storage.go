// Package storage defines the interface for object storage operations.
// Two implementations exist: a MinIO client for any S3-compatible endpoint
// with static credentials, and an AWS SDK client for native S3 with ambient
// credentials. Both are constructed at startup and injected into handlers.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when the requested object does not exist in the bucket.
var ErrNotFound = errors.New("object not found")

// ObjectSummary describes one object in a bucket listing.
type ObjectSummary struct {
	Name         string    `json:"name"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"last_modified"`
	ETag         string    `json:"etag"`
}

// ObjectInfo is the full head-metadata of a stored object.
type ObjectInfo struct {
	Name         string            `json:"name"`
	Size         int64             `json:"size"`
	LastModified time.Time         `json:"last_modified"`
	ContentType  string            `json:"content_type"`
	ETag         string            `json:"etag"`
	Metadata     map[string]string `json:"metadata"`
}

// ObjectStorage is the set of operations the service needs against one bucket.
//
// Implementations wrap SDK failures into plain errors: callers see ErrNotFound
// for missing objects and opaque wrapped errors for everything else, never an
// SDK-specific error type.
type ObjectStorage interface {
	// EnsureBucket creates the configured bucket if it does not exist.
	EnsureBucket(ctx context.Context) error
	// Upload stores the file at localPath under objectName with the given
	// user metadata attached. The local file is left in place; removing it
	// is the caller's responsibility.
	Upload(ctx context.Context, localPath, objectName string, metadata map[string]string) error
	// Download fetches objectName into localPath. Returns ErrNotFound when
	// the object does not exist.
	Download(ctx context.Context, objectName, localPath string) error
	// Delete removes objectName from the bucket. Deleting a missing key is
	// not an error (S3 delete semantics).
	Delete(ctx context.Context, objectName string) error
	// List returns summaries of objects whose names start with prefix; an
	// empty prefix lists the whole bucket.
	List(ctx context.Context, prefix string) ([]ObjectSummary, error)
	// PresignedURL returns a capability URL for objectName valid for expiry.
	PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
	// Info returns head-metadata for objectName, or ErrNotFound.
	Info(ctx context.Context, objectName string) (*ObjectInfo, error)
	// HealthCheck performs a lightweight call against the backend.
	HealthCheck(ctx context.Context) error
}
