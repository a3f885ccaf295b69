package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Storage implements ObjectStorage using the AWS SDK, for native S3.
// Credentials come from the ambient chain (env, shared config, IAM role)
// unless static keys are supplied.
type S3Storage struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
	region  string
}

// NewS3Storage builds an AWS S3 client for the given region and bucket.
// accessKey and secretKey may be empty to use the default credential chain.
func NewS3Storage(ctx context.Context, region, bucket, accessKey, secretKey string) (*S3Storage, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if accessKey != "" && secretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg)
	return &S3Storage{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		region:  region,
	}, nil
}

// EnsureBucket creates the bucket if it does not already exist.
func (s *S3Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var nf *types.NotFound
	if !errors.As(err, &nf) {
		return fmt.Errorf("head bucket %q: %w", s.bucket, err)
	}

	in := &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}
	// us-east-1 rejects an explicit location constraint.
	if s.region != "us-east-1" {
		in.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(s.region),
		}
	}
	if _, err := s.client.CreateBucket(ctx, in); err != nil {
		return fmt.Errorf("create bucket %q: %w", s.bucket, err)
	}
	log.Printf("storage: created bucket %q", s.bucket)
	return nil
}

// Upload stores the file at localPath under objectName with metadata attached.
func (s *S3Storage) Upload(ctx context.Context, localPath, objectName string, metadata map[string]string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("local file %q: %w", localPath, err)
	}
	defer f.Close()

	in := &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(objectName),
		Body:     f,
		Metadata: metadata,
	}
	if ct, ok := metadata["content_type"]; ok {
		in.ContentType = aws.String(ct)
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		log.Printf("storage: upload %q failed: %v", objectName, err)
		return fmt.Errorf("put object %q: %w", objectName, err)
	}
	return nil
}

// Download fetches objectName into localPath.
func (s *S3Storage) Download(ctx context.Context, objectName, localPath string) error {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			log.Printf("storage: object %q not found", objectName)
			return ErrNotFound
		}
		log.Printf("storage: download %q failed: %v", objectName, err)
		return fmt.Errorf("get object %q: %w", objectName, err)
	}
	defer out.Body.Close()

	f, err := os.Create(localPath)
	if err != nil {
		return fmt.Errorf("create local file %q: %w", localPath, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, out.Body); err != nil {
		return fmt.Errorf("write local file %q: %w", localPath, err)
	}
	return nil
}

// Delete removes objectName from the bucket.
func (s *S3Storage) Delete(ctx context.Context, objectName string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		log.Printf("storage: delete %q failed: %v", objectName, err)
		return fmt.Errorf("delete object %q: %w", objectName, err)
	}
	return nil
}

// List returns summaries of all objects matching prefix.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]ObjectSummary, error) {
	in := &s3.ListObjectsV2Input{Bucket: aws.String(s.bucket)}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}

	objects := []ObjectSummary{}
	paginator := s3.NewListObjectsV2Paginator(s.client, in)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			log.Printf("storage: list with prefix %q failed: %v", prefix, err)
			return nil, fmt.Errorf("list objects: %w", err)
		}
		for _, obj := range page.Contents {
			objects = append(objects, ObjectSummary{
				Name:         aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
			})
		}
	}
	return objects, nil
}

// PresignedURL returns a time-limited GET URL for objectName.
func (s *S3Storage) PresignedURL(ctx context.Context, objectName string, expiry time.Duration) (string, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		log.Printf("storage: presign %q failed: %v", objectName, err)
		return "", fmt.Errorf("presign object %q: %w", objectName, err)
	}
	return req.URL, nil
}

// Info returns head-metadata for objectName.
func (s *S3Storage) Info(ctx context.Context, objectName string) (*ObjectInfo, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName),
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			return nil, ErrNotFound
		}
		log.Printf("storage: stat %q failed: %v", objectName, err)
		return nil, fmt.Errorf("head object %q: %w", objectName, err)
	}

	return &ObjectInfo{
		Name:         objectName,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
		ContentType:  aws.ToString(out.ContentType),
		ETag:         strings.Trim(aws.ToString(out.ETag), `"`),
		Metadata:     lowerKeys(out.Metadata),
	}, nil
}

// HealthCheck lists buckets as a lightweight availability probe.
func (s *S3Storage) HealthCheck(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		log.Printf("storage: health check failed: %v", err)
		return fmt.Errorf("list buckets: %w", err)
	}
	return nil
}
