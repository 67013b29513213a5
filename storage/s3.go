package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Uploads issues presigned S3 URLs for listing photos. Clients upload
// directly to the bucket; the server only hands out scoped, expiring URLs
// and never proxies image bytes.
type Uploads struct {
	presign *s3.PresignClient
	bucket  string
	expiry  time.Duration
}

// NewUploads builds the S3 presigner from the ambient AWS configuration
// (env credentials, shared config, or instance role).
func NewUploads(ctx context.Context, bucket string) (*Uploads, error) {
	if bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg)
	return &Uploads{
		presign: s3.NewPresignClient(client),
		bucket:  bucket,
		expiry:  15 * time.Minute,
	}, nil
}

// PresignPut returns a URL the client may PUT an object to, and the public
// key under which it will live.
func (u *Uploads) PresignPut(ctx context.Context, key, contentType string) (string, error) {
	r, err := u.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, func(po *s3.PresignOptions) {
		po.Expires = u.expiry
	})
	if err != nil {
		return "", fmt.Errorf("storage: presign put %s: %w", key, err)
	}
	return r.URL, nil
}

// PresignGet returns a time-limited download URL for a stored object.
func (u *Uploads) PresignGet(ctx context.Context, key string) (string, error) {
	r, err := u.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.bucket),
		Key:    aws.String(key),
	}, func(po *s3.PresignOptions) {
		po.Expires = u.expiry
	})
	if err != nil {
		return "", fmt.Errorf("storage: presign get %s: %w", key, err)
	}
	return r.URL, nil
}
