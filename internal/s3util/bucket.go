// Package s3util provides the S3 operations used by the indexer: uploading
// the downloaded audio file, writing the metadata document, and emptying the
// media bucket when the stack is deleted.
package s3util

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3API is the subset of the S3 client used by this package.
type S3API interface {
	s3.ListObjectsV2APIClient
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
}

// Bucket binds an S3 client to one bucket.
type Bucket struct {
	client S3API
	name   string
}

// NewBucket creates a Bucket.
func NewBucket(client S3API, name string) *Bucket {
	return &Bucket{client: client, name: name}
}

// Name returns the bucket name.
func (b *Bucket) Name() string {
	return b.name
}

// PutFile uploads a local file under key.
func (b *Bucket) PutFile(ctx context.Context, key, localPath, contentType string) error {
	return UploadFile(ctx, b.client, b.name, key, localPath, contentType)
}

// PutBytes writes an in-memory payload under key, replacing any existing object.
func (b *Bucket) PutBytes(ctx context.Context, key string, body []byte, contentType string) error {
	return PutBytes(ctx, b.client, b.name, key, body, contentType)
}

// DeleteAll removes every object in the bucket and returns how many were deleted.
func (b *Bucket) DeleteAll(ctx context.Context) (int, error) {
	return EmptyBucket(ctx, b.client, b.name)
}
