package s3util

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog/log"
)

// UploadFile uploads a local file to s3://bucket/key.
func UploadFile(ctx context.Context, client S3API, bucket, key, localPath, contentType string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", localPath, err)
	}

	log.Debug().
		Str("bucket", bucket).
		Str("key", key).
		Str("localPath", localPath).
		Int64("size", info.Size()).
		Msg("Uploading file to S3")

	start := time.Now()
	size := info.Size()
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          f,
		ContentLength: &size,
		ContentType:   &contentType,
		Tagging:       ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}

	log.Info().
		Str("key", key).
		Int64("size", size).
		Dur("duration", time.Since(start)).
		Msg("File uploaded to S3")
	return nil
}

// PutBytes writes body to s3://bucket/key.
func PutBytes(ctx context.Context, client S3API, bucket, key string, body []byte, contentType string) error {
	size := int64(len(body))
	_, err := client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &bucket,
		Key:           &key,
		Body:          bytes.NewReader(body),
		ContentLength: &size,
		ContentType:   &contentType,
		Tagging:       ProjectTagging(),
	})
	if err != nil {
		return fmt.Errorf("S3 PutObject %s: %w", key, err)
	}
	log.Debug().Str("key", key).Int64("size", size).Msg("Object written to S3")
	return nil
}
